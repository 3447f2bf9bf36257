// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package crawler

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
)

// robotsBodyLimit bounds how much of robots.txt and sitemap.xml is read.
const robotsBodyLimit = 512 * 1024

// fetchRobots retrieves and parses /robots.txt at the seed origin.
//
// Only the "*" user-agent group is consulted. A missing or unfetchable
// robots.txt is non-fatal and yields a nil group, which allows everything.
func (c *Crawler) fetchRobots(ctx context.Context, origin *url.URL) *robotstxt.Group {
	robotsURL := origin.Scheme + "://" + origin.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsBodyLimit))
	if err != nil {
		return nil
	}
	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil
	}
	return robots.FindGroup("*")
}

// sitemapDoc is the subset of the sitemap schema the crawler reads.
type sitemapDoc struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// fetchSitemap retrieves /sitemap.xml at the seed origin and returns the
// <loc> URLs. Failures are non-fatal and yield an empty list.
func (c *Crawler) fetchSitemap(ctx context.Context, origin *url.URL) []string {
	sitemapURL := origin.Scheme + "://" + origin.Host + "/sitemap.xml"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsBodyLimit))
	if err != nil {
		return nil
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil
	}

	locs := make([]string, 0, len(doc.URLs))
	for _, u := range doc.URLs {
		if u.Loc != "" {
			locs = append(locs, u.Loc)
		}
	}
	return locs
}
