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
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
)

// =============================================================================
// Inline JavaScript Patterns
// =============================================================================

// Navigation patterns scanned inside inline <script> blocks. These cover
// the common client-side routing idioms; anything fancier is out of reach
// for text matching and deliberately not attempted.
var navPatterns = []*regexp.Regexp{
	regexp.MustCompile(`window\.location(?:\.href)?\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`router\.push\(\s*["']([^"']+)["']`),
	regexp.MustCompile(`router\.navigate\(\s*["']([^"']+)["']`),
	regexp.MustCompile(`href\s*:\s*["']([^"']+)["']`),
}

// API endpoint patterns: bare /api/ literals and the first string argument
// of the three fetch idioms.
var endpointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`["'](/api/[^"'\s]*)["']`),
	regexp.MustCompile(`fetch\(\s*["']([^"']+)["']`),
	regexp.MustCompile(`axios\.(?:get|post|put|patch|delete|head|options)\(\s*["']([^"']+)["']`),
	regexp.MustCompile(`\$\.ajax\(\s*\{[^}]*url\s*:\s*["']([^"']+)["']`),
}

// linkSelectors are the attribute sources harvested for further crawling.
var linkSelectors = []struct {
	selector string
	attr     string
}{
	{"a[href]", "href"},
	{"link[href]", "href"},
	{"script[src]", "src"},
	{"img[src]", "src"},
	{"form[action]", "action"},
	{"iframe[src]", "src"},
}

// pageExtraction is everything pulled from one HTML page.
type pageExtraction struct {
	links     []string
	endpoints []string
	forms     []datatypes.Form
}

// extractPage parses an HTML body and harvests links, API endpoints, and
// forms.
//
// All discovered references are resolved against pageURL to absolute form;
// relative references on an unparseable base are dropped. Deduplication and
// same-origin filtering happen in the crawl loop, not here.
func (c *Crawler) extractPage(doc *goquery.Document, pageURL string) pageExtraction {
	var out pageExtraction
	base := doc.Url
	if base == nil {
		// goquery documents built from strings carry no URL; fall back to
		// the fetched page URL.
		if parsed, err := url.Parse(pageURL); err == nil {
			base = parsed
		}
	}

	for _, ls := range linkSelectors {
		doc.Find(ls.selector).Each(func(_ int, sel *goquery.Selection) {
			raw, ok := sel.Attr(ls.attr)
			if !ok {
				return
			}
			if abs := resolveRef(base, raw); abs != "" {
				out.links = append(out.links, abs)
			}
		})
	}

	// Inline scripts: navigation targets and API endpoints.
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, external := sel.Attr("src"); external {
			return
		}
		code := sel.Text()
		if code == "" {
			return
		}
		for _, re := range navPatterns {
			for _, m := range re.FindAllStringSubmatch(code, -1) {
				if abs := resolveRef(base, m[1]); abs != "" {
					out.links = append(out.links, abs)
				}
			}
		}
		for _, re := range endpointPatterns {
			for _, m := range re.FindAllStringSubmatch(code, -1) {
				out.endpoints = append(out.endpoints, m[1])
			}
		}
	})

	// Forms: method uppercased (GET default), action resolved to absolute
	// (page URL default).
	doc.Find("form").Each(func(_ int, sel *goquery.Selection) {
		form := datatypes.Form{PageURL: Canonical(pageURL), Method: "GET", Action: pageURL}
		if method, ok := sel.Attr("method"); ok && strings.TrimSpace(method) != "" {
			form.Method = strings.ToUpper(strings.TrimSpace(method))
		}
		if action, ok := sel.Attr("action"); ok && strings.TrimSpace(action) != "" {
			if abs := resolveRef(base, action); abs != "" {
				form.Action = abs
			}
		}
		form.HasPasswordInput = sel.Find(`input[type="password"]`).Length() > 0
		out.forms = append(out.forms, form)
	})

	return out
}

// resolveRef resolves raw against base and returns an absolute http(s) URL,
// or "" when the reference is unusable (javascript:, mailto:, data:, …).
func resolveRef(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return ""
	}
	lower := strings.ToLower(raw)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:", "blob:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}
	if base == nil {
		return ""
	}
	abs, err := base.Parse(raw)
	if err != nil {
		return ""
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}
