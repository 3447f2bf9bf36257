// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains crawler output types.

package datatypes

import "time"

// Form is an HTML form discovered during the crawl.
type Form struct {
	// PageURL is the canonical URL of the page the form appeared on.
	PageURL string `json:"pageUrl"`

	// Method is the uppercased HTTP method; GET when the form omits one.
	Method string `json:"method"`

	// Action is the absolute submission URL; defaults to PageURL when the
	// form has no action attribute.
	Action string `json:"action"`

	// HasPasswordInput is true when the form contains an input[type=password].
	HasPasswordInput bool `json:"hasPasswordInput"`
}

// CrawlMetadata summarises a finished crawl.
type CrawlMetadata struct {
	PagesScanned      int       `json:"pagesScanned"`
	TotalRequests     int       `json:"totalRequests"`
	TotalBytes        int64     `json:"totalBytes"`
	AvgResponseTimeMs float64   `json:"avgResponseTimeMs"`
	DurationMs        int64     `json:"durationMs"`
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime"`
	MaxDepthReached   int       `json:"maxDepthReached"`
	RobotsRespected   bool      `json:"robotsTxtRespected"`
	SkippedByRobots   int       `json:"skippedByRobots"`
	FailedRequests    int       `json:"failedRequests"`
	UniqueEndpoints   int       `json:"uniqueEndpoints"`
	FormsDiscovered   int       `json:"formsDiscovered"`
	CrawlSpeed        float64   `json:"crawlSpeed"` // pages per second
}

// CrawlResult is the full output of a crawl.
//
// URLs are canonical and deduplicated. Endpoints are API paths pulled from
// inline JavaScript. Errors records per-URL fetch failures; they never abort
// the crawl.
type CrawlResult struct {
	URLs      []string      `json:"urls"`
	Endpoints []string      `json:"endpoints"`
	Forms     []Form        `json:"forms"`
	Errors    []string      `json:"errors"`
	Metadata  CrawlMetadata `json:"metadata"`

	// Pages maps canonical URL to the fetched body: text/html pages, plus
	// 5xx responses whose bodies the exception analyser inspects. Probers
	// and static analysers read from here so they do not refetch what the
	// crawler already has.
	Pages map[string]string `json:"-"`

	// Statuses maps each URL that produced an HTTP response to its status
	// code.
	Statuses map[string]int `json:"-"`
}
