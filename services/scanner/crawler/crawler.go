// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package crawler implements breadth-first, politeness-constrained URL
// discovery.
//
// The crawl is bounded on every axis: page count, depth, per-request
// timeout, and a global pacing interval enforced with a token-bucket rate
// limiter. robots.txt (the "*" group) is honored by default; per-URL fetch
// failures are recorded and never abort the crawl. The crawl fails only
// when the seed itself cannot be fetched.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
)

// =============================================================================
// Constants and Errors
// =============================================================================

// UserAgent identifies the scanner in every crawl request.
const UserAgent = "WebSecScan/1.0 (+https://github.com/Pranavraut033/WebSecScan)"

// maxBodyBytes bounds how much of any response body is read.
const maxBodyBytes = 2 * 1024 * 1024

// ErrSeedUnreachable is returned when the seed URL cannot be fetched.
var ErrSeedUnreachable = errors.New("seed url unreachable")

// EventSink receives progress events for the live log stream. May be nil.
type EventSink func(level datatypes.LogLevel, message string)

// =============================================================================
// Crawler
// =============================================================================

// Crawler performs one breadth-first crawl per call to Crawl.
//
// # Thread Safety
//
// A Crawler may be reused sequentially; the visited set and all counters
// are local to each Crawl invocation. Concurrent Crawl calls on the same
// instance are not supported (the limiter is shared).
type Crawler struct {
	opts    datatypes.CrawlerOptions
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	sink    EventSink
}

// queueEntry is one BFS work item.
type queueEntry struct {
	url   string // canonical
	depth int
}

// New creates a crawler with validated options.
func New(opts datatypes.CrawlerOptions, logger *slog.Logger, sink EventSink) (*Crawler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout()},
		limiter: rate.NewLimiter(rate.Every(opts.RateLimit()), 1),
		logger:  logger,
		sink:    sink,
	}, nil
}

// emit publishes a progress event when a sink is attached.
func (c *Crawler) emit(level datatypes.LogLevel, format string, args ...any) {
	if c.sink != nil {
		c.sink(level, fmt.Sprintf(format, args...))
	}
}

// Crawl discovers URLs, API endpoints, and forms reachable from seed.
//
// # Description
//
// The traversal:
//
//  1. Fetches robots.txt and sitemap.xml at the seed origin (both
//     best-effort).
//  2. Enqueues the seed first, then sitemap URLs, at depth 0. The seed
//     leads the queue so a large sitemap cannot exhaust the page budget
//     before it is fetched.
//  3. BFS: dedupe on canonical form, honor depth and page bounds, honor
//     robots Disallow for the "*" group, pace every fetch through the
//     limiter (the first fetch consumes the initial token and does not
//     sleep), parse only text/html, extract links/endpoints/forms, and
//     enqueue unseen canonical URLs at depth+1.
//
// External-origin links are dropped unless AllowExternal is set.
//
// # Outputs
//
//   - *datatypes.CrawlResult: always non-nil on success; per-URL failures
//     are inside Errors.
//   - error: ErrSeedUnreachable (wrapped) when the seed fetch fails, or
//     the context's error on cancellation.
func (c *Crawler) Crawl(ctx context.Context, seed string) (*datatypes.CrawlResult, error) {
	seedURL, err := url.Parse(seed)
	if err != nil || seedURL.Host == "" {
		return nil, fmt.Errorf("%w: unparseable seed %q", ErrSeedUnreachable, seed)
	}

	result := &datatypes.CrawlResult{
		Pages:    make(map[string]string),
		Statuses: make(map[string]int),
	}
	meta := &result.Metadata
	meta.StartTime = time.Now()
	meta.RobotsRespected = c.opts.RespectRobotsTxt

	var robotsGroup *robotstxt.Group
	if c.opts.RespectRobotsTxt {
		robotsGroup = c.fetchRobots(ctx, seedURL)
		meta.TotalRequests++
	}
	sitemapURLs := c.fetchSitemap(ctx, seedURL)
	meta.TotalRequests++
	if len(sitemapURLs) > 0 {
		c.emit(datatypes.LogInfo, "sitemap.xml seeded %d urls", len(sitemapURLs))
	}

	visited := make(map[string]struct{})
	endpoints := make(map[string]struct{})
	formsSeen := make(map[string]struct{})
	canonicalSeed := Canonical(seed)
	queue := []queueEntry{{url: canonicalSeed, depth: 0}}
	for _, loc := range sitemapURLs {
		queue = append(queue, queueEntry{url: Canonical(loc), depth: 0})
	}

	var (
		seedFetched   bool
		seedErr       error
		totalRespTime time.Duration
	)

	for len(queue) > 0 && len(visited) < c.opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := queue[0]
		queue = queue[1:]

		if _, seen := visited[entry.url]; seen {
			continue
		}
		if entry.depth > c.opts.MaxDepth {
			continue
		}

		entryURL, err := url.Parse(entry.url)
		if err != nil {
			continue
		}
		if !c.opts.AllowExternal && !sameOrigin(entryURL, seedURL) {
			continue
		}

		if c.opts.RespectRobotsTxt && robotsGroup != nil && !robotsGroup.Test(entryURL.Path) {
			meta.SkippedByRobots++
			c.emit(datatypes.LogWarning, "skipped by robots.txt: %s", entry.url)
			continue
		}

		// Global pacing. The limiter starts with one token, so the first
		// fetch proceeds without sleeping.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, contentType, status, elapsed, fetchErr := c.fetch(ctx, entry.url)
		meta.TotalRequests++
		visited[entry.url] = struct{}{}
		if entry.depth > meta.MaxDepthReached {
			meta.MaxDepthReached = entry.depth
		}

		if fetchErr != nil {
			meta.FailedRequests++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.url, fetchErr))
			if entry.url == canonicalSeed {
				seedErr = fetchErr
			}
			continue
		}
		result.Statuses[entry.url] = status
		if status < 200 || status > 299 {
			meta.FailedRequests++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: status %d", entry.url, status))
			// 5xx bodies are kept: server error output is exactly what
			// the exception analyser inspects.
			if status >= 500 && body != "" {
				result.Pages[entry.url] = body
			}
			if entry.url == canonicalSeed {
				seedErr = fmt.Errorf("status %d", status)
			}
			continue
		}
		if entry.url == canonicalSeed {
			seedFetched = true
		}

		meta.PagesScanned++
		meta.TotalBytes += int64(len(body))
		totalRespTime += elapsed

		if !strings.Contains(contentType, "text/html") {
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: parse: %v", entry.url, err))
			continue
		}
		result.Pages[entry.url] = body

		extracted := c.extractPage(doc, entry.url)
		for _, ep := range extracted.endpoints {
			endpoints[ep] = struct{}{}
		}
		for _, form := range extracted.forms {
			key := form.Method + " " + Canonical(form.Action)
			if _, dup := formsSeen[key]; dup {
				continue
			}
			formsSeen[key] = struct{}{}
			result.Forms = append(result.Forms, form)
		}

		for _, link := range extracted.links {
			canonical := Canonical(link)
			if _, seen := visited[canonical]; seen {
				continue
			}
			linkURL, err := url.Parse(canonical)
			if err != nil {
				continue
			}
			if !c.opts.AllowExternal && !sameOrigin(linkURL, seedURL) {
				continue
			}
			queue = append(queue, queueEntry{url: canonical, depth: entry.depth + 1})
		}
	}

	if !seedFetched {
		if seedErr == nil {
			seedErr = errors.New("seed was never fetched")
		}
		return nil, fmt.Errorf("%w: %v", ErrSeedUnreachable, seedErr)
	}

	meta.EndTime = time.Now()
	meta.DurationMs = meta.EndTime.Sub(meta.StartTime).Milliseconds()
	if meta.PagesScanned > 0 {
		meta.AvgResponseTimeMs = float64(totalRespTime.Milliseconds()) / float64(meta.PagesScanned)
	}
	if secs := meta.EndTime.Sub(meta.StartTime).Seconds(); secs > 0 {
		meta.CrawlSpeed = float64(meta.PagesScanned) / secs
	}

	for _, u := range sortedKeys(visited) {
		result.URLs = append(result.URLs, u)
	}
	result.Endpoints = sortedKeys(endpoints)
	meta.UniqueEndpoints = len(result.Endpoints)
	meta.FormsDiscovered = len(result.Forms)

	c.emit(datatypes.LogInfo, "crawl finished: %d pages, %d endpoints, %d forms",
		meta.PagesScanned, meta.UniqueEndpoints, meta.FormsDiscovered)
	c.logger.Info("crawl finished",
		"pages", meta.PagesScanned,
		"endpoints", meta.UniqueEndpoints,
		"forms", meta.FormsDiscovered,
		"failed", meta.FailedRequests)

	return result, nil
}

// fetch GETs one URL and returns body, content type, status, and elapsed
// time. Non-2xx answers are not errors here; the caller decides what to
// keep.
func (c *Crawler) fetch(ctx context.Context, target string) (body, contentType string, status int, elapsed time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", "", 0, 0, err
	}
	req.Header.Set("User-Agent", UserAgent)
	if c.opts.SessionCookie != "" {
		req.Header.Set("Cookie", c.opts.SessionCookie)
	}
	for k, v := range c.opts.SessionExtraHeaders {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed = time.Since(start)
	if err != nil {
		return "", "", 0, elapsed, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", "", resp.StatusCode, elapsed, err
	}
	return string(raw), resp.Header.Get("Content-Type"), resp.StatusCode, elapsed, nil
}
