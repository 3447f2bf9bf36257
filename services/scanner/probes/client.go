// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package probes implements the dynamic, non-destructive vulnerability
// checks.
//
// Every prober in this package shares the same safety contract:
//
//   - Only GET and HEAD are issued; POST exists solely for marker payloads
//     to forms the crawler discovered. DELETE is never sent.
//   - Payloads are opaque markers or syntax fragments, never exploits.
//   - Each prober owns a pacing limiter (300 ms to 1 s between requests)
//     and caps how many URLs and forms it exercises.
//
// The Client type is the single place requests leave this package, which
// keeps the method restriction auditable.
package probes

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// Caps
// =============================================================================

const (
	// MaxProbeURLs caps how many URLs a single prober exercises.
	MaxProbeURLs = 10

	// MaxProbeForms caps how many forms a single prober exercises.
	MaxProbeForms = 3

	// maxProbeBody bounds how much of a probed response body is read.
	maxProbeBody = 512 * 1024
)

// =============================================================================
// Paced Client
// =============================================================================

// Response is the subset of an HTTP response probers inspect. FinalURL is
// the URL after any redirects the client followed.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
	FinalURL   string
}

// Client is a rate-limited HTTP client owned by exactly one prober.
//
// # Thread Safety
//
// The limiter serialises requests, preserving the prober's pacing contract
// even if a prober fans out internally. Session credentials are set at
// construction and never mutated.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	cookie  string
	headers map[string]string
}

// NewClient builds a paced client. pace is the minimum interval between
// successive requests; timeout applies per request.
func NewClient(pace, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(pace), 1),
	}
}

// WithSession returns a copy of the client that attaches the given cookie
// header and extra headers to every request.
func (c *Client) WithSession(cookie string, headers map[string]string) *Client {
	dup := *c
	dup.cookie = cookie
	dup.headers = headers
	return &dup
}

// Get issues a paced GET.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, http.MethodGet, url, "")
}

// Head issues a paced HEAD.
func (c *Client) Head(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, http.MethodHead, url, "")
}

// PostForm issues a paced POST with a form-encoded marker body. Callers must
// only pass marker payloads; this is the single state-changing verb the
// package can emit.
func (c *Client) PostForm(ctx context.Context, url, encodedBody string) (*Response, error) {
	return c.do(ctx, http.MethodPost, url, encodedBody)
}

func (c *Client) do(ctx context.Context, method, url, body string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "WebSecScan/1.0 (+https://github.com/Pranavraut033/WebSecScan)")
	if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(raw),
		FinalURL:   resp.Request.URL.String(),
	}, nil
}
