// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize converts user-supplied target strings into canonical,
// probed URLs suitable for scanning.
//
// Normalisation is the gate every scan passes through: it validates the
// authority, prefers HTTPS, follows redirects to the final URL, and seeds
// an insecure-transport finding when the target only answers over plain
// HTTP. Loopback, RFC 1918, and .local targets are allowed (development
// convenience); link-local addresses and embedded credentials are not.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidTarget is returned for targets rejected before any probe:
	// embedded credentials, link-local addresses, unparseable authority.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrUnreachable is returned when no protocol probe succeeds.
	ErrUnreachable = errors.New("target unreachable")
)

// maxRedirects bounds redirect following during the probe.
const maxRedirects = 5

// =============================================================================
// Options and Result
// =============================================================================

// Options configures normalisation.
type Options struct {
	// PreferHTTPS upgrades http targets when an HTTPS probe succeeds.
	PreferHTTPS bool

	// CheckRedirects follows up to five redirects and records the final URL.
	CheckRedirects bool

	// Timeout is the per-probe timeout.
	Timeout time.Duration

	// Client overrides the HTTP client used for probing (tests).
	// When nil a client honoring Timeout is constructed.
	Client *http.Client
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		PreferHTTPS:    true,
		CheckRedirects: true,
		Timeout:        10 * time.Second,
	}
}

// Result is the outcome of a successful normalisation.
type Result struct {
	// NormalizedURL is the probed, scheme-qualified target.
	NormalizedURL string `json:"normalizedUrl"`

	// Protocol is the final scheme, "http" or "https".
	Protocol string `json:"protocol"`

	// Redirected is true when the probe followed at least one redirect.
	Redirected bool `json:"redirected"`

	// FinalURL is the URL after redirects (equal to NormalizedURL otherwise).
	FinalURL string `json:"finalUrl"`

	// Warnings are human-readable notes (scheme defaulting, upgrades).
	Warnings []string `json:"warnings"`

	// SecurityThreats are seed findings produced during normalisation,
	// currently the insecure-transport finding for http-only targets.
	SecurityThreats []datatypes.Finding `json:"securityThreats"`
}

// =============================================================================
// Normalisation
// =============================================================================

// Normalize validates, canonicalises, and probes a target string.
//
// # Description
//
// The order of operations follows the scan contract:
//
//  1. Reject embedded credentials, link-local (169.254.0.0/16) hosts, and
//     unparseable authorities.
//  2. Prepend https:// when no scheme is given.
//  3. Probe HTTPS first when preferred; fall back to HTTP. When both
//     probes succeed HTTPS wins; when both fail, ErrUnreachable.
//  4. Follow up to five redirects, capturing the final URL.
//  5. Seed a HIGH/HIGH insecure-transport finding when the final scheme
//     is http.
//
// # Outputs
//
//   - *Result: nil on error. The caller treats an error as a scan that is
//     never created (ErrInvalidTarget) or FAILED (ErrUnreachable).
func Normalize(ctx context.Context, raw string, opts Options) (*Result, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty target", ErrInvalidTarget)
	}

	res := &Result{}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
		res.Warnings = append(res.Warnings, "No scheme provided, defaulting to HTTPS")
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("%w: unparseable authority in %q", ErrInvalidTarget, raw)
	}
	if parsed.User != nil {
		return nil, fmt.Errorf("%w: embedded credentials are not accepted", ErrInvalidTarget)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, parsed.Scheme)
	}
	if isLinkLocal(parsed.Hostname()) {
		return nil, fmt.Errorf("%w: link-local addresses are not scannable", ErrInvalidTarget)
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultOptions().Timeout
		}
		client = &http.Client{Timeout: timeout}
	}

	// Candidate order: HTTPS first when preferred or already https, then
	// the http fallback. The first reachable candidate wins, which encodes
	// the "HTTPS wins when both succeed" tie-break.
	candidates := candidateURLs(parsed, opts.PreferHTTPS)

	var lastErr error
	for i, candidate := range candidates {
		final, redirected, err := probe(ctx, client, candidate, opts.CheckRedirects)
		if err != nil {
			lastErr = err
			continue
		}
		if i > 0 || candidate.Scheme != parsed.Scheme {
			if candidate.Scheme == "https" && parsed.Scheme == "http" {
				res.Warnings = append(res.Warnings, "Upgraded HTTP to HTTPS")
			}
		}
		res.NormalizedURL = candidate.String()
		res.FinalURL = final.String()
		res.Redirected = redirected
		res.Protocol = final.Scheme

		if res.Protocol == "http" {
			finding, ferr := rules.NewFinding(rules.RuleSECInsecureProto, res.FinalURL, "", "")
			if ferr != nil {
				return nil, ferr
			}
			res.SecurityThreats = append(res.SecurityThreats, finding)
		}
		return res, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no probe candidates")
	}
	return nil, fmt.Errorf("%w: %v", ErrUnreachable, lastErr)
}

// candidateURLs builds the probe order for a parsed target.
func candidateURLs(parsed *url.URL, preferHTTPS bool) []*url.URL {
	httpsURL := *parsed
	httpsURL.Scheme = "https"
	httpURL := *parsed
	httpURL.Scheme = "http"

	if parsed.Scheme == "http" && !preferHTTPS {
		return []*url.URL{&httpURL}
	}
	return []*url.URL{&httpsURL, &httpURL}
}

// probe issues a HEAD request and reports the post-redirect URL.
func probe(ctx context.Context, client *http.Client, target *url.URL, followRedirects bool) (*url.URL, bool, error) {
	// Copy the client so redirect policy does not leak to other callers.
	probeClient := *client
	redirects := 0
	if followRedirects {
		probeClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			redirects = len(via)
			return nil
		}
	} else {
		probeClient.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := probeClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, false, fmt.Errorf("probe %s: status %d", target, resp.StatusCode)
	}

	final := resp.Request.URL
	return final, redirects > 0 || final.String() != target.String(), nil
}

// isLinkLocal reports whether host is an IPv4 link-local (169.254.0.0/16)
// or IPv6 link-local address.
func isLinkLocal(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}
