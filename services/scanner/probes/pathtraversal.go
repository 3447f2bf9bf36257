// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package probes

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// =============================================================================
// Payloads and Indicators
// =============================================================================

// traversalPayloads are read-only file references; the worst outcome is the
// server echoing a file it already exposes.
var traversalPayloads = []string{
	`../../../etc/passwd`,
	`..\..\..\windows\win.ini`,
	`..%2F..%2F..%2Fetc%2Fpasswd`,
	`..%252F..%252F..%252Fetc%252Fpasswd`,
	`../../../etc/passwd%00`,
	`/etc/passwd`,
	`/proc/self/environ`,
}

// traversalParams is the fixed parameter-name list payloads are injected
// under.
var traversalParams = []string{"file", "path", "page", "document", "load", "template", "src"}

// fileAccessHint marks URLs whose path or parameters suggest file handling.
var fileAccessHint = regexp.MustCompile(`(?i)file|path|doc|download|image|page|template|load`)

// traversalIndicators match filesystem content in the response.
var traversalIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^root:[^:]*:0:0:`),          // /etc/passwd line shape
	regexp.MustCompile(`(?im)^\[(?:boot loader|fonts|extensions|mci extensions)\]`), // Windows INI sections
	regexp.MustCompile(`(?m)^[A-Z_]+=[^\x00]*\x00`),     // /proc/self/environ entries
	regexp.MustCompile(`(?m)^daemon:[^:]*:\d+:\d+:`),
}

// matchTraversal reports whether body looks like leaked filesystem content.
func matchTraversal(body string) (string, bool) {
	for _, re := range traversalIndicators {
		if m := re.FindString(body); m != "" {
			return m, true
		}
	}
	return "", false
}

// =============================================================================
// Path-Traversal Prober
// =============================================================================

// PathProber probes file-access parameters with traversal payloads.
type PathProber struct {
	client *Client
}

// NewPathProber builds the prober with its own 500 ms pacing.
func NewPathProber(timeout time.Duration) *PathProber {
	return &PathProber{client: NewClient(500*time.Millisecond, timeout)}
}

// WithSession attaches authenticated-session credentials.
func (p *PathProber) WithSession(cookie string, headers map[string]string) *PathProber {
	return &PathProber{client: p.client.WithSession(cookie, headers)}
}

// Probe exercises candidate URLs.
//
// # Description
//
// Only URLs whose path or query suggests file access are considered. Each
// payload is tried under each name in the fixed parameter list; a response
// matching a filesystem indicator yields WSS-PATH-001 and ends probing for
// that URL.
func (p *PathProber) Probe(ctx context.Context, urls []string) ([]datatypes.Finding, []string) {
	var findings []datatypes.Finding
	var errs []string

	probed := 0
	for _, target := range urls {
		if probed >= MaxProbeURLs {
			break
		}
		if ctx.Err() != nil {
			break
		}

		u, err := url.Parse(target)
		if err != nil {
			continue
		}
		if !fileAccessHint.MatchString(u.Path) && !fileAccessHint.MatchString(u.RawQuery) {
			continue
		}
		probed++

		if f, ok := p.probeURL(ctx, u, target, &errs); ok {
			findings = append(findings, f)
		}
	}
	return findings, errs
}

// probeURL runs the payload grid against one URL, stopping at the first hit.
func (p *PathProber) probeURL(ctx context.Context, u *url.URL, target string, errs *[]string) (datatypes.Finding, bool) {
	for _, param := range traversalParams {
		for _, payload := range traversalPayloads {
			if ctx.Err() != nil {
				return datatypes.Finding{}, false
			}

			dup := *u
			q := dup.Query()
			q.Set(param, payload)
			dup.RawQuery = q.Encode()

			resp, err := p.client.Get(ctx, dup.String())
			if err != nil {
				*errs = append(*errs, fmt.Sprintf("%s: %v", dup.String(), err))
				continue
			}

			indicator, hit := matchTraversal(resp.Body)
			if !hit {
				continue
			}

			evidence := fmt.Sprintf("%s=%s -> %s", param, payload, indicator)
			finding, ferr := rules.NewFinding(rules.RulePathTraversal, target, evidence, "")
			if ferr != nil {
				*errs = append(*errs, ferr.Error())
				return datatypes.Finding{}, false
			}
			return finding, true
		}
	}
	return datatypes.Finding{}, false
}

// IsFileAccessCandidate reports whether a URL would be considered by this
// prober. The orchestrator uses it to log candidate counts before probing.
func IsFileAccessCandidate(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return fileAccessHint.MatchString(u.Path) || fileAccessHint.MatchString(strings.ToLower(u.RawQuery))
}
