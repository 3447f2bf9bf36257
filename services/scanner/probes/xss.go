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
// Marker and Contexts
// =============================================================================

// XSSMarker is the opaque reflection probe value. It contains no markup and
// cannot execute; detection is purely substring presence.
const XSSMarker = "XSSTEST__MARKER__12345"

// xssParam is the query parameter the marker is injected under.
const xssParam = "xss_test"

// reflectionContext classifies where in the response the marker landed.
type reflectionContext int

const (
	contextNone reflectionContext = iota
	contextTextOnly
	contextElement
	contextScript
	contextEventHandler
	contextURLAttr
)

var (
	scriptBlockRe  = regexp.MustCompile(`(?is)<script[^>]*>[^<]*` + XSSMarker)
	eventHandlerRe = regexp.MustCompile(`(?i)on\w+\s*=\s*["'][^"']*` + XSSMarker)
	urlAttrRe      = regexp.MustCompile(`(?i)(?:href|src)\s*=\s*["'][^"']*` + XSSMarker)
	elementRe      = regexp.MustCompile(`(?is)<[a-z][^>]*>[^<]*` + XSSMarker + `[^<]*</`)
)

// classifyReflection determines the marker's reflection context in body.
// The dangerous contexts are checked most-specific first.
func classifyReflection(body string) reflectionContext {
	if !strings.Contains(body, XSSMarker) {
		return contextNone
	}
	switch {
	case scriptBlockRe.MatchString(body):
		return contextScript
	case eventHandlerRe.MatchString(body):
		return contextEventHandler
	case urlAttrRe.MatchString(body):
		return contextURLAttr
	case elementRe.MatchString(body):
		return contextElement
	default:
		return contextTextOnly
	}
}

// =============================================================================
// XSS Prober
// =============================================================================

// XSSProber checks candidate URLs for reflected marker injection.
type XSSProber struct {
	client *Client
}

// NewXSSProber builds the prober with its own 500 ms pacing.
func NewXSSProber(timeout time.Duration) *XSSProber {
	return &XSSProber{client: NewClient(500*time.Millisecond, timeout)}
}

// WithSession attaches authenticated-session credentials.
func (p *XSSProber) WithSession(cookie string, headers map[string]string) *XSSProber {
	return &XSSProber{client: p.client.WithSession(cookie, headers)}
}

// Probe injects the marker into each candidate URL and classifies any
// reflection.
//
// # Description
//
// For each URL (capped at MaxProbeURLs) the marker is added as an xss_test
// query parameter and the response body searched. A finding is emitted only
// for dangerous reflection contexts; text-only reflection is harmless and
// skipped. Confidence is HIGH for script, event-handler, and URL-attribute
// contexts, MEDIUM for plain element context. At most one finding per URL.
//
// Fetch errors are recorded per URL and never abort the probe.
func (p *XSSProber) Probe(ctx context.Context, urls []string) ([]datatypes.Finding, []string) {
	var findings []datatypes.Finding
	var errs []string

	for i, target := range urls {
		if i >= MaxProbeURLs {
			break
		}
		if ctx.Err() != nil {
			break
		}

		probeURL, err := injectParam(target, xssParam, XSSMarker)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", target, err))
			continue
		}

		resp, err := p.client.Get(ctx, probeURL)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", probeURL, err))
			continue
		}

		rc := classifyReflection(resp.Body)
		if rc == contextNone || rc == contextTextOnly {
			continue
		}

		evidence := reflectionEvidence(resp.Body)
		finding, err := rules.NewFinding(rules.RuleXSSReflected, target, evidence, "")
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if rc == contextElement {
			finding.Confidence = datatypes.ConfidenceMedium
		}
		findings = append(findings, finding)
	}
	return findings, errs
}

// injectParam adds or replaces a query parameter on a URL.
func injectParam(target, key, value string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// reflectionEvidence extracts the body region around the first marker hit.
func reflectionEvidence(body string) string {
	idx := strings.Index(body, XSSMarker)
	if idx < 0 {
		return ""
	}
	lo := idx - 100
	if lo < 0 {
		lo = 0
	}
	hi := idx + len(XSSMarker) + 100
	if hi > len(body) {
		hi = len(body)
	}
	return body[lo:hi]
}
