// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package authsession

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/probes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// =============================================================================
// Bypass Parameters
// =============================================================================

// bypassPace is the mandatory delay between bypass variants.
const bypassPace = 500 * time.Millisecond

// bypassParams are the parameter names tried against each protected page.
var bypassParams = []string{"admin", "authenticated", "auth", "user", "role", "debug", "bypass"}

// truthyValues are the values tried per parameter.
var truthyValues = []string{"true", "1", "yes", "admin"}

// loginLikeURL reports whether a URL looks like a login redirect target.
func loginLikeURL(raw string) bool {
	lower := strings.ToLower(raw)
	for _, marker := range []string{"login", "signin", "sign-in", "auth", "sso"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// =============================================================================
// Bypass Checker
// =============================================================================

// BypassChecker probes protected pages for access-control failures. It is
// plain HTTP, not browser-driven; every request is paced.
type BypassChecker struct {
	client *probes.Client
}

// NewBypassChecker builds the checker with the 500 ms bypass pacing.
func NewBypassChecker(timeout time.Duration) *BypassChecker {
	return newBypassChecker(bypassPace, timeout)
}

func newBypassChecker(pace, timeout time.Duration) *BypassChecker {
	return &BypassChecker{client: probes.NewClient(pace, timeout)}
}

// Check exercises each protected page with the three bypass variants.
//
// # Description
//
// For every protected page (bounded by the auth config's 20-page cap):
//
//  1. Direct unauthenticated GET. HTTP 200 without a redirect to a
//     login-like URL is a CRITICAL direct bypass.
//  2. GET with a tampered session token. HTTP 200 is a HIGH finding; the
//     server accepted a modified credential.
//  3. GET with each bypass parameter set to common truthy values. Access
//     is a CRITICAL parameter-based bypass with the winning pair in the
//     evidence.
//
// sessionCookie is the legitimate header from login; it is only used to
// derive the tampered variant and is never included verbatim in findings.
func (b *BypassChecker) Check(ctx context.Context, protectedPages []string, sessionCookie string) ([]datatypes.Finding, []string) {
	var findings []datatypes.Finding
	var errs []string

	for _, page := range protectedPages {
		if ctx.Err() != nil {
			break
		}

		if f, ok := b.checkDirect(ctx, page, &errs); ok {
			findings = append(findings, f)
			// A page open to everyone makes the other variants moot.
			continue
		}
		if sessionCookie != "" {
			if f, ok := b.checkTampered(ctx, page, sessionCookie, &errs); ok {
				findings = append(findings, f)
			}
		}
		if f, ok := b.checkParams(ctx, page, &errs); ok {
			findings = append(findings, f)
		}
	}
	return findings, errs
}

// accessible reports whether a response grants access to protected content.
func accessible(resp *probes.Response) bool {
	return resp.StatusCode == 200 && !loginLikeURL(resp.FinalURL)
}

func (b *BypassChecker) checkDirect(ctx context.Context, page string, errs *[]string) (datatypes.Finding, bool) {
	resp, err := b.client.Get(ctx, page)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", page, err))
		return datatypes.Finding{}, false
	}
	if !accessible(resp) {
		return datatypes.Finding{}, false
	}
	f, err := rules.NewFinding(rules.RuleAuthBypassDirect, page,
		fmt.Sprintf("unauthenticated GET returned %d", resp.StatusCode), "")
	if err != nil {
		*errs = append(*errs, err.Error())
		return datatypes.Finding{}, false
	}
	return f, true
}

func (b *BypassChecker) checkTampered(ctx context.Context, page, sessionCookie string, errs *[]string) (datatypes.Finding, bool) {
	tampered := tamperCookie(sessionCookie)
	resp, err := b.client.WithSession(tampered, nil).Get(ctx, page)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", page, err))
		return datatypes.Finding{}, false
	}
	if !accessible(resp) {
		return datatypes.Finding{}, false
	}
	f, err := rules.NewFinding(rules.RuleAuthTamperedToken, page,
		"modified session token was accepted", "")
	if err != nil {
		*errs = append(*errs, err.Error())
		return datatypes.Finding{}, false
	}
	return f, true
}

func (b *BypassChecker) checkParams(ctx context.Context, page string, errs *[]string) (datatypes.Finding, bool) {
	base, err := url.Parse(page)
	if err != nil {
		return datatypes.Finding{}, false
	}

	for _, param := range bypassParams {
		for _, value := range truthyValues {
			if ctx.Err() != nil {
				return datatypes.Finding{}, false
			}

			dup := *base
			q := dup.Query()
			q.Set(param, value)
			dup.RawQuery = q.Encode()

			resp, err := b.client.Get(ctx, dup.String())
			if err != nil {
				*errs = append(*errs, fmt.Sprintf("%s: %v", dup.String(), err))
				continue
			}
			if !accessible(resp) {
				continue
			}

			evidence := fmt.Sprintf("%s=%s granted access to %s", param, value, page)
			f, ferr := rules.NewFinding(rules.RuleAuthBypassParam, page, evidence, "")
			if ferr != nil {
				*errs = append(*errs, ferr.Error())
				return datatypes.Finding{}, false
			}
			return f, true
		}
	}
	return datatypes.Finding{}, false
}

// tamperCookie flips characters in each cookie value so the format stays
// plausible but the token is invalid.
func tamperCookie(header string) string {
	parts := strings.Split(header, "; ")
	for i, part := range parts {
		name, value, found := strings.Cut(part, "=")
		if !found || value == "" {
			continue
		}
		parts[i] = name + "=" + mutateToken(value)
	}
	return strings.Join(parts, "; ")
}

// mutateToken changes a handful of characters without altering length.
func mutateToken(token string) string {
	runes := []rune(token)
	for i := 0; i < len(runes); i += 4 {
		switch {
		case runes[i] >= 'a' && runes[i] < 'z':
			runes[i]++
		case runes[i] >= '0' && runes[i] < '9':
			runes[i]++
		default:
			runes[i] = 'x'
		}
	}
	return string(runes)
}
