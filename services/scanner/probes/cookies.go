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
	"fmt"
	"regexp"
	"strings"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// sessionCookieName matches cookie names that carry authentication state.
var sessionCookieName = regexp.MustCompile(`(?i)sess|auth|token|jwt|sid|login|user`)

// minCookieTokenLength is the shortest session value not flagged as weak.
const minCookieTokenLength = 16

// parsedCookie is one Set-Cookie header decomposed into its parts.
type parsedCookie struct {
	name     string
	value    string
	secure   bool
	httpOnly bool
	sameSite string // "", "lax", "strict", "none"
}

// parseSetCookie decomposes a Set-Cookie header value.
func parseSetCookie(header string) (parsedCookie, bool) {
	parts := strings.Split(header, ";")
	if len(parts) == 0 {
		return parsedCookie{}, false
	}
	name, value, found := strings.Cut(strings.TrimSpace(parts[0]), "=")
	if !found || name == "" {
		return parsedCookie{}, false
	}

	c := parsedCookie{name: name, value: value}
	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		lower := strings.ToLower(attr)
		switch {
		case lower == "secure":
			c.secure = true
		case lower == "httponly":
			c.httpOnly = true
		case strings.HasPrefix(lower, "samesite="):
			c.sameSite = strings.TrimPrefix(lower, "samesite=")
		}
	}
	return c, true
}

// AnalyzeCookies inspects Set-Cookie headers for session-cookie weaknesses.
//
// # Description
//
// Only cookies with session-like names are held to the full attribute
// contract; other cookies are ignored. For each session cookie on an HTTPS
// target: missing Secure is HIGH, missing HttpOnly is MEDIUM, missing or
// None-without-Secure SameSite is MEDIUM, and a value shorter than 16
// characters is a HIGH weak-token finding.
//
// This analyser issues no requests of its own; it consumes the Set-Cookie
// headers the headers prober already captured.
func AnalyzeCookies(setCookies []string, target string, isHTTPS bool) []datatypes.Finding {
	var findings []datatypes.Finding
	add := func(ruleID, evidence string) {
		if f, err := rules.NewFinding(ruleID, target, evidence, ""); err == nil {
			findings = append(findings, f)
		}
	}

	for _, header := range setCookies {
		cookie, ok := parseSetCookie(header)
		if !ok || !sessionCookieName.MatchString(cookie.name) {
			continue
		}

		if isHTTPS && !cookie.secure {
			add(rules.RuleAuthCookieSecure, fmt.Sprintf("cookie %s lacks Secure", cookie.name))
		}
		if !cookie.httpOnly {
			add(rules.RuleAuthCookieHTTP, fmt.Sprintf("cookie %s lacks HttpOnly", cookie.name))
		}
		if cookie.sameSite == "" || (cookie.sameSite == "none" && !cookie.secure) {
			add(rules.RuleAuthSameSite, fmt.Sprintf("cookie %s SameSite=%q", cookie.name, cookie.sameSite))
		}
		if len(cookie.value) < minCookieTokenLength {
			add(rules.RuleAuthWeakToken, fmt.Sprintf("cookie %s value length %d", cookie.name, len(cookie.value)))
		}
	}
	return findings
}
