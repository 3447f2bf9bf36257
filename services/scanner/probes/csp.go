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
	"strings"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
)

// cspPolicy is a parsed Content-Security-Policy: directive name to source
// list.
type cspPolicy map[string][]string

// parseCSP decomposes a policy string. Directive names are lowercased;
// source expressions keep their case but comparisons below lowercase them.
func parseCSP(policy string) cspPolicy {
	out := make(cspPolicy)
	for _, directive := range strings.Split(policy, ";") {
		fields := strings.Fields(strings.TrimSpace(directive))
		if len(fields) == 0 {
			continue
		}
		name := strings.ToLower(fields[0])
		out[name] = fields[1:]
	}
	return out
}

// effectiveSources returns the sources for a directive, falling back to
// default-src per the CSP inheritance rules.
func (p cspPolicy) effectiveSources(directive string) ([]string, bool) {
	if sources, ok := p[directive]; ok {
		return sources, true
	}
	sources, ok := p["default-src"]
	return sources, ok
}

func sourcesContain(sources []string, keyword string) bool {
	for _, s := range sources {
		if strings.EqualFold(strings.Trim(s, "'"), strings.Trim(keyword, "'")) {
			return true
		}
	}
	return false
}

func sourcesHaveScheme(sources []string, scheme string) bool {
	for _, s := range sources {
		if strings.HasPrefix(strings.ToLower(s), scheme) {
			return true
		}
	}
	return false
}

// AnalyzeCSP grades a Content-Security-Policy with ten binary checks.
//
// # Description
//
// Each check yields one SecurityTest. A nonce in script-src does not excuse
// unsafe-inline: browsers that honor the nonce ignore unsafe-inline anyway,
// and older ones fall back to allowing everything, so the policy is graded
// as weak regardless. An empty policy returns a single failed presence
// test so callers do not need to special-case absence.
func AnalyzeCSP(policy string) []datatypes.SecurityTest {
	if strings.TrimSpace(policy) == "" {
		return []datatypes.SecurityTest{{
			Name: "CSP: policy defined", Passed: false, ScoreContribution: -10,
			Result: datatypes.ResultFailed,
			Reason: "No policy to analyse",
		}}
	}

	p := parseCSP(policy)
	var tests []datatypes.SecurityTest
	add := func(name string, passed bool, failScore int, passScore int, failReason, passReason, rec string) {
		t := datatypes.SecurityTest{Name: name, Passed: passed}
		if passed {
			t.ScoreContribution = passScore
			t.Result = datatypes.ResultPassed
			t.Reason = passReason
		} else {
			t.ScoreContribution = failScore
			t.Result = datatypes.ResultFailed
			t.Reason = failReason
			t.Recommendation = rec
		}
		tests = append(tests, t)
	}

	scriptSrc, _ := p.effectiveSources("script-src")
	add("CSP: script-src without unsafe-inline",
		!sourcesContain(scriptSrc, "unsafe-inline"),
		-10, 2,
		"script-src permits unsafe-inline", "script-src forbids unsafe-inline",
		"Replace unsafe-inline with nonces or hashes")

	add("CSP: script-src without unsafe-eval",
		!sourcesContain(scriptSrc, "unsafe-eval"),
		-10, 2,
		"script-src permits unsafe-eval", "script-src forbids unsafe-eval",
		"Remove unsafe-eval and eliminate string evaluation")

	objectSrc, objectDefined := p.effectiveSources("object-src")
	add("CSP: object-src 'none'",
		objectDefined && sourcesContain(objectSrc, "none"),
		-5, 2,
		"object-src is not 'none'", "object-src is 'none'",
		"Set object-src 'none' to block plugin content")

	styleSrc, _ := p.effectiveSources("style-src")
	add("CSP: style-src without unsafe-inline",
		!sourcesContain(styleSrc, "unsafe-inline"),
		-5, 2,
		"style-src permits unsafe-inline", "style-src forbids unsafe-inline",
		"Move styles to external sheets or use hashes")

	insecureScheme := false
	for _, sources := range p {
		if sourcesHaveScheme(sources, "http:") || sourcesHaveScheme(sources, "ftp:") {
			insecureScheme = true
			break
		}
	}
	add("CSP: no insecure schemes",
		!insecureScheme,
		-5, 2,
		"The policy allows http: or ftp: sources", "No insecure scheme sources",
		"Allow only https: sources")

	frameAncestors, frameDefined := p["frame-ancestors"]
	add("CSP: frame-ancestors restricted",
		frameDefined && (sourcesContain(frameAncestors, "none") || sourcesContain(frameAncestors, "self")),
		-5, 2,
		"frame-ancestors missing or permissive", "frame-ancestors restricted",
		"Set frame-ancestors 'none' or 'self'")

	defaultSrc, defaultDefined := p["default-src"]
	add("CSP: default-src 'none'",
		defaultDefined && sourcesContain(defaultSrc, "none"),
		-5, 2,
		"default-src 'none' not declared", "default-src 'none' declared",
		"Start from default-src 'none' and allow explicitly")

	baseURI, baseDefined := p["base-uri"]
	add("CSP: base-uri restricted",
		baseDefined && len(baseURI) > 0,
		-5, 2,
		"base-uri unrestricted; injected <base> tags can redirect relative URLs",
		"base-uri restricted",
		"Set base-uri 'self' or 'none'")

	formAction, formDefined := p["form-action"]
	add("CSP: form-action restricted",
		formDefined && len(formAction) > 0,
		-5, 2,
		"form-action unrestricted; forms can be made to post anywhere",
		"form-action restricted",
		"Set form-action 'self'")

	// strict-dynamic is informational in either direction.
	usesStrictDynamic := sourcesContain(scriptSrc, "strict-dynamic")
	strictTest := datatypes.SecurityTest{
		Name:   "CSP: strict-dynamic",
		Passed: true,
		Result: datatypes.ResultInfo,
	}
	if usesStrictDynamic {
		strictTest.Reason = "script-src uses strict-dynamic; host allow-lists are ignored by modern browsers"
	} else {
		strictTest.Reason = "script-src does not use strict-dynamic"
	}
	tests = append(tests, strictTest)

	return tests
}
