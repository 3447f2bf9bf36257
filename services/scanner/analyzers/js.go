// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyzers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// =============================================================================
// JavaScript Pattern Table
// =============================================================================

// evidenceRadius is how many characters of context surround a match.
const evidenceRadius = 50

// jsPattern binds a source regex to a rule.
type jsPattern struct {
	re         *regexp.Regexp
	ruleID     string
	evalFamily bool
}

var jsPatterns = []jsPattern{
	{regexp.MustCompile(`\beval\s*\(`), rules.RuleXSSEval, true},
	{regexp.MustCompile(`\bnew\s+Function\s*\(`), rules.RuleXSSEval, true},
	{regexp.MustCompile(`\.innerHTML\s*=`), rules.RuleXSSDOMSink, false},
	{regexp.MustCompile(`\.outerHTML\s*=`), rules.RuleXSSDOMSink, false},
	{regexp.MustCompile(`document\.write\s*\(`), rules.RuleXSSDOMSink, false},
	{regexp.MustCompile(`\bset(?:Timeout|Interval)\s*\(\s*["']`), rules.RuleXSSStringTimer, true},
	{regexp.MustCompile(`document\.cookie\s*=\s*["'][^"']*["']`), rules.RuleSECInsecureCookie, false},
	{regexp.MustCompile(`sk_live_[A-Za-z0-9]{20,}`), rules.RuleSECHardcodedKey, false},
	{regexp.MustCompile(`\bAKIA[A-Z0-9]{16}\b`), rules.RuleSECHardcodedKey, false},
	{regexp.MustCompile(`\bghp_[A-Za-z0-9]{20,}\b`), rules.RuleSECHardcodedKey, false},
	{regexp.MustCompile(`\bglpat-[A-Za-z0-9\-_]{20,}\b`), rules.RuleSECHardcodedKey, false},
}

// insecureCookieOK suppresses the cookie rule when the assignment already
// names Secure or SameSite.
var insecureCookieOK = regexp.MustCompile(`(?i)secure|samesite`)

// =============================================================================
// JavaScript Analyser
// =============================================================================

// AnalyzeJS scans JavaScript or TypeScript source for dangerous sinks and
// embedded secrets.
//
// # Description
//
// Comments are stripped before matching so commented-out code does not
// trigger findings; string and template literals survive stripping because
// secrets live inside them. Each match yields a finding with the line
// number and 50 characters of context on either side. Confidence is then
// adjusted for framework and minified sources, and the description is
// suffixed with the detected context so reviewers can triage library noise.
//
// # Inputs
//
//   - source: the raw script text.
//   - filename: used in the finding location (url or path).
//   - hasCSP: whether the serving page carries a Content-Security-Policy.
//
// # Outputs
//
//   - []datatypes.Finding: empty slice when nothing matches.
//   - error: only for registry programming errors (unknown rule id).
func AnalyzeJS(source, filename string, hasCSP bool) ([]datatypes.Finding, error) {
	stripped := stripComments(source)
	ctx := DetectContext(source, hasCSP)

	var findings []datatypes.Finding
	for _, p := range jsPatterns {
		for _, loc := range p.re.FindAllStringIndex(stripped, -1) {
			match := stripped[loc[0]:loc[1]]
			if p.ruleID == rules.RuleSECInsecureCookie && insecureCookieOK.MatchString(match) {
				continue
			}

			line := 1 + strings.Count(stripped[:loc[0]], "\n")
			evidence := contextWindow(stripped, loc[0], loc[1])
			location := fmt.Sprintf("%s:%d", filename, line)

			def := rules.MustGet(p.ruleID)
			description := def.Description + contextSuffix(ctx)
			finding, err := rules.NewFinding(p.ruleID, location, evidence, description)
			if err != nil {
				return nil, err
			}
			finding.Confidence = AdjustConfidence(finding.Confidence, ctx, p.evalFamily)
			findings = append(findings, finding)
		}
	}
	return findings, nil
}

// contextWindow returns the match plus up to evidenceRadius characters on
// each side, trimmed of leading and trailing whitespace.
func contextWindow(source string, start, end int) string {
	lo := start - evidenceRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + evidenceRadius
	if hi > len(source) {
		hi = len(source)
	}
	return strings.TrimSpace(source[lo:hi])
}

// stripComments removes // and /* */ comments while preserving string and
// template literals and the newline structure (line numbers stay stable).
func stripComments(source string) string {
	var out strings.Builder
	out.Grow(len(source))

	const (
		code = iota
		lineComment
		blockComment
		singleQuote
		doubleQuote
		template
	)
	state := code

	for i := 0; i < len(source); i++ {
		ch := source[i]
		var next byte
		if i+1 < len(source) {
			next = source[i+1]
		}

		switch state {
		case code:
			switch {
			case ch == '/' && next == '/':
				state = lineComment
				i++
			case ch == '/' && next == '*':
				state = blockComment
				i++
			case ch == '\'':
				state = singleQuote
				out.WriteByte(ch)
			case ch == '"':
				state = doubleQuote
				out.WriteByte(ch)
			case ch == '`':
				state = template
				out.WriteByte(ch)
			default:
				out.WriteByte(ch)
			}
		case lineComment:
			if ch == '\n' {
				state = code
				out.WriteByte(ch)
			}
		case blockComment:
			if ch == '\n' {
				out.WriteByte(ch)
			} else if ch == '*' && next == '/' {
				state = code
				i++
			}
		case singleQuote:
			out.WriteByte(ch)
			if ch == '\\' {
				if i+1 < len(source) {
					out.WriteByte(next)
					i++
				}
			} else if ch == '\'' || ch == '\n' {
				state = code
			}
		case doubleQuote:
			out.WriteByte(ch)
			if ch == '\\' {
				if i+1 < len(source) {
					out.WriteByte(next)
					i++
				}
			} else if ch == '"' || ch == '\n' {
				state = code
			}
		case template:
			out.WriteByte(ch)
			if ch == '\\' {
				if i+1 < len(source) {
					out.WriteByte(next)
					i++
				}
			} else if ch == '`' {
				state = code
			}
		}
	}
	return out.String()
}
