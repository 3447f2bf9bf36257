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
	"regexp"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// minSuspectBodyBytes is the body size above which non-5xx responses are
// still inspected (large error pages often return 200).
const minSuspectBodyBytes = 1024

// technicalTerms gates large-body inspection so ordinary content pages are
// not pattern-matched.
var technicalTerms = regexp.MustCompile(`(?i)exception|stack ?trace|traceback|error|fatal|warning|debug`)

// stackTraceSignatures identify language runtimes by their trace shapes.
var stackTraceSignatures = []struct {
	language string
	re       *regexp.Regexp
}{
	{"JavaScript", regexp.MustCompile(`at \w[\w.<>]*(?:\s+\(| \()[^)]*:\d+:\d+\)`)},
	{"JavaScript", regexp.MustCompile(`(?m)^\s*at Object\.<anonymous>`)},
	{"Python", regexp.MustCompile(`Traceback \(most recent call last\)`)},
	{"Java", regexp.MustCompile(`(?m)^\s*at [\w.$]+\([\w.]+\.java:\d+\)`)},
	{"PHP", regexp.MustCompile(`(?i)PHP (?:Fatal error|Warning|Notice)|Stack trace:\s*#0`)},
	{"Ruby", regexp.MustCompile(`\w+\.rb:\d+:in `)},
	{".NET", regexp.MustCompile(`System\.\w+(?:\.\w+)*Exception|   at [\w.]+\(.*\) in .*\.cs:line \d+`)},
}

// debugIndicators reveal a debug-configured deployment.
var debugIndicators = []*regexp.Regexp{
	regexp.MustCompile(`NODE_ENV\s*[=:]\s*["']?development`),
	regexp.MustCompile(`(?i)\bDEBUG\s*[=:]\s*["']?true`),
	regexp.MustCompile(`(?i)APP_DEBUG\s*[=:]\s*["']?true`),
	regexp.MustCompile(`console\.log\(`),
}

// sensitivePatterns leak internal infrastructure details.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:mongodb|mysql|postgres(?:ql)?|redis)://[^\s"'<]+`),
	regexp.MustCompile(`(?:/usr|/var|/etc|/home|/root)/[\w./-]+`),
	regexp.MustCompile(`(?i)syntax error (?:at or )?near`),
	regexp.MustCompile(`(?i)ClassNotFoundException|NoClassDefFoundError`),
	regexp.MustCompile(`(?i)connection string|data source=`),
}

// AnalyzeException inspects one response for error-handling leaks.
//
// # Description
//
// Applies to responses with a 5xx status, or any body over 1 KiB that
// contains technical vocabulary. Three independent checks run against the
// body: stack-trace signatures (WSS-EXC-001), debug-mode indicators
// (WSS-EXC-002), and sensitive internals such as connection strings or
// filesystem paths (WSS-EXC-003). Each check emits at most one finding per
// response.
func AnalyzeException(statusCode int, body, sourceURL string) []datatypes.Finding {
	eligible := statusCode >= 500 && statusCode <= 599
	if !eligible {
		eligible = len(body) > minSuspectBodyBytes && technicalTerms.MatchString(body)
	}
	if !eligible {
		return nil
	}

	var findings []datatypes.Finding
	add := func(ruleID, evidence, override string) {
		if f, err := rules.NewFinding(ruleID, sourceURL, evidence, override); err == nil {
			findings = append(findings, f)
		}
	}

	for _, sig := range stackTraceSignatures {
		if m := sig.re.FindString(body); m != "" {
			add(rules.RuleExcStackTrace, m,
				"The response body contains a "+sig.language+" stack trace")
			break
		}
	}

	for _, re := range debugIndicators {
		if m := re.FindString(body); m != "" {
			add(rules.RuleExcDebugMode, m, "")
			break
		}
	}

	for _, re := range sensitivePatterns {
		if m := re.FindString(body); m != "" {
			add(rules.RuleExcSensitive, m, "")
			break
		}
	}

	return findings
}
