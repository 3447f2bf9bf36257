// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyzers contains the static source-text analysers: JavaScript,
// HTML, and dependency manifests.
//
// All three share the shape Analyze(source, filename) []Finding. Matching is
// pattern based; a context adjuster downgrades confidence for framework or
// minified code so bundled library internals do not drown the report.
package analyzers

import (
	"regexp"
	"strings"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
)

// =============================================================================
// Source Context Detection
// =============================================================================

// Context captures the properties of a source file that influence finding
// confidence.
type Context struct {
	// IsFramework is true when the source matches a known framework or
	// utility-library signature. Framework is the human-readable name.
	IsFramework bool
	Framework   string

	// IsMinified is true when the source looks machine-generated.
	IsMinified bool

	// HasCSP is true when the page serving this source carries a
	// Content-Security-Policy.
	HasCSP bool
}

// frameworkSignatures maps a detection regex to the framework name used in
// finding descriptions.
var frameworkSignatures = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`@angular/core`), "Angular"},
	{regexp.MustCompile(`@Component\s*\(`), "Angular"},
	{regexp.MustCompile(`React\.createElement`), "React"},
	{regexp.MustCompile(`(?:import\s+(?:\w+|\{[^}]*\}|\*\s+as\s+\w+)\s+from\s+|require\(\s*)["']react["']`), "React"},
	{regexp.MustCompile(`\bcreateApp\s*\(`), "Vue"},
	{regexp.MustCompile(`\bdefineComponent\s*\(`), "Vue"},
	{regexp.MustCompile(`@sveltejs`), "Svelte"},
	{regexp.MustCompile(`\bjQuery\b|\$\.ajax\s*\(`), "jQuery"},
}

// lodashCall matches a lodash-prefixed call; three or more indicate lodash.
var lodashCall = regexp.MustCompile(`\b_\.\w+\s*\(`)

// Minification signatures. Any single hit flags the source.
var (
	webpackMarker   = regexp.MustCompile(`webpackBootstrap|__webpack_require__`)
	umdBoilerplate  = regexp.MustCompile(`typeof exports.*typeof module.*typeof define`)
	terserHeader    = regexp.MustCompile(`^\s*!function\s*\([^)]*\)\s*\{`)
	singleLetterRun = regexp.MustCompile(`\b[a-z]\b`)
)

// DetectContext classifies a source file.
//
// Framework detection checks the signature table plus the lodash call-count
// heuristic. Minification checks line length, single-letter identifier
// density, and bundler boilerplate.
func DetectContext(source string, hasCSP bool) Context {
	ctx := Context{HasCSP: hasCSP}

	if strings.Contains(source, "lodash") || len(lodashCall.FindAllStringIndex(source, 4)) >= 3 {
		ctx.IsFramework = true
		ctx.Framework = "Lodash"
	}
	for _, sig := range frameworkSignatures {
		if sig.re.MatchString(source) {
			ctx.IsFramework = true
			ctx.Framework = sig.name
			break
		}
	}

	ctx.IsMinified = detectMinified(source)
	return ctx
}

// detectMinified applies the minification heuristics.
func detectMinified(source string) bool {
	if webpackMarker.MatchString(source) || umdBoilerplate.MatchString(source) || terserHeader.MatchString(source) {
		return true
	}
	for _, line := range strings.Split(source, "\n") {
		if len(line) > 500 {
			return true
		}
	}
	// Ten or more single-letter identifiers within any 100-char window.
	hits := singleLetterRun.FindAllStringIndex(source, -1)
	for i := 0; i+9 < len(hits); i++ {
		if hits[i+9][0]-hits[i][0] <= 100 {
			return true
		}
	}
	return false
}

// =============================================================================
// Confidence Adjustment
// =============================================================================

// AdjustConfidence applies the context downgrades to a base confidence.
//
// # Description
//
// HIGH drops to MEDIUM in framework or minified code. Eval-family rules
// additionally drop to LOW when the page carries a CSP, since a policy
// without unsafe-eval neutralises the sink. Severity is never touched here.
//
// Idempotent: AdjustConfidence(AdjustConfidence(c, ctx), ctx) yields the
// same value.
func AdjustConfidence(base datatypes.Confidence, ctx Context, evalFamily bool) datatypes.Confidence {
	out := base
	if (ctx.IsFramework || ctx.IsMinified) && out == datatypes.ConfidenceHigh {
		out = datatypes.ConfidenceMedium
	}
	if evalFamily && ctx.HasCSP {
		out = datatypes.ConfidenceLow
	}
	return out
}

// contextSuffix is appended to finding descriptions for framework code.
func contextSuffix(ctx Context) string {
	if ctx.IsFramework && ctx.Framework != "" {
		return " (Found in " + ctx.Framework + " code - likely library code)"
	}
	if ctx.IsMinified {
		return " (Found in minified code - likely bundled library)"
	}
	return ""
}
