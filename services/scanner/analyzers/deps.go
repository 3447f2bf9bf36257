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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/blang/semver/v4"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// =============================================================================
// Advisory Set
// =============================================================================

// Advisory describes one known-vulnerable version range of a package.
type Advisory struct {
	Range    string // blang/semver range expression
	Severity datatypes.Severity
	Summary  string
	Patched  string
	URL      string
}

// advisories is the static advisory set consulted by AnalyzeManifest.
// Keyed by npm package name.
var advisories = map[string][]Advisory{
	"lodash": {
		{Range: "<4.17.21", Severity: datatypes.SeverityHigh,
			Summary: "Command injection via template",
			Patched: "4.17.21", URL: "https://github.com/advisories/GHSA-35jh-r3h4-6jhm"},
	},
	"jquery": {
		{Range: "<3.5.0", Severity: datatypes.SeverityMedium,
			Summary: "XSS via htmlPrefilter regex",
			Patched: "3.5.0", URL: "https://github.com/advisories/GHSA-gxr4-xjj5-5px2"},
	},
	"minimist": {
		{Range: "<1.2.6", Severity: datatypes.SeverityCritical,
			Summary: "Prototype pollution",
			Patched: "1.2.6", URL: "https://github.com/advisories/GHSA-xvch-5gv4-984h"},
	},
	"axios": {
		{Range: "<0.21.2", Severity: datatypes.SeverityHigh,
			Summary: "SSRF via redirect handling",
			Patched: "0.21.2", URL: "https://github.com/advisories/GHSA-cph5-m8f7-6c5x"},
	},
	"node-fetch": {
		{Range: "<2.6.7", Severity: datatypes.SeverityHigh,
			Summary: "Exposure of sensitive headers to untrusted sites",
			Patched: "2.6.7", URL: "https://github.com/advisories/GHSA-r683-j2x4-v87g"},
	},
	"handlebars": {
		{Range: "<4.7.7", Severity: datatypes.SeverityCritical,
			Summary: "Remote code execution via compiled templates",
			Patched: "4.7.7", URL: "https://github.com/advisories/GHSA-f2jv-r9rf-7988"},
	},
	"moment": {
		{Range: "<2.29.4", Severity: datatypes.SeverityHigh,
			Summary: "Path traversal in locale loading",
			Patched: "2.29.4", URL: "https://github.com/advisories/GHSA-8hfj-j24r-96c4"},
	},
	"serialize-javascript": {
		{Range: "<3.1.0", Severity: datatypes.SeverityHigh,
			Summary: "Cross-site scripting via object deserialization",
			Patched: "3.1.0", URL: "https://github.com/advisories/GHSA-hxcc-f52p-wc94"},
	},
}

// =============================================================================
// Manifest Analyser
// =============================================================================

// packageManifest is the subset of package.json the analyser reads.
type packageManifest struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// AnalyzeManifest audits a package.json body against the advisory set.
//
// # Description
//
// Direct and dev dependencies are flattened and each (name, version) pair
// is tested against the advisory ranges. Range operators in the declared
// version (^, ~, >=) are stripped before parsing; a dependency whose
// version cannot be parsed as semver is skipped silently, since npm tags
// like "latest" carry no range information. An unparseable manifest yields
// a single WSS-DEP-002 finding rather than an error.
func AnalyzeManifest(body []byte, manifestURL string) ([]datatypes.Finding, error) {
	var manifest packageManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		f, ferr := rules.NewFinding(rules.RuleDepUnparseable, manifestURL, "", "")
		if ferr != nil {
			return nil, ferr
		}
		return []datatypes.Finding{f}, nil
	}

	flat := make(map[string]string, len(manifest.Dependencies)+len(manifest.DevDependencies))
	for name, version := range manifest.Dependencies {
		flat[name] = version
	}
	for name, version := range manifest.DevDependencies {
		if _, direct := flat[name]; !direct {
			flat[name] = version
		}
	}

	var findings []datatypes.Finding
	for name, declared := range flat {
		version, ok := parseDeclaredVersion(declared)
		if !ok {
			continue
		}
		for _, adv := range advisories[name] {
			rng, err := semver.ParseRange(adv.Range)
			if err != nil {
				continue
			}
			if !rng(version) {
				continue
			}
			description := fmt.Sprintf("%s@%s: %s (patched in %s)", name, declared, adv.Summary, adv.Patched)
			f, err := rules.NewFinding(rules.RuleDepVulnerable, manifestURL, name+"@"+declared, description)
			if err != nil {
				return nil, err
			}
			f.Severity = adv.Severity
			if adv.URL != "" {
				f.Remediation = f.Remediation + " (" + adv.URL + ")"
			}
			findings = append(findings, f)
		}
	}
	return findings, nil
}

// parseDeclaredVersion parses an npm version declaration into a concrete
// semver version, treating range declarations by their lower bound.
func parseDeclaredVersion(declared string) (semver.Version, bool) {
	v := strings.TrimSpace(declared)
	v = strings.TrimPrefix(v, "^")
	v = strings.TrimPrefix(v, "~")
	v = strings.TrimPrefix(v, ">=")
	v = strings.TrimPrefix(v, "=")
	v = strings.TrimSpace(v)
	parsed, err := semver.ParseTolerant(v)
	if err != nil {
		return semver.Version{}, false
	}
	return parsed, true
}
