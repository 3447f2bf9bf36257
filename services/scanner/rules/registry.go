// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules is the single source of truth for finding definitions.
//
// Every finding the scanner emits is constructed through this registry:
// analysers and probers pass a rule ID plus location and evidence, and the
// registry copies severity, confidence, OWASP category, CWE, and remediation
// from the rule definition. Rule IDs follow WSS-<FAMILY>-<NNN>; families are
// XSS, SQLI, PATH, CSRF, SEC, AUTH, DEP, FORM, EXC.
//
// The registry is immutable data: addition is a code change, and nothing
// mutates it at runtime.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/owasp"
)

// =============================================================================
// Errors
// =============================================================================

// ErrUnknownRule is returned when a finding references an unregistered rule
// ID. This is a programming bug, not an input condition; the orchestrator
// fails the scan when it surfaces.
var ErrUnknownRule = errors.New("unknown rule id")

// =============================================================================
// Rule Definition
// =============================================================================

// RuleDef is the static definition of a finding rule.
//
// OWASP may be given as a legacy 2021 identifier in the table; it is
// remapped to the 2025 taxonomy when the registry is built, and the subtype
// the remap produces (SSRF for A10:2021) is carried onto findings.
type RuleDef struct {
	ID          string
	Type        string
	Severity    datatypes.Severity
	Confidence  datatypes.Confidence
	OWASP       string
	Subtype     string
	CWE         string
	Description string
	Remediation string
	References  []string
}

// =============================================================================
// Registry
// =============================================================================

// MaxEvidenceBytes bounds the evidence snippet stored on a finding.
const MaxEvidenceBytes = 500

// registry indexes the default rules by ID. Built once at package load.
var registry = buildRegistry(defaultRules)

func buildRegistry(defs []RuleDef) map[string]RuleDef {
	m := make(map[string]RuleDef, len(defs))
	for _, d := range defs {
		category, subtype, ok := owasp.Remap(d.OWASP)
		if !ok {
			panic(fmt.Sprintf("rules: %s has invalid OWASP id %q", d.ID, d.OWASP))
		}
		d.OWASP = category
		if d.Subtype == "" {
			d.Subtype = subtype
		}
		if _, dup := m[d.ID]; dup {
			panic(fmt.Sprintf("rules: duplicate rule id %s", d.ID))
		}
		m[d.ID] = d
	}
	return m
}

// Get returns the rule definition for id.
func Get(id string) (RuleDef, error) {
	def, ok := registry[id]
	if !ok {
		return RuleDef{}, fmt.Errorf("%w: %s", ErrUnknownRule, id)
	}
	return def, nil
}

// MustGet returns the rule definition for id, panicking on unknown IDs.
// Only for use in tests and static tables.
func MustGet(id string) RuleDef {
	def, err := Get(id)
	if err != nil {
		panic(err)
	}
	return def
}

// All returns every registered rule definition. The slice is a copy.
func All() []RuleDef {
	out := make([]RuleDef, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	return out
}

// =============================================================================
// Finding Construction
// =============================================================================

// crlfRuns collapses runs of carriage returns and newlines in evidence.
var crlfRuns = regexp.MustCompile(`[\r\n]+`)

// SanitizeEvidence bounds and flattens an evidence snippet.
//
// CR/LF runs become single spaces so evidence cannot smuggle log-line or
// SSE-frame breaks; the result is trimmed to at most MaxEvidenceBytes,
// backing off to a rune boundary so the snippet stays valid UTF-8.
func SanitizeEvidence(evidence string) string {
	evidence = crlfRuns.ReplaceAllString(evidence, " ")
	evidence = strings.TrimSpace(evidence)
	if len(evidence) > MaxEvidenceBytes {
		cut := MaxEvidenceBytes
		for cut > 0 && !utf8.RuneStart(evidence[cut]) {
			cut--
		}
		evidence = evidence[:cut]
	}
	return evidence
}

// NewFinding constructs a finding from a registered rule.
//
// # Description
//
// Copies type, severity, confidence, OWASP category, subtype, CWE, and
// remediation from the rule definition. descriptionOverride replaces the
// rule's description template when non-empty. Evidence is sanitized via
// SanitizeEvidence. ScanID is left empty; the orchestrator stamps it when
// recording the finding.
//
// # Outputs
//
//   - datatypes.Finding: the constructed finding.
//   - error: ErrUnknownRule (wrapped) when id is not registered.
func NewFinding(id, location, evidence, descriptionOverride string) (datatypes.Finding, error) {
	def, err := Get(id)
	if err != nil {
		return datatypes.Finding{}, err
	}

	description := def.Description
	if descriptionOverride != "" {
		description = descriptionOverride
	}

	return datatypes.Finding{
		RuleID:        def.ID,
		Type:          def.Type,
		Severity:      def.Severity,
		Confidence:    def.Confidence,
		Description:   description,
		Location:      location,
		Remediation:   def.Remediation,
		OWASPCategory: def.OWASP,
		Subtype:       def.Subtype,
		Evidence:      SanitizeEvidence(evidence),
		CWE:           def.CWE,
	}, nil
}

// Ingest validates and canonicalises a finding before storage.
//
// # Description
//
// Rejects findings that reference unregistered rules, remaps any legacy
// OWASP label to the 2025 taxonomy (preserving an explicit subtype, and
// adopting the remap's subtype otherwise), and re-sanitizes evidence.
// Idempotent: ingesting an already-ingested finding is a no-op.
func Ingest(f datatypes.Finding) (datatypes.Finding, error) {
	if _, err := Get(f.RuleID); err != nil {
		return datatypes.Finding{}, err
	}
	category, subtype, ok := owasp.Remap(f.OWASPCategory)
	if !ok {
		return datatypes.Finding{}, fmt.Errorf("finding %s: invalid OWASP category %q", f.RuleID, f.OWASPCategory)
	}
	f.OWASPCategory = category
	if f.Subtype == "" {
		f.Subtype = subtype
	}
	f.Evidence = SanitizeEvidence(f.Evidence)
	return f, nil
}
