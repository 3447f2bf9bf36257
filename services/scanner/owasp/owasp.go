// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package owasp provides the canonical OWASP Top 10 2025 taxonomy and the
// remapping of legacy 2021 identifiers into it.
//
// Every finding stored by the scanner carries exactly one of the ten 2025
// labels. Legacy 2021 labels are remapped once at ingestion; the remapping
// is idempotent, so labels already in 2025 form pass through unchanged.
package owasp

import "strings"

// =============================================================================
// 2025 Categories
// =============================================================================

// The ten OWASP Top 10 2025 identifiers.
const (
	A01 = "A01:2025" // Broken Access Control (includes SSRF as a subtype)
	A02 = "A02:2025" // Security Misconfiguration
	A03 = "A03:2025" // Software Supply Chain Failures
	A04 = "A04:2025" // Cryptographic Failures
	A05 = "A05:2025" // Injection
	A06 = "A06:2025" // Insecure Design
	A07 = "A07:2025" // Authentication Failures
	A08 = "A08:2025" // Software or Data Integrity Failures
	A09 = "A09:2025" // Logging & Alerting Failures
	A10 = "A10:2025" // Mishandling of Exceptional Conditions
)

// SubtypeSSRF marks SSRF findings inside A01:2025.
const SubtypeSSRF = "SSRF"

// categoryNames maps 2025 identifiers to their display names.
var categoryNames = map[string]string{
	A01: "Broken Access Control",
	A02: "Security Misconfiguration",
	A03: "Software Supply Chain Failures",
	A04: "Cryptographic Failures",
	A05: "Injection",
	A06: "Insecure Design",
	A07: "Authentication Failures",
	A08: "Software or Data Integrity Failures",
	A09: "Logging & Alerting Failures",
	A10: "Mishandling of Exceptional Conditions",
}

// Valid reports whether id is one of the ten 2025 identifiers.
func Valid(id string) bool {
	_, ok := categoryNames[id]
	return ok
}

// Name returns the display name for a 2025 identifier, or "" if unknown.
func Name(id string) string {
	return categoryNames[id]
}

// Categories returns the ten 2025 identifiers in order.
func Categories() []string {
	return []string{A01, A02, A03, A04, A05, A06, A07, A08, A09, A10}
}

// =============================================================================
// Legacy Remapping
// =============================================================================

// legacyMap holds the 2021 → 2025 remapping. A10:2021 (SSRF) folds into
// A01:2025 and is the only entry that also sets a subtype.
var legacyMap = map[string]struct {
	category string
	subtype  string
}{
	"A01:2021": {A01, ""},
	"A02:2021": {A04, ""}, // Cryptographic Failures
	"A03:2021": {A05, ""}, // Injection
	"A04:2021": {A06, ""}, // Insecure Design
	"A05:2021": {A02, ""}, // Security Misconfiguration
	"A06:2021": {A03, ""}, // Vulnerable and Outdated Components
	"A07:2021": {A07, ""},
	"A08:2021": {A08, ""},
	"A09:2021": {A09, ""},
	"A10:2021": {A01, SubtypeSSRF},
}

// Remap converts a legacy 2021 identifier into its 2025 equivalent.
//
// # Description
//
// Returns the 2025 category and, where applicable, the subtype the legacy
// label carries into it (currently only SSRF for A10:2021). Identifiers
// already in 2025 form are returned unchanged with an empty subtype, making
// the function idempotent:
//
//	Remap(Remap(x)) == Remap(x)
//
// Unknown identifiers are returned unchanged with ok=false; callers treat
// that as a rule-definition bug.
//
// # Inputs
//
//   - id: an OWASP identifier such as "A03:2021" or "A05:2025".
//
// # Outputs
//
//   - category: the 2025 identifier.
//   - subtype: "" or "SSRF".
//   - ok: false when the identifier is neither a 2021 nor a 2025 label.
func Remap(id string) (category, subtype string, ok bool) {
	id = strings.TrimSpace(id)
	if Valid(id) {
		return id, "", true
	}
	if m, found := legacyMap[id]; found {
		return m.category, m.subtype, true
	}
	return id, "", false
}
