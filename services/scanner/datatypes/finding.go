// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the Finding and SecurityTest entities.

package datatypes

// =============================================================================
// Severity and Confidence
// =============================================================================

// Severity is the impact level of a finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Valid reports whether the severity is one of the accepted values.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Confidence is how certain the scanner is that a finding is real.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Valid reports whether the confidence is one of the accepted values.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// =============================================================================
// Finding Entity
// =============================================================================

// Finding is a detected vulnerability belonging to exactly one scan.
//
// # Description
//
// Findings are constructed through the rules registry, never directly:
// the registry copies severity, confidence, OWASP category, and remediation
// from the rule definition and bounds the evidence snippet. Severity and
// confidence on an emitted finding may differ from the rule defaults when
// the context adjusters of the static analysers trigger.
//
// # Fields
//
//   - RuleID: canonical rule identifier (e.g. WSS-XSS-001).
//   - OWASPCategory: one of the ten 2025 labels (A01:2025 … A10:2025).
//     Legacy 2021 labels are remapped at ingestion.
//   - Subtype: optional discriminator refining the category (e.g. "SSRF").
//   - Location: file:line for static findings, URL for dynamic ones.
//   - Evidence: snippet bounded to 500 bytes with CR/LF runs collapsed.
type Finding struct {
	ScanID        string     `json:"scanId"`
	RuleID        string     `json:"ruleId"`
	Type          string     `json:"type"`
	Severity      Severity   `json:"severity"`
	Confidence    Confidence `json:"confidence"`
	Description   string     `json:"description"`
	Location      string     `json:"location"`
	Remediation   string     `json:"remediation"`
	OWASPCategory string     `json:"owaspCategory"`
	Subtype       string     `json:"subtype,omitempty"`
	Evidence      string     `json:"evidence,omitempty"`
	CWE           string     `json:"cwe,omitempty"`
}

// =============================================================================
// SecurityTest Entity
// =============================================================================

// TestResult is the outcome label of a security test.
type TestResult string

const (
	ResultPassed TestResult = "Passed"
	ResultFailed TestResult = "Failed"
	ResultInfo   TestResult = "Info"
	ResultNA     TestResult = "N/A"
)

// SecurityTest is an individual pass/fail check recorded against a scan.
//
// ScoreContribution is signed: negative for failures (typically down to
// -25), small positive bonuses for passes (typically +5). The scoring
// engine clamp-adds contributions so a single test can never push the
// cumulative score outside [0, 100].
type SecurityTest struct {
	ScanID            string     `json:"scanId"`
	Name              string     `json:"name"`
	Passed            bool       `json:"passed"`
	ScoreContribution int        `json:"scoreContribution"`
	Result            TestResult `json:"result"`
	Reason            string     `json:"reason"`
	Recommendation    string     `json:"recommendation,omitempty"`
	Details           string     `json:"details,omitempty"`
}
