// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides the data structures shared across the scanner
// service: scan records, findings, security tests, crawl results, and the
// request/response types of the HTTP surface.
//
// This file contains the Scan entity and its enumerations.
package datatypes

import (
	"time"
)

// =============================================================================
// Enumerations
// =============================================================================

// ScanMode selects which analysis phases a scan runs.
type ScanMode string

const (
	// ModeStatic runs only source-text analysis of the target page.
	ModeStatic ScanMode = "STATIC"

	// ModeDynamic runs the crawler and the dynamic probers.
	ModeDynamic ScanMode = "DYNAMIC"

	// ModeBoth runs static and dynamic phases.
	ModeBoth ScanMode = "BOTH"
)

// Valid reports whether the mode is one of the accepted values.
func (m ScanMode) Valid() bool {
	switch m {
	case ModeStatic, ModeDynamic, ModeBoth:
		return true
	}
	return false
}

// IncludesStatic reports whether the mode requires the static phase.
func (m ScanMode) IncludesStatic() bool {
	return m == ModeStatic || m == ModeBoth
}

// IncludesDynamic reports whether the mode requires the dynamic phase.
func (m ScanMode) IncludesDynamic() bool {
	return m == ModeDynamic || m == ModeBoth
}

// ScanStatus is the lifecycle state of a scan.
//
// The state machine is strictly:
//
//	PENDING → RUNNING → {COMPLETED, FAILED}
//
// COMPLETED and FAILED are terminal. A scan never transitions out of a
// terminal state.
type ScanStatus string

const (
	StatusPending   ScanStatus = "PENDING"
	StatusRunning   ScanStatus = "RUNNING"
	StatusCompleted ScanStatus = "COMPLETED"
	StatusFailed    ScanStatus = "FAILED"
)

// Terminal reports whether the status is COMPLETED or FAILED.
func (s ScanStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the state machine permits moving from s
// to next.
func (s ScanStatus) CanTransitionTo(next ScanStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

// ScanPhase labels the stage a log event or progress hint belongs to.
type ScanPhase string

const (
	PhaseStatic  ScanPhase = "STATIC"
	PhaseDynamic ScanPhase = "DYNAMIC"
	PhaseCrawl   ScanPhase = "CRAWL"
	PhaseAuth    ScanPhase = "AUTH"
	PhaseScore   ScanPhase = "SCORE"
)

// =============================================================================
// Scan Entity
// =============================================================================

// Scan is a single scan record.
//
// # Description
//
// A Scan is created PENDING by the orchestrator, transitions to RUNNING when
// execution starts, and terminates in COMPLETED or FAILED. Score and Grade
// are nil until the scan completes; a FAILED scan keeps Score nil but has
// CompletedAt set.
//
// # Fields
//
//   - ID: UUID assigned at creation.
//   - TargetURL: canonical target after normalisation.
//   - Hostname: host component of TargetURL, used for history lookups.
//   - Summary: free-form blob (raw headers, cookies, CSP, crawl metadata,
//     failure reason for FAILED scans).
//
// # Thread Safety
//
// Scan is a value type; the orchestrator owns all mutation.
type Scan struct {
	ID          string      `json:"id"`
	TargetURL   string      `json:"targetUrl"`
	Hostname    string      `json:"hostname"`
	Mode        ScanMode    `json:"mode"`
	Status      ScanStatus  `json:"status"`
	Score       *int        `json:"score"`
	Grade       *string     `json:"grade"`
	CreatedAt   time.Time   `json:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt"`
	Summary     ScanSummary `json:"summary"`
}

// URLInfo captures the normalisation facts reported back at submission:
// final protocol, whether redirects were followed, and the names of any
// findings seeded before the scan ran.
type URLInfo struct {
	Protocol        string   `json:"protocol"`
	Redirected      bool     `json:"redirected"`
	Warnings        []string `json:"warnings"`
	SecurityThreats []string `json:"securityThreats"`
}

// ScanSummary holds the free-form context captured during a scan.
type ScanSummary struct {
	// RawHeaders are the response headers of the target's top-level page.
	RawHeaders map[string][]string `json:"rawHeaders,omitempty"`

	// Cookies are the raw Set-Cookie values observed on the target.
	Cookies []string `json:"cookies,omitempty"`

	// CSP is the Content-Security-Policy observed on the target, if any.
	CSP string `json:"csp,omitempty"`

	// Crawl is the crawler metadata for dynamic scans.
	Crawl *CrawlMetadata `json:"crawl,omitempty"`

	// FailureReason is the one-line reason for a FAILED scan.
	FailureReason string `json:"failureReason,omitempty"`

	// Warnings carries normalisation warnings (e.g. HTTP→HTTPS upgrade).
	Warnings []string `json:"warnings,omitempty"`

	// URLInfo is the normalisation outcome echoed in the submission
	// response.
	URLInfo *URLInfo `json:"urlInfo,omitempty"`
}

// RiskBand is the qualitative band derived from a composite score.
type RiskBand string

const (
	RiskLow      RiskBand = "LOW"
	RiskMedium   RiskBand = "MEDIUM"
	RiskHigh     RiskBand = "HIGH"
	RiskCritical RiskBand = "CRITICAL"
)
