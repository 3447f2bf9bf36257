// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scoring derives the composite risk score, letter grade, and risk
// band from a scan's security tests.
package scoring

import (
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
)

// Compute folds the test contributions into a score.
//
// # Description
//
// The score starts at 100 and each contribution is clamp-added: the running
// total is pinned to [0, 100] after every step, so a single test can never
// push the score outside the range no matter how large its contribution.
// The fold is deterministic in test order; since clamping only engages at
// the extremes, reordering tests cannot change whether a scan lands at 0
// or 100.
func Compute(tests []datatypes.SecurityTest) int {
	score := 100
	for _, t := range tests {
		score += t.ScoreContribution
		if score > 100 {
			score = 100
		}
		if score < 0 {
			score = 0
		}
	}
	return score
}

// Grade maps a score to its letter grade.
func Grade(score int) string {
	switch {
	case score >= 95:
		return "A+"
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// RiskBand maps a score to its risk band.
func RiskBand(score int) datatypes.RiskBand {
	switch {
	case score >= 80:
		return datatypes.RiskLow
	case score >= 60:
		return datatypes.RiskMedium
	case score >= 40:
		return datatypes.RiskHigh
	default:
		return datatypes.RiskCritical
	}
}
