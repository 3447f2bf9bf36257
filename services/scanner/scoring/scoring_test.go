// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
)

func contributions(values ...int) []datatypes.SecurityTest {
	tests := make([]datatypes.SecurityTest, len(values))
	for i, v := range values {
		tests[i] = datatypes.SecurityTest{ScoreContribution: v}
	}
	return tests
}

func TestComputeClampsToRange(t *testing.T) {
	assert.Equal(t, 100, Compute(nil))
	assert.Equal(t, 100, Compute(contributions(5, 5, 5)), "bonuses cannot exceed 100")
	assert.Equal(t, 0, Compute(contributions(-25, -25, -25, -25, -25)), "penalties bottom out at 0")
	assert.Equal(t, 55, Compute(contributions(-25, -20)))
}

func TestComputeClampPerStep(t *testing.T) {
	// The clamp applies after every contribution: a bonus following a
	// floor-out raises the score again.
	assert.Equal(t, 5, Compute(contributions(-120, 5)))
}

func TestGradeBands(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "A+"}, {95, "A+"}, {94, "A"}, {90, "A"},
		{89, "B"}, {80, "B"}, {79, "C"}, {70, "C"},
		{69, "D"}, {60, "D"}, {59, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Grade(tt.score), "score %d", tt.score)
	}
}

func TestRiskBands(t *testing.T) {
	tests := []struct {
		score int
		want  datatypes.RiskBand
	}{
		{100, datatypes.RiskLow}, {80, datatypes.RiskLow},
		{79, datatypes.RiskMedium}, {60, datatypes.RiskMedium},
		{59, datatypes.RiskHigh}, {40, datatypes.RiskHigh},
		{39, datatypes.RiskCritical}, {0, datatypes.RiskCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskBand(tt.score), "score %d", tt.score)
	}
}

func TestGradeAgreesWithRiskBand(t *testing.T) {
	// Every score that grades B or better sits in the LOW band.
	for score := 80; score <= 100; score++ {
		assert.Equal(t, datatypes.RiskLow, RiskBand(score))
	}
}
