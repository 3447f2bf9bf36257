// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityBadgeFixedWidth(t *testing.T) {
	for _, severity := range []string{"CRITICAL", "HIGH", "MEDIUM", "LOW", "INFO"} {
		badge := SeverityBadge(severity)
		assert.Contains(t, badge, severity)
	}
	// Unknown severities still render rather than panic.
	assert.Contains(t, SeverityBadge("UNKNOWN"), "UNKNOWN")
}

func TestEventLineMarkers(t *testing.T) {
	assert.Contains(t, EventLine("SUCCESS", "STATIC", "done"), "done")
	assert.Contains(t, EventLine("ERROR", "", "boom"), "boom")
	assert.Contains(t, strings.ToLower(EventLine("INFO", "CRAWL", "fetching")), "crawl")
}

func TestScoreLine(t *testing.T) {
	line := ScoreLine("85", "B", "LOW")
	assert.Contains(t, line, "85")
	assert.Contains(t, line, "B")
	assert.Contains(t, line, "LOW")
}

func TestStatusLine(t *testing.T) {
	assert.Contains(t, StatusLine("FAILED", "seed unreachable"), "seed unreachable")
	assert.Contains(t, StatusLine("COMPLETED", ""), "COMPLETED")
}

func TestFindingLine(t *testing.T) {
	line := FindingLine("HIGH", "SQL Injection", "https://example.com/search?q=x")
	assert.Contains(t, line, "SQL Injection")
	assert.Contains(t, line, "example.com")
}

func TestBannerWrapsText(t *testing.T) {
	assert.Contains(t, Banner("webscan https://example.com"), "example.com")
}
