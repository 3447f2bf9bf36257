// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package owasp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemapLegacyIdentifiers(t *testing.T) {
	tests := []struct {
		legacy   string
		category string
		subtype  string
	}{
		{"A01:2021", A01, ""},
		{"A02:2021", A04, ""},
		{"A03:2021", A05, ""},
		{"A04:2021", A06, ""},
		{"A05:2021", A02, ""},
		{"A06:2021", A03, ""},
		{"A07:2021", A07, ""},
		{"A08:2021", A08, ""},
		{"A09:2021", A09, ""},
		{"A10:2021", A01, SubtypeSSRF},
	}
	for _, tt := range tests {
		t.Run(tt.legacy, func(t *testing.T) {
			category, subtype, ok := Remap(tt.legacy)
			require.True(t, ok)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.subtype, subtype)
		})
	}
}

func TestRemapIsIdempotent(t *testing.T) {
	for _, legacy := range []string{
		"A01:2021", "A02:2021", "A03:2021", "A04:2021", "A05:2021",
		"A06:2021", "A07:2021", "A08:2021", "A09:2021", "A10:2021",
	} {
		first, _, ok := Remap(legacy)
		require.True(t, ok)
		second, subtype, ok := Remap(first)
		require.True(t, ok)
		assert.Equal(t, first, second)
		assert.Empty(t, subtype, "2025 labels pass through without a subtype")
	}
}

func TestRemapCurrentLabelsPassThrough(t *testing.T) {
	for _, id := range Categories() {
		category, subtype, ok := Remap(id)
		require.True(t, ok)
		assert.Equal(t, id, category)
		assert.Empty(t, subtype)
	}
}

func TestRemapUnknownIdentifier(t *testing.T) {
	for _, id := range []string{"A11:2021", "A00:2025", "XSS", ""} {
		_, _, ok := Remap(id)
		assert.False(t, ok, "identifier %q", id)
	}
}

func TestRemapTrimsWhitespace(t *testing.T) {
	category, subtype, ok := Remap("  A10:2021 ")
	require.True(t, ok)
	assert.Equal(t, A01, category)
	assert.Equal(t, SubtypeSSRF, subtype)
}

func TestCategories(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 10)
	for _, id := range cats {
		assert.True(t, Valid(id))
		assert.NotEmpty(t, Name(id))
	}
	assert.Equal(t, "Broken Access Control", Name(A01))
	assert.Equal(t, "Mishandling of Exceptional Conditions", Name(A10))
	assert.False(t, Valid("A03:2021"))
}
