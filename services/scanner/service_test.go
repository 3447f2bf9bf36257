// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) Service {
	t.Helper()

	svc, err := New(Config{
		InMemoryStorage: true,
		DisableTracing:  true,
		GinMode:         "test",
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestNewAppliesDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})
	assert.Equal(t, 12300, cfg.Port)
	assert.Equal(t, "./data/scans", cfg.DataDir)
	assert.Equal(t, "webscan-otel-collector:4317", cfg.OTelEndpoint)
	assert.NotNil(t, cfg.Logger)
}

func TestServiceServesHealth(t *testing.T) {
	svc := newTestService(t)

	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServiceServesMetrics(t *testing.T) {
	svc := newTestService(t)

	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "webscan_scans")
}

func TestCloseIsIdempotent(t *testing.T) {
	svc, err := New(Config{InMemoryStorage: true, DisableTracing: true, GinMode: "test"})
	require.NoError(t, err)

	svc.Close()
	svc.Close()
}
