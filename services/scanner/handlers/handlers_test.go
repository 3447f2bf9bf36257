// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/authsession"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/logbus"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/normalize"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/observability"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/orchestrator"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/routes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/storage"
)

// testServer bundles the router with the engine and store backing it.
type testServer struct {
	router *gin.Engine
	engine *orchestrator.Engine
	store  *storage.Store
	bus    *logbus.Bus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := storage.NewStore(db, nil)
	bus := logbus.New()
	engine := orchestrator.New(store, bus, nil,
		orchestrator.WithNormalizeOptions(normalize.Options{
			PreferHTTPS:    false,
			CheckRedirects: true,
			Timeout:        5 * time.Second,
		}),
		orchestrator.WithProbeTimeout(5*time.Second),
		orchestrator.WithBrowserFactory(func(ctx context.Context) (authsession.Browser, error) {
			return nil, authsession.ErrBrowserUnavailable
		}),
	)
	t.Cleanup(engine.Wait)

	router := gin.New()
	routes.SetupRoutes(router, engine, bus, observability.NewMetrics(prometheus.NewRegistry()))

	return &testServer{router: router, engine: engine, store: store, bus: bus}
}

// do performs a request against the router and returns the recorder.
func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// startStaticScan submits a STATIC scan of the given target and waits for
// the terminal state.
func (ts *testServer) startStaticScan(t *testing.T, target string) string {
	t.Helper()
	w := ts.do(http.MethodPost, "/v1/scans",
		`{"targetUrl":"`+target+`","mode":"STATIC"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ScanID string `json:"scanId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ScanID)

	ts.engine.Wait()
	return resp.ScanID
}

func staticSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1>demo</h1></body></html>`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// =============================================================================
// Health and Headers
// =============================================================================

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", "")

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

// =============================================================================
// Submission
// =============================================================================

func TestStartScanRejectsMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/v1/scans", `{"targetUrl":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartScanRejectsInvalidMode(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/v1/scans",
		`{"targetUrl":"https://example.com","mode":"FULL"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartScanRejectsInvalidTarget(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/v1/scans",
		`{"targetUrl":"ftp://example.com","mode":"STATIC"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartScanAuthWithStaticModeConflicts(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/v1/scans", `{
		"targetUrl": "https://example.com",
		"mode": "STATIC",
		"authConfig": {
			"loginUrl": "https://example.com/login",
			"usernameSelector": "#user",
			"passwordSelector": "#pass",
			"submitSelector": "#submit",
			"username": "alice",
			"password": "pw"
		}
	}`)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStartScanEchoesURLInfo(t *testing.T) {
	ts := newTestServer(t)
	srv := staticSite(t)

	w := ts.do(http.MethodPost, "/v1/scans",
		`{"targetUrl":"`+srv.URL+`","mode":"STATIC"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	defer ts.engine.Wait()

	var resp struct {
		ScanID  string            `json:"scanId"`
		Status  string            `json:"status"`
		URLInfo datatypes.URLInfo `json:"urlInfo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ScanID)
	assert.Equal(t, string(datatypes.StatusPending), resp.Status)
	assert.Equal(t, "http", resp.URLInfo.Protocol)
}

// =============================================================================
// Same-Origin Enforcement
// =============================================================================

func TestCrossOriginSubmissionRejected(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/scans",
		strings.NewReader(`{"targetUrl":"https://example.com","mode":"STATIC"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSameOriginSubmissionAllowed(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/scans", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://"+req.Host)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	// Passes the origin check and fails validation instead.
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefererMismatchRejected(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/history/example.com", nil)
	req.Header.Set("Referer", "http://attacker.example/page")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// =============================================================================
// Status, Results, History
// =============================================================================

func TestScanLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	srv := staticSite(t)

	scanID := ts.startStaticScan(t, srv.URL)

	w := ts.do(http.MethodGet, "/v1/scans/"+scanID+"/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var scan datatypes.Scan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scan))
	assert.Equal(t, datatypes.StatusCompleted, scan.Status)
	require.NotNil(t, scan.Score)

	w = ts.do(http.MethodGet, "/v1/scans/"+scanID+"/results", "")
	require.Equal(t, http.StatusOK, w.Code)
	var results orchestrator.Results
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	assert.Equal(t, scanID, results.Scan.ID)
	assert.NotEmpty(t, results.Tests)
	assert.NotEmpty(t, results.RiskBand)
}

func TestStatusUnknownScan(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/v1/scans/nope/status", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResultsBeforeTerminalConflict(t *testing.T) {
	ts := newTestServer(t)

	scan := &datatypes.Scan{
		ID:        "pending-1",
		TargetURL: "https://example.com",
		Hostname:  "example.com",
		Mode:      datatypes.ModeStatic,
		Status:    datatypes.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, ts.store.SaveScan(context.Background(), scan))

	w := ts.do(http.MethodGet, "/v1/scans/pending-1/results", "")

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelUnknownScan(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/v1/scans/nope/cancel", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	ts := newTestServer(t)
	srv := staticSite(t)

	ts.startStaticScan(t, srv.URL)

	hostname := strings.TrimPrefix(srv.URL, "http://")
	hostname = hostname[:strings.LastIndexByte(hostname, ':')]

	w := ts.do(http.MethodGet, "/v1/history/"+hostname, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Hostname string           `json:"hostname"`
		Scans    []datatypes.Scan `json:"scans"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Scans, 1)
}

func TestHistoryUnknownHostnameEmpty(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/v1/history/never-scanned.example", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"scans":[]`)
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/v1/history/example.com?limit=zero", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// Log Streams
// =============================================================================

func TestSSEStreamAfterTerminalScan(t *testing.T) {
	ts := newTestServer(t)
	srv := staticSite(t)

	scanID := ts.startStaticScan(t, srv.URL)

	w := ts.do(http.MethodGet, "/v1/scans/"+scanID+"/logs", "")

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event: log")
	assert.Contains(t, w.Body.String(), "scan completed")
}

func TestSSEStreamUnknownScan(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/v1/scans/nope/logs", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSSEStreamDuringScan(t *testing.T) {
	ts := newTestServer(t)
	srv := staticSite(t)

	live := httptest.NewServer(ts.router)
	t.Cleanup(live.Close)

	w := ts.do(http.MethodPost, "/v1/scans",
		`{"targetUrl":"`+srv.URL+`","mode":"STATIC"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		ScanID string `json:"scanId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// The stream ends when the scan terminates, whether the subscription
	// attached before or after the terminal transition.
	streamResp, err := http.Get(live.URL + "/v1/scans/" + resp.ScanID + "/logs")
	require.NoError(t, err)
	defer streamResp.Body.Close()

	body := new(strings.Builder)
	buf := make([]byte, 4096)
	for {
		n, err := streamResp.Body.Read(buf)
		body.Write(buf[:n])
		if err != nil {
			break
		}
	}

	assert.Contains(t, body.String(), "event: log")
	assert.Contains(t, body.String(), "scan")
	ts.engine.Wait()
}
