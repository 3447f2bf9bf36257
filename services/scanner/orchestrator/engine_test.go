// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/authsession"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/logbus"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/normalize"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/storage"
)

// =============================================================================
// Harness
// =============================================================================

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *storage.Store, *logbus.Bus) {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := storage.NewStore(db, nil)
	bus := logbus.New()

	base := []Option{
		WithNormalizeOptions(normalize.Options{
			PreferHTTPS:    false,
			CheckRedirects: true,
			Timeout:        5 * time.Second,
		}),
		WithProbeTimeout(5 * time.Second),
		WithBrowserFactory(func(ctx context.Context) (authsession.Browser, error) {
			return nil, authsession.ErrBrowserUnavailable
		}),
	}
	engine := New(store, bus, nil, append(base, opts...)...)
	return engine, store, bus
}

func fastCrawlerOptions() *datatypes.CrawlerOptions {
	opts := datatypes.DefaultCrawlerOptions()
	opts.RateLimitMs = 100
	opts.TimeoutMs = 5000
	opts.RespectRobotsTxt = false
	return &opts
}

func awaitTerminal(t *testing.T, engine *Engine, store *storage.Store, scanID string) *datatypes.Scan {
	t.Helper()
	engine.Wait()
	scan, err := store.GetScan(context.Background(), scanID)
	require.NoError(t, err)
	require.True(t, scan.Status.Terminal(), "scan stuck in %s", scan.Status)
	return scan
}

func findingIDs(findings []datatypes.Finding) []string {
	ids := make([]string, 0, len(findings))
	for _, f := range findings {
		ids = append(ids, f.RuleID)
	}
	return ids
}

// =============================================================================
// Submission
// =============================================================================

func TestStartRejectsInvalidRequest(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Start(context.Background(), datatypes.ScanRequest{Mode: datatypes.ModeBoth})
	assert.Error(t, err, "missing target")

	_, err = engine.Start(context.Background(), datatypes.ScanRequest{
		TargetURL: "https://example.com", Mode: "FULL",
	})
	assert.Error(t, err, "invalid mode")
}

func TestStartUnreachableTargetCreatesNoScan(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	_, err := engine.Start(context.Background(), datatypes.ScanRequest{
		TargetURL: target, Mode: datatypes.ModeStatic,
	})
	require.ErrorIs(t, err, normalize.ErrUnreachable)

	pending, err := store.ListByStatus(context.Background(), datatypes.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending, "rejected submissions leave no record")
}

func TestStartConcurrencyCap(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	// Saturate the semaphore directly; submissions beyond the cap are
	// rejected rather than queued.
	for i := 0; i < MaxConcurrentScans; i++ {
		engine.sem <- struct{}{}
	}
	defer func() {
		for i := 0; i < MaxConcurrentScans; i++ {
			<-engine.sem
		}
	}()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := engine.Start(context.Background(), datatypes.ScanRequest{
		TargetURL: srv.URL, Mode: datatypes.ModeStatic,
	})
	assert.ErrorIs(t, err, ErrTooManyScans)
}

// =============================================================================
// Static Scans
// =============================================================================

func vulnerableStaticSite() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head></head><body>
<script>var x = eval(location.hash.slice(1));</script>
</body></html>`)
	})
	return mux
}

func TestStaticScanCompletes(t *testing.T) {
	srv := httptest.NewServer(vulnerableStaticSite())
	defer srv.Close()

	engine, store, _ := newTestEngine(t)
	scan, err := engine.Start(context.Background(), datatypes.ScanRequest{
		TargetURL: srv.URL, Mode: datatypes.ModeStatic,
	})
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusPending, scan.Status)

	final := awaitTerminal(t, engine, store, scan.ID)
	require.Equal(t, datatypes.StatusCompleted, final.Status)
	require.NotNil(t, final.Score)
	assert.Less(t, *final.Score, 100, "missing headers cost points")
	assert.NotNil(t, final.Grade)
	assert.NotEmpty(t, final.Summary.RawHeaders)

	results, err := engine.GetResults(context.Background(), scan.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, results.Tests)
	assert.Contains(t, findingIDs(results.Findings), rules.RuleXSSEval)
	assert.Contains(t, findingIDs(results.Findings), rules.RuleSECInsecureProto,
		"http-only target seeds the transport finding")
	assert.NotEmpty(t, results.RiskBand)
}

func TestScanStreamsLogEvents(t *testing.T) {
	// The first GET blocks until the subscriber is attached, so the
	// stream is guaranteed to observe the scan's events.
	subscribed := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			<-subscribed
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>hello</body></html>`)
	}))
	defer srv.Close()

	engine, store, bus := newTestEngine(t)
	scan, err := engine.Start(context.Background(), datatypes.ScanRequest{
		TargetURL: srv.URL, Mode: datatypes.ModeStatic,
	})
	require.NoError(t, err)

	sub := bus.Subscribe(scan.ID)
	close(subscribed)

	var messages []string
	for event := range sub.C {
		messages = append(messages, event.Message)
	}
	// The stream closed because the scan terminated.
	awaitTerminal(t, engine, store, scan.ID)
	assert.NotEmpty(t, messages)
	assert.Contains(t, messages[len(messages)-1], "scan completed")
}

// =============================================================================
// Dynamic Scans
// =============================================================================

func dynamicSite() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
<a href="/about">about</a>
<form method="post" action="/subscribe"><input type="text" name="email"></form>
</body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>about us</body></html>`)
	})
	mux.HandleFunc("/subscribe", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	return mux
}

func TestDynamicScanCompletes(t *testing.T) {
	srv := httptest.NewServer(dynamicSite())
	defer srv.Close()

	engine, store, _ := newTestEngine(t)
	scan, err := engine.Start(context.Background(), datatypes.ScanRequest{
		TargetURL:      srv.URL,
		Mode:           datatypes.ModeDynamic,
		CrawlerOptions: fastCrawlerOptions(),
	})
	require.NoError(t, err)

	final := awaitTerminal(t, engine, store, scan.ID)
	require.Equal(t, datatypes.StatusCompleted, final.Status)
	require.NotNil(t, final.Summary.Crawl)
	assert.GreaterOrEqual(t, final.Summary.Crawl.PagesScanned, 2)

	results, err := engine.GetResults(context.Background(), scan.ID)
	require.NoError(t, err)
	assert.Contains(t, findingIDs(results.Findings), rules.RuleCSRFMissingToken,
		"state-changing form without a token")
	require.NotEmpty(t, results.Tests, "header checks run in dynamic mode too")
	require.NotNil(t, final.Score)
	assert.Less(t, *final.Score, 100, "an unhardened site cannot score perfectly")
}

func TestDynamicScanDetectsServerErrorDisclosure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/broken">report</a></body></html>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "Error: boom\n    at handler (/var/app/server.js:10:15)\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine, store, _ := newTestEngine(t)
	scan, err := engine.Start(context.Background(), datatypes.ScanRequest{
		TargetURL:      srv.URL,
		Mode:           datatypes.ModeDynamic,
		CrawlerOptions: fastCrawlerOptions(),
	})
	require.NoError(t, err)

	final := awaitTerminal(t, engine, store, scan.ID)
	require.Equal(t, datatypes.StatusCompleted, final.Status)

	results, err := engine.GetResults(context.Background(), scan.ID)
	require.NoError(t, err)
	assert.Contains(t, findingIDs(results.Findings), rules.RuleExcStackTrace,
		"the 5xx body carries a JavaScript stack trace")
}

func TestDynamicScanSeedUnreachableFails(t *testing.T) {
	// The target answers the normalisation HEAD probe but fails every GET,
	// so the crawl cannot fetch its seed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	engine, store, _ := newTestEngine(t)
	scan, err := engine.Start(context.Background(), datatypes.ScanRequest{
		TargetURL:      srv.URL,
		Mode:           datatypes.ModeDynamic,
		CrawlerOptions: fastCrawlerOptions(),
	})
	require.NoError(t, err)

	final := awaitTerminal(t, engine, store, scan.ID)
	assert.Equal(t, datatypes.StatusFailed, final.Status)
	assert.Nil(t, final.Score)
	assert.NotEmpty(t, final.Summary.FailureReason)
}

func TestBrowserUnavailableDegradesToUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(dynamicSite())
	defer srv.Close()

	engine, store, _ := newTestEngine(t)
	scan, err := engine.Start(context.Background(), datatypes.ScanRequest{
		TargetURL:      srv.URL,
		Mode:           datatypes.ModeDynamic,
		CrawlerOptions: fastCrawlerOptions(),
		AuthConfig: &datatypes.AuthConfig{
			LoginURL:         srv.URL + "/login",
			UsernameSelector: "#u", PasswordSelector: "#p", SubmitSelector: "#s",
			Username: "alice", Password: "pw",
		},
	})
	require.NoError(t, err)

	final := awaitTerminal(t, engine, store, scan.ID)
	assert.Equal(t, datatypes.StatusCompleted, final.Status)
	assert.Contains(t, final.Summary.Warnings, "browser unavailable, continuing unauthenticated")

	results, err := engine.GetResults(context.Background(), scan.ID)
	require.NoError(t, err)
	var auth *datatypes.SecurityTest
	for i, test := range results.Tests {
		if test.Name == "Authentication" {
			auth = &results.Tests[i]
			break
		}
	}
	require.NotNil(t, auth, "the degrade is recorded in the test ledger")
	assert.False(t, auth.Passed)
	assert.Equal(t, datatypes.ResultNA, auth.Result)
	assert.Zero(t, auth.ScoreContribution)
}

// =============================================================================
// Cancellation and Queries
// =============================================================================

func TestCancelRunningScan(t *testing.T) {
	release := make(chan struct{})
	var once func()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/slow">next</a></body></html>`)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	once = func() { close(release) }
	defer func() { once() }()

	engine, store, _ := newTestEngine(t)
	scan, err := engine.Start(context.Background(), datatypes.ScanRequest{
		TargetURL:      srv.URL,
		Mode:           datatypes.ModeDynamic,
		CrawlerOptions: fastCrawlerOptions(),
	})
	require.NoError(t, err)

	// Give the crawl time to reach the hanging page, then cancel.
	time.Sleep(500 * time.Millisecond)
	require.True(t, engine.Cancel(scan.ID))
	once()
	once = func() {}

	final := awaitTerminal(t, engine, store, scan.ID)
	assert.Equal(t, datatypes.StatusFailed, final.Status)
}

func TestCancelUnknownScan(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	assert.False(t, engine.Cancel(uuid.NewString()))
}

func TestGetResultsNonTerminal(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	scan := &datatypes.Scan{
		ID: uuid.NewString(), TargetURL: "https://example.com", Hostname: "example.com",
		Mode: datatypes.ModeStatic, Status: datatypes.StatusPending, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveScan(context.Background(), scan))

	_, err := engine.GetResults(context.Background(), scan.ID)
	assert.ErrorIs(t, err, ErrNotTerminal)
}

func TestGetResultsUnknownScan(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	_, err := engine.GetResults(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestHistory(t *testing.T) {
	srv := httptest.NewServer(vulnerableStaticSite())
	defer srv.Close()

	engine, store, _ := newTestEngine(t)
	scan, err := engine.Start(context.Background(), datatypes.ScanRequest{
		TargetURL: srv.URL, Mode: datatypes.ModeStatic,
	})
	require.NoError(t, err)
	awaitTerminal(t, engine, store, scan.ID)

	history, err := engine.History(context.Background(), scan.Hostname, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, scan.ID, history[0].ID)
}
