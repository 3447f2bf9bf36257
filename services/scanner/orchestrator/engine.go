// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator drives the scan lifecycle.
//
// The engine is the only writer of scan state. It normalises the target,
// creates the PENDING record, and runs each scan on its own goroutine
// through the strict state machine PENDING → RUNNING → {COMPLETED, FAILED}.
// Static analysis, the crawl, and the dynamic probers all report back here;
// the engine aggregates their findings and tests, scores the result, and
// commits everything in one storage transaction at the terminal transition.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/authsession"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/logbus"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/normalize"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/scoring"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/storage"
)

// =============================================================================
// Limits and Errors
// =============================================================================

const (
	// MaxConcurrentScans bounds the number of scans running at once.
	// Submissions beyond the cap are rejected, not queued.
	MaxConcurrentScans = 5

	// scanTimeout is the hard deadline for a single scan.
	scanTimeout = 5 * time.Minute
)

var (
	// ErrTooManyScans is returned when the concurrency cap is reached.
	ErrTooManyScans = errors.New("too many concurrent scans")

	// ErrNotTerminal is returned when results are requested for a scan
	// that has not reached COMPLETED or FAILED.
	ErrNotTerminal = errors.New("scan has not finished")
)

// =============================================================================
// Engine
// =============================================================================

// BrowserFactory opens a headless browser for authenticated scans. The
// default factory launches Chrome via chromedp; tests inject fakes.
type BrowserFactory func(ctx context.Context) (authsession.Browser, error)

// Observer receives scan lifecycle notifications. The observability
// package's Metrics satisfies it; a nil observer disables reporting.
type Observer interface {
	ScanAccepted(mode string)
	ScanFinished(mode, status string, duration time.Duration, findingSeverities []string)
}

// Engine owns scan execution.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Per-scan state is
// confined to the scan's own goroutine; the engine only shares the store,
// the log bus, and the cancellation registry.
type Engine struct {
	store      *storage.Store
	bus        *logbus.Bus
	logger     *slog.Logger
	newBrowser BrowserFactory
	observer   Observer

	// normOpts is overridable so tests can probe httptest servers.
	normOpts normalize.Options

	// probeTimeout is the per-request timeout for probers and static
	// fetches.
	probeTimeout time.Duration

	sem chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	wg sync.WaitGroup
}

// Option customises engine construction.
type Option func(*Engine)

// WithBrowserFactory overrides how headless browsers are opened.
func WithBrowserFactory(f BrowserFactory) Option {
	return func(e *Engine) { e.newBrowser = f }
}

// WithNormalizeOptions overrides target normalisation (tests).
func WithNormalizeOptions(opts normalize.Options) Option {
	return func(e *Engine) { e.normOpts = opts }
}

// WithProbeTimeout overrides the per-request probe timeout (tests).
func WithProbeTimeout(d time.Duration) Option {
	return func(e *Engine) { e.probeTimeout = d }
}

// WithObserver attaches a lifecycle observer, typically the service's
// Prometheus metrics.
func WithObserver(obs Observer) Option {
	return func(e *Engine) { e.observer = obs }
}

// New builds an engine over an open store and bus.
func New(store *storage.Store, bus *logbus.Bus, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:        store,
		bus:          bus,
		logger:       logger,
		newBrowser:   authsession.NewChromeBrowser,
		normOpts:     normalize.DefaultOptions(),
		probeTimeout: 15 * time.Second,
		sem:          make(chan struct{}, MaxConcurrentScans),
		cancels:      make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// Submission
// =============================================================================

// Start validates and normalises a scan request, persists the PENDING
// record, and launches execution.
//
// # Description
//
// Rejections happen before any record exists: an invalid request or an
// unnormalisable target produces an error and no scan. Once the PENDING
// record is stored the submission has succeeded; everything after that is
// reported through the scan's own status, never through Start.
//
// # Outputs
//
//   - *datatypes.Scan: the PENDING record, nil on error.
//   - error: validation errors, normalize.ErrInvalidTarget,
//     normalize.ErrUnreachable, or ErrTooManyScans.
func (e *Engine) Start(ctx context.Context, req datatypes.ScanRequest) (*datatypes.Scan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	norm, err := normalize.Normalize(ctx, req.TargetURL, e.normOpts)
	if err != nil {
		return nil, err
	}

	select {
	case e.sem <- struct{}{}:
	default:
		return nil, ErrTooManyScans
	}

	target, err := url.Parse(norm.FinalURL)
	if err != nil {
		<-e.sem
		return nil, fmt.Errorf("%w: %v", normalize.ErrInvalidTarget, err)
	}

	threats := make([]string, len(norm.SecurityThreats))
	for i, f := range norm.SecurityThreats {
		threats[i] = f.Type
	}

	scan := &datatypes.Scan{
		ID:        uuid.NewString(),
		TargetURL: norm.FinalURL,
		Hostname:  target.Hostname(),
		Mode:      req.Mode,
		Status:    datatypes.StatusPending,
		CreatedAt: time.Now().UTC(),
		Summary: datatypes.ScanSummary{
			Warnings: norm.Warnings,
			URLInfo: &datatypes.URLInfo{
				Protocol:        norm.Protocol,
				Redirected:      norm.Redirected,
				Warnings:        norm.Warnings,
				SecurityThreats: threats,
			},
		},
	}

	if err := e.store.SaveScan(ctx, scan); err != nil {
		<-e.sem
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	e.mu.Lock()
	e.cancels[scan.ID] = cancel
	e.mu.Unlock()

	if e.observer != nil {
		e.observer.ScanAccepted(string(scan.Mode))
	}

	e.wg.Add(1)
	go e.run(runCtx, *scan, req, norm)

	e.logger.Info("scan accepted",
		"scanId", scan.ID, "target", scan.TargetURL, "mode", scan.Mode)
	return scan, nil
}

// Cancel aborts a running scan. Returns false when the scan is unknown or
// already terminal.
func (e *Engine) Cancel(scanID string) bool {
	e.mu.Lock()
	cancel, ok := e.cancels[scanID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until every in-flight scan has terminated. Used on shutdown
// and in tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// =============================================================================
// Queries
// =============================================================================

// Status returns the current scan record.
func (e *Engine) Status(ctx context.Context, scanID string) (*datatypes.Scan, error) {
	return e.store.GetScan(ctx, scanID)
}

// Results is the full outcome of a terminal scan.
type Results struct {
	Scan     datatypes.Scan           `json:"scan"`
	Findings []datatypes.Finding      `json:"findings"`
	Tests    []datatypes.SecurityTest `json:"securityTests"`
	RiskBand datatypes.RiskBand       `json:"riskBand,omitempty"`
}

// GetResults returns a terminal scan with its findings and tests.
//
// Non-terminal scans yield ErrNotTerminal: partial results are never
// exposed, because the terminal transition is the storage commit point.
func (e *Engine) GetResults(ctx context.Context, scanID string) (*Results, error) {
	scan, err := e.store.GetScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if !scan.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotTerminal, scanID, scan.Status)
	}

	findings, err := e.store.ListFindings(ctx, scanID)
	if err != nil {
		return nil, err
	}
	tests, err := e.store.ListTests(ctx, scanID)
	if err != nil {
		return nil, err
	}

	res := &Results{Scan: *scan, Findings: findings, Tests: tests}
	if scan.Score != nil {
		res.RiskBand = scoring.RiskBand(*scan.Score)
	}
	return res, nil
}

// History returns recent scans for a hostname, newest first.
func (e *Engine) History(ctx context.Context, hostname string, limit int) ([]datatypes.Scan, error) {
	return e.store.ListByHost(ctx, hostname, limit)
}

// =============================================================================
// Event Helpers
// =============================================================================

func (e *Engine) publish(scanID string, level datatypes.LogLevel, phase datatypes.ScanPhase, message string) {
	e.bus.Publish(datatypes.NewLogEvent(scanID, level, message).WithPhase(phase))
}
