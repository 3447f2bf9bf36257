// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains per-scan execution: the phase pipeline that runs on
// each scan's goroutine.

package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/analyzers"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/authsession"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/crawler"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/normalize"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/probes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/scoring"
)

// maxStaticScripts bounds the same-origin external scripts fetched for
// static JS analysis.
const maxStaticScripts = 5

// storeWriteTimeout bounds terminal storage writes, which run on a fresh
// context so a cancelled scan can still record its failure.
const storeWriteTimeout = 10 * time.Second

// =============================================================================
// Result Accumulator
// =============================================================================

// accumulator collects findings and tests across concurrently running
// phases.
type accumulator struct {
	mu       sync.Mutex
	findings []datatypes.Finding
	tests    []datatypes.SecurityTest
}

func (a *accumulator) addFindings(findings ...datatypes.Finding) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.findings = append(a.findings, findings...)
}

func (a *accumulator) addTests(tests ...datatypes.SecurityTest) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tests = append(a.tests, tests...)
}

func (a *accumulator) snapshot() ([]datatypes.Finding, []datatypes.SecurityTest) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.findings, a.tests
}

// =============================================================================
// Scan Execution
// =============================================================================

// run executes one scan to its terminal state. It is the only goroutine
// that mutates the scan record after creation.
func (e *Engine) run(ctx context.Context, scan datatypes.Scan, req datatypes.ScanRequest, norm *normalize.Result) {
	defer e.wg.Done()
	defer func() { <-e.sem }()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, scan.ID)
		e.mu.Unlock()
	}()

	acc := &accumulator{}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("scan panicked", "scanId", scan.ID, "panic", r)
			e.fail(&scan, acc, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := e.store.UpdateStatus(context.Background(), scan.ID, datatypes.StatusRunning); err != nil {
		e.logger.Error("could not mark scan running", "scanId", scan.ID, "error", err)
		e.fail(&scan, acc, "could not start scan")
		return
	}
	scan.Status = datatypes.StatusRunning
	e.publish(scan.ID, datatypes.LogInfo, "", "scan started")

	acc.addFindings(norm.SecurityThreats...)

	// The response-surface checks (headers, CSP, cookies) run for every
	// mode: they produce the SecurityTest ledger that scoring folds, so a
	// DYNAMIC-only scan must not complete without them.
	phase := datatypes.PhaseStatic
	if !scan.Mode.IncludesStatic() {
		phase = datatypes.PhaseDynamic
	}
	hr, err := e.transportChecks(ctx, &scan, phase, acc)
	if err != nil {
		e.fail(&scan, acc, err.Error())
		return
	}

	if scan.Mode.IncludesStatic() {
		e.staticPhase(ctx, &scan, hr, acc)
	}
	if scan.Mode.IncludesDynamic() {
		if err := e.dynamicPhase(ctx, &scan, req, acc); err != nil {
			e.fail(&scan, acc, err.Error())
			return
		}
	}

	if ctx.Err() != nil {
		e.fail(&scan, acc, failureReason(ctx.Err()))
		return
	}

	e.complete(&scan, acc)
}

func failureReason(err error) string {
	if err == context.DeadlineExceeded {
		return "scan deadline exceeded"
	}
	return "scan cancelled"
}

// complete scores the scan and commits the terminal COMPLETED state.
func (e *Engine) complete(scan *datatypes.Scan, acc *accumulator) {
	findings, tests := acc.snapshot()

	score := scoring.Compute(tests)
	grade := scoring.Grade(score)
	now := time.Now().UTC()

	scan.Status = datatypes.StatusCompleted
	scan.Score = &score
	scan.Grade = &grade
	scan.CompletedAt = &now

	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()

	e.publish(scan.ID, datatypes.LogInfo, datatypes.PhaseScore,
		fmt.Sprintf("score %d (%s), %d findings, %d tests", score, grade, len(findings), len(tests)))

	if err := e.store.CompleteScan(ctx, scan, findings, tests); err != nil {
		// A rejected finding (unknown rule) is a programming bug; the
		// scan fails rather than completing with partial results.
		e.logger.Error("could not persist scan results", "scanId", scan.ID, "error", err)
		e.fail(scan, &accumulator{}, "could not persist results")
		return
	}

	e.publish(scan.ID, datatypes.LogSuccess, "", "scan completed")
	e.bus.CloseScan(scan.ID)
	e.notifyFinished(scan, findings)
	e.logger.Info("scan completed", "scanId", scan.ID, "score", score, "grade", grade)
}

// fail commits the terminal FAILED state with the given reason. Findings
// collected before the failure are kept; the score stays nil.
func (e *Engine) fail(scan *datatypes.Scan, acc *accumulator, reason string) {
	findings, tests := acc.snapshot()
	now := time.Now().UTC()

	scan.Status = datatypes.StatusFailed
	scan.Score = nil
	scan.Grade = nil
	scan.CompletedAt = &now
	scan.Summary.FailureReason = reason

	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()

	if err := e.store.CompleteScan(ctx, scan, findings, tests); err != nil {
		e.logger.Error("could not persist scan failure", "scanId", scan.ID, "error", err)
	}

	e.publish(scan.ID, datatypes.LogError, "", "scan failed: "+reason)
	e.bus.CloseScan(scan.ID)
	e.notifyFinished(scan, findings)
	e.logger.Warn("scan failed", "scanId", scan.ID, "reason", reason)
}

// notifyFinished reports the terminal transition to the lifecycle
// observer.
func (e *Engine) notifyFinished(scan *datatypes.Scan, findings []datatypes.Finding) {
	if e.observer == nil {
		return
	}
	var duration time.Duration
	if scan.CompletedAt != nil {
		duration = scan.CompletedAt.Sub(scan.CreatedAt)
	}
	severities := make([]string, len(findings))
	for i, f := range findings {
		severities[i] = string(f.Severity)
	}
	e.observer.ScanFinished(string(scan.Mode), string(scan.Status), duration, severities)
}

// =============================================================================
// Transport Checks
// =============================================================================

// transportChecks probes the target once and runs the response-surface
// analysers: header checklist, CSP grading, and cookie flags. The result
// carries the fetched body for the static analysers.
func (e *Engine) transportChecks(ctx context.Context, scan *datatypes.Scan, phase datatypes.ScanPhase, acc *accumulator) (*probes.HeadersResult, error) {
	e.publish(scan.ID, datatypes.LogInfo, phase, "checking response headers")

	headers := probes.NewHeadersProber(e.probeTimeout)
	hr, err := headers.Probe(ctx, scan.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("target fetch failed: %v", err)
	}

	scan.Summary.CSP = hr.CSP
	scan.Summary.Cookies = hr.SetCookie
	scan.Summary.RawHeaders = make(map[string][]string, len(hr.RawHeader))
	for k, v := range hr.RawHeader {
		scan.Summary.RawHeaders[k] = []string{v}
	}

	acc.addTests(hr.Tests...)
	acc.addFindings(hr.Findings...)
	acc.addTests(probes.AnalyzeCSP(hr.CSP)...)

	isHTTPS := strings.HasPrefix(strings.ToLower(scan.TargetURL), "https://")
	acc.addFindings(probes.AnalyzeCookies(hr.SetCookie, scan.TargetURL, isHTTPS)...)

	return hr, nil
}

// =============================================================================
// Static Phase
// =============================================================================

// staticPhase runs the source-text analysers over the already-fetched
// response.
func (e *Engine) staticPhase(ctx context.Context, scan *datatypes.Scan, hr *probes.HeadersResult, acc *accumulator) {
	e.publish(scan.ID, datatypes.LogInfo, datatypes.PhaseStatic, "starting static analysis")

	htmlFindings, err := analyzers.AnalyzeHTML(hr.Body, scan.TargetURL, hr.CSP)
	if err != nil {
		e.publish(scan.ID, datatypes.LogWarning, datatypes.PhaseStatic, "html analysis skipped: "+err.Error())
	} else {
		acc.addFindings(htmlFindings...)
	}

	e.analyzeScripts(ctx, scan, hr, acc)
	e.analyzeManifest(ctx, scan, acc)

	e.publish(scan.ID, datatypes.LogSuccess, datatypes.PhaseStatic, "static analysis finished")
}

// analyzeScripts runs the JS analyser over inline scripts and a bounded
// set of same-origin external scripts.
func (e *Engine) analyzeScripts(ctx context.Context, scan *datatypes.Scan, hr *probes.HeadersResult, acc *accumulator) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(hr.Body))
	if err != nil {
		return
	}
	base, err := url.Parse(scan.TargetURL)
	if err != nil {
		return
	}
	hasCSP := hr.CSP != ""

	inline := 0
	var external []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			ref, err := url.Parse(strings.TrimSpace(src))
			if err != nil {
				return
			}
			resolved := base.ResolveReference(ref)
			if resolved.Host == base.Host && len(external) < maxStaticScripts {
				external = append(external, resolved.String())
			}
			return
		}
		inline++
		name := fmt.Sprintf("%s#inline-%d", base.Path, inline)
		if base.Path == "" {
			name = fmt.Sprintf("/#inline-%d", inline)
		}
		if findings, err := analyzers.AnalyzeJS(s.Text(), name, hasCSP); err == nil {
			acc.addFindings(findings...)
		}
	})

	if len(external) == 0 {
		return
	}
	client := probes.NewClient(300*time.Millisecond, e.probeTimeout)
	for _, scriptURL := range external {
		if ctx.Err() != nil {
			return
		}
		resp, err := client.Get(ctx, scriptURL)
		if err != nil || resp.StatusCode != 200 {
			continue
		}
		if findings, err := analyzers.AnalyzeJS(resp.Body, scriptURL, hasCSP); err == nil {
			acc.addFindings(findings...)
		}
	}
}

// analyzeManifest probes for a package.json at the target origin and runs
// the dependency analyser when one is served.
func (e *Engine) analyzeManifest(ctx context.Context, scan *datatypes.Scan, acc *accumulator) {
	base, err := url.Parse(scan.TargetURL)
	if err != nil {
		return
	}
	manifestURL := base.Scheme + "://" + base.Host + "/package.json"

	client := probes.NewClient(300*time.Millisecond, e.probeTimeout)
	resp, err := client.Get(ctx, manifestURL)
	if err != nil || resp.StatusCode != 200 {
		return
	}
	body := strings.TrimSpace(resp.Body)
	if !strings.HasPrefix(body, "{") {
		// Almost certainly a soft-404 page, not a manifest.
		return
	}

	findings, err := analyzers.AnalyzeManifest([]byte(body), manifestURL)
	if err != nil {
		e.publish(scan.ID, datatypes.LogWarning, datatypes.PhaseStatic, "manifest analysis skipped: "+err.Error())
		return
	}
	acc.addFindings(findings...)
}

// =============================================================================
// Dynamic Phase
// =============================================================================

// dynamicPhase logs in when configured, crawls, and fans the probers out
// over the discovered surface.
func (e *Engine) dynamicPhase(ctx context.Context, scan *datatypes.Scan, req datatypes.ScanRequest, acc *accumulator) error {
	opts := datatypes.DefaultCrawlerOptions()
	if req.CrawlerOptions != nil {
		opts = *req.CrawlerOptions
	}

	var sessionCookie string
	var protectedPages []string
	if req.AuthConfig != nil {
		sessionCookie = e.authPhase(ctx, scan, *req.AuthConfig, acc)
		protectedPages = req.AuthConfig.ProtectedPages
	}
	opts.SessionCookie = sessionCookie

	e.publish(scan.ID, datatypes.LogInfo, datatypes.PhaseCrawl, "starting crawl")
	cr, err := crawler.New(opts, e.logger, func(level datatypes.LogLevel, message string) {
		e.publish(scan.ID, level, datatypes.PhaseCrawl, message)
	})
	if err != nil {
		return err
	}

	result, err := cr.Crawl(ctx, scan.TargetURL)
	if err != nil {
		// ErrSeedUnreachable: nothing to probe, the scan fails.
		return err
	}
	scan.Summary.Crawl = &result.Metadata
	e.publish(scan.ID, datatypes.LogSuccess, datatypes.PhaseCrawl,
		fmt.Sprintf("crawl finished: %d pages, %d forms", result.Metadata.PagesScanned, result.Metadata.FormsDiscovered))

	e.runProbers(ctx, scan, result, sessionCookie, acc)

	// Exception disclosure over the already-fetched page bodies. The
	// crawler keeps 5xx bodies and their status codes for exactly this.
	for pageURL, body := range result.Pages {
		status, ok := result.Statuses[pageURL]
		if !ok {
			status = 200
		}
		acc.addFindings(probes.AnalyzeException(status, body, pageURL)...)
	}

	if len(protectedPages) > 0 {
		e.publish(scan.ID, datatypes.LogInfo, datatypes.PhaseAuth, "running auth bypass checks")
		findings, errs := authsession.NewBypassChecker(e.probeTimeout).Check(ctx, protectedPages, sessionCookie)
		acc.addFindings(findings...)
		for _, msg := range errs {
			e.publish(scan.ID, datatypes.LogWarning, datatypes.PhaseAuth, msg)
		}
	}

	e.publish(scan.ID, datatypes.LogSuccess, datatypes.PhaseDynamic, "dynamic analysis finished")
	return nil
}

// runProbers executes the dynamic probers concurrently. A prober panic is
// isolated: it is logged and the scan continues without that prober's
// findings.
func (e *Engine) runProbers(ctx context.Context, scan *datatypes.Scan, result *datatypes.CrawlResult, sessionCookie string, acc *accumulator) {
	urls := result.URLs
	if len(urls) > probes.MaxProbeURLs {
		urls = urls[:probes.MaxProbeURLs]
	}

	g, gctx := errgroup.WithContext(ctx)
	launch := func(name string, probe func(context.Context) ([]datatypes.Finding, []string)) {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("prober panicked", "scanId", scan.ID, "prober", name, "panic", r)
					e.publish(scan.ID, datatypes.LogError, datatypes.PhaseDynamic, name+" prober aborted")
				}
			}()
			findings, errs := probe(gctx)
			acc.addFindings(findings...)
			for _, msg := range errs {
				e.publish(scan.ID, datatypes.LogWarning, datatypes.PhaseDynamic, msg)
			}
			return nil
		})
	}

	launch("xss", func(ctx context.Context) ([]datatypes.Finding, []string) {
		return probes.NewXSSProber(e.probeTimeout).WithSession(sessionCookie, nil).Probe(ctx, urls)
	})
	launch("sqli", func(ctx context.Context) ([]datatypes.Finding, []string) {
		return probes.NewSQLiProber(e.probeTimeout).WithSession(sessionCookie, nil).Probe(ctx, urls)
	})
	launch("path-traversal", func(ctx context.Context) ([]datatypes.Finding, []string) {
		return probes.NewPathProber(e.probeTimeout).WithSession(sessionCookie, nil).Probe(ctx, urls)
	})
	launch("csrf", func(ctx context.Context) ([]datatypes.Finding, []string) {
		return probes.NewCSRFProber(e.probeTimeout).WithSession(sessionCookie, nil).Probe(ctx, result.Forms, result.Pages)
	})

	_ = g.Wait()
}

// =============================================================================
// Auth Phase
// =============================================================================

// authFailedTest records an unsuccessful login as a scored-but-neutral
// test so the results ledger shows the degrade.
func authFailedTest(reason string) datatypes.SecurityTest {
	return datatypes.SecurityTest{
		Name:   "Authentication",
		Passed: false,
		Result: datatypes.ResultNA,
		Reason: reason,
	}
}

// authPhase runs the single login attempt. It never fails the scan: a
// broken browser or rejected credentials degrade to an unauthenticated
// crawl with a recorded warning and an Authentication test entry.
func (e *Engine) authPhase(ctx context.Context, scan *datatypes.Scan, cfg datatypes.AuthConfig, acc *accumulator) string {
	e.publish(scan.ID, datatypes.LogInfo, datatypes.PhaseAuth, "attempting login")

	browser, err := e.newBrowser(ctx)
	if err != nil {
		warning := "browser unavailable, continuing unauthenticated"
		e.publish(scan.ID, datatypes.LogWarning, datatypes.PhaseAuth, warning)
		scan.Summary.Warnings = append(scan.Summary.Warnings, warning)
		acc.addTests(authFailedTest(warning))
		return ""
	}
	defer browser.Close()

	result, err := authsession.NewEngine(browser, e.logger).Login(ctx, cfg)
	if err != nil {
		warning := "login attempt errored, continuing unauthenticated"
		e.publish(scan.ID, datatypes.LogWarning, datatypes.PhaseAuth, warning)
		scan.Summary.Warnings = append(scan.Summary.Warnings, warning)
		acc.addTests(authFailedTest(warning))
		return ""
	}
	if !result.Success {
		warning := "login failed: " + result.FailureReason
		e.publish(scan.ID, datatypes.LogWarning, datatypes.PhaseAuth, warning)
		scan.Summary.Warnings = append(scan.Summary.Warnings, warning)
		acc.addTests(authFailedTest(warning))
		return ""
	}

	acc.addFindings(result.Findings...)
	e.publish(scan.ID, datatypes.LogSuccess, datatypes.PhaseAuth, "login succeeded")
	return result.CookieHeader
}
