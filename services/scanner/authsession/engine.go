// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package authsession

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// =============================================================================
// Timeouts
// =============================================================================

const (
	navigationTimeout  = 15 * time.Second
	selectorTimeout    = 5 * time.Second
	successTimeout     = 10 * time.Second
	networkIdleSettle  = 10 * time.Second
	minSessionTokenLen = 16
)

// =============================================================================
// Engine
// =============================================================================

// Engine runs the headless login flow and derives a session for the
// authenticated crawl.
//
// # Assumptions
//
// Exactly one login attempt is made per scan. Credentials pass through to
// the browser and are never written to logs, findings, or storage.
type Engine struct {
	browser Browser
	logger  *slog.Logger
}

// Result is the outcome of a login attempt.
type Result struct {
	// Success is true when the success condition was observed.
	Success bool

	// CookieHeader is the Cookie header value for authenticated requests;
	// empty when login failed.
	CookieHeader string

	// Cookies are the captured session cookies.
	Cookies []Cookie

	// Findings are session-cookie weaknesses observed after login.
	Findings []datatypes.Finding

	// FailureReason is set when Success is false.
	FailureReason string
}

// NewEngine builds a login engine around a browser backend.
func NewEngine(browser Browser, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{browser: browser, logger: logger}
}

// Login executes the configured login flow once.
//
// # Description
//
// Navigates to the login URL, waits for each selector, fills credentials,
// clicks submit, and determines success by (in priority order) the success
// selector, the success URL, or a network-idle settle. The browser is NOT
// closed here; the orchestrator owns its lifecycle so bypass checks can
// reuse the context. A failed login is not an error: the scan continues
// unauthenticated, so failures come back inside Result.
func (e *Engine) Login(ctx context.Context, cfg datatypes.AuthConfig) (*Result, error) {
	if e.browser == nil {
		return nil, ErrBrowserUnavailable
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fail := func(reason string) *Result {
		e.logger.Warn("login failed", "reason", reason, "loginUrl", cfg.LoginURL)
		return &Result{FailureReason: reason}
	}

	if err := e.browser.Goto(ctx, cfg.LoginURL, navigationTimeout); err != nil {
		return fail(fmt.Sprintf("navigate to login page: %v", err)), nil
	}

	for _, selector := range []string{cfg.UsernameSelector, cfg.PasswordSelector, cfg.SubmitSelector} {
		if err := e.browser.WaitForSelector(ctx, selector, selectorTimeout); err != nil {
			return fail(fmt.Sprintf("selector %q not found", selector)), nil
		}
	}

	if err := e.browser.Fill(ctx, cfg.UsernameSelector, cfg.Username); err != nil {
		return fail("could not fill username field"), nil
	}
	if err := e.browser.Fill(ctx, cfg.PasswordSelector, cfg.Password); err != nil {
		return fail("could not fill password field"), nil
	}
	if err := e.browser.Click(ctx, cfg.SubmitSelector); err != nil {
		return fail("could not click submit"), nil
	}

	switch {
	case cfg.SuccessSelector != "":
		if err := e.browser.WaitForSelector(ctx, cfg.SuccessSelector, successTimeout); err != nil {
			return fail("success selector never appeared"), nil
		}
	case cfg.SuccessURL != "":
		if err := e.browser.WaitForURL(ctx, cfg.SuccessURL, successTimeout); err != nil {
			return fail("success url never reached"), nil
		}
	default:
		// Network-idle fallback: give the post-submit navigation time to
		// settle, then trust the cookie jar.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(networkIdleSettle):
		}
	}

	cookies, err := e.browser.Cookies(ctx)
	if err != nil {
		return fail(fmt.Sprintf("could not read cookies: %v", err)), nil
	}
	if len(cookies) == 0 {
		return fail("login produced no cookies"), nil
	}

	result := &Result{
		Success:      true,
		Cookies:      cookies,
		CookieHeader: buildCookieHeader(cookies),
		Findings:     analyzeSessionCookies(cookies, cfg.LoginURL),
	}
	e.logger.Info("login succeeded", "cookies", len(cookies))
	return result, nil
}

// buildCookieHeader joins cookies into a Cookie header value.
func buildCookieHeader(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// analyzeSessionCookies applies the session-cookie attribute contract to
// browser-captured cookies.
func analyzeSessionCookies(cookies []Cookie, location string) []datatypes.Finding {
	isHTTPS := strings.HasPrefix(strings.ToLower(location), "https://")

	var findings []datatypes.Finding
	add := func(ruleID, evidence string) {
		if f, err := rules.NewFinding(ruleID, location, evidence, ""); err == nil {
			findings = append(findings, f)
		}
	}

	for _, c := range cookies {
		if !looksLikeSessionCookie(c.Name) {
			continue
		}
		if isHTTPS && !c.Secure {
			add(rules.RuleAuthCookieSecure, "cookie "+c.Name+" lacks Secure")
		}
		if !c.HTTPOnly {
			add(rules.RuleAuthCookieHTTP, "cookie "+c.Name+" lacks HttpOnly")
		}
		sameSite := strings.ToLower(c.SameSite)
		if sameSite == "" || (sameSite == "none" && !c.Secure) {
			add(rules.RuleAuthSameSite, fmt.Sprintf("cookie %s SameSite=%q", c.Name, c.SameSite))
		}
		if len(c.Value) < minSessionTokenLen {
			add(rules.RuleAuthWeakToken, fmt.Sprintf("cookie %s value length %d", c.Name, len(c.Value)))
		}
	}
	return findings
}

// looksLikeSessionCookie matches authentication-bearing cookie names.
func looksLikeSessionCookie(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range []string{"sess", "auth", "token", "jwt", "sid", "login", "user"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
