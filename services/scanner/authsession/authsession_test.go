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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// =============================================================================
// Fake Browser
// =============================================================================

// fakeBrowser scripts the browser capability for login tests.
type fakeBrowser struct {
	cookies          []Cookie
	missingSelectors map[string]bool
	filled           map[string]string
	clicked          []string
	gotoErr          error
	closed           bool
}

func newFakeBrowser(cookies ...Cookie) *fakeBrowser {
	return &fakeBrowser{
		cookies:          cookies,
		missingSelectors: make(map[string]bool),
		filled:           make(map[string]string),
	}
}

func (f *fakeBrowser) Goto(_ context.Context, _ string, _ time.Duration) error { return f.gotoErr }

func (f *fakeBrowser) WaitForSelector(_ context.Context, selector string, _ time.Duration) error {
	if f.missingSelectors[selector] {
		return errors.New("not found")
	}
	return nil
}

func (f *fakeBrowser) WaitForURL(_ context.Context, _ string, _ time.Duration) error { return nil }

func (f *fakeBrowser) Fill(_ context.Context, selector, value string) error {
	f.filled[selector] = value
	return nil
}

func (f *fakeBrowser) Click(_ context.Context, selector string) error {
	f.clicked = append(f.clicked, selector)
	return nil
}

func (f *fakeBrowser) Cookies(_ context.Context) ([]Cookie, error) { return f.cookies, nil }

func (f *fakeBrowser) Close() error { f.closed = true; return nil }

var _ Browser = (*fakeBrowser)(nil)

func validConfig() datatypes.AuthConfig {
	return datatypes.AuthConfig{
		LoginURL:         "https://example.com/login",
		UsernameSelector: "#user",
		PasswordSelector: "#pass",
		SubmitSelector:   "#submit",
		Username:         "alice",
		Password:         "wonderland",
		SuccessSelector:  "#dashboard",
	}
}

// =============================================================================
// Login
// =============================================================================

func TestLoginSuccess(t *testing.T) {
	browser := newFakeBrowser(Cookie{
		Name: "session", Value: "0123456789abcdef0123456789abcdef",
		Secure: true, HTTPOnly: true, SameSite: "Lax",
	})
	engine := NewEngine(browser, nil)

	result, err := engine.Login(context.Background(), validConfig())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "session=0123456789abcdef0123456789abcdef", result.CookieHeader)
	assert.Empty(t, result.Findings, "hardened cookie yields no findings")
	assert.Equal(t, "alice", browser.filled["#user"])
	assert.Equal(t, []string{"#submit"}, browser.clicked)
}

func TestLoginWeakSessionCookie(t *testing.T) {
	browser := newFakeBrowser(Cookie{Name: "auth", Value: "short"})
	engine := NewEngine(browser, nil)

	result, err := engine.Login(context.Background(), validConfig())
	require.NoError(t, err)
	require.True(t, result.Success)

	var ids []string
	for _, f := range result.Findings {
		ids = append(ids, f.RuleID)
	}
	assert.Contains(t, ids, rules.RuleAuthCookieSecure)
	assert.Contains(t, ids, rules.RuleAuthCookieHTTP)
	assert.Contains(t, ids, rules.RuleAuthWeakToken)
}

func TestLoginSelectorMissingIsNotError(t *testing.T) {
	browser := newFakeBrowser()
	browser.missingSelectors["#pass"] = true
	engine := NewEngine(browser, nil)

	result, err := engine.Login(context.Background(), validConfig())
	require.NoError(t, err, "a failed login is a result, not an error")
	assert.False(t, result.Success)
	assert.Contains(t, result.FailureReason, "#pass")
}

func TestLoginInvalidConfigRejected(t *testing.T) {
	engine := NewEngine(newFakeBrowser(), nil)
	cfg := validConfig()
	cfg.Password = ""
	_, err := engine.Login(context.Background(), cfg)
	require.Error(t, err)
}

func TestLoginNeverLogsCredentials(t *testing.T) {
	browser := newFakeBrowser()
	browser.missingSelectors["#user"] = true
	engine := NewEngine(browser, nil)

	result, err := engine.Login(context.Background(), validConfig())
	require.NoError(t, err)
	assert.NotContains(t, result.FailureReason, "wonderland")
}

// =============================================================================
// Bypass Checks
// =============================================================================

// protectedSite models scenario: /admin 302s to /login unless a bypass
// parameter is present.
func protectedSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/admin", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("admin") == "true" {
			fmt.Fprint(w, "<html>admin panel</html>")
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>login</html>")
	})
	return httptest.NewServer(mux)
}

func TestBypassViaParameter(t *testing.T) {
	srv := protectedSite(t)
	defer srv.Close()

	checker := NewBypassChecker(5 * time.Second)
	findings, errs := checker.Check(context.Background(), []string{srv.URL + "/admin"}, "")
	require.Empty(t, errs)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, rules.RuleAuthBypassParam, f.RuleID)
	assert.Equal(t, "Parameter-Based Auth Bypass", f.Type)
	assert.Equal(t, datatypes.SeverityCritical, f.Severity)
	assert.Contains(t, f.Evidence, "admin=true")
}

func TestBypassDirectAccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>secret report</html>")
	}))
	defer srv.Close()

	checker := NewBypassChecker(5 * time.Second)
	findings, _ := checker.Check(context.Background(), []string{srv.URL + "/reports"}, "")
	require.Len(t, findings, 1)
	assert.Equal(t, rules.RuleAuthBypassDirect, findings[0].RuleID)
	assert.Equal(t, datatypes.SeverityCritical, findings[0].Severity)
}

func TestBypassTamperedToken(t *testing.T) {
	const goodCookie = "session=0123456789abcdef"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie := r.Header.Get("Cookie")
		if cookie == "" {
			http.Redirect(w, r, "/login?next=admin", http.StatusFound)
			return
		}
		// Accepts any cookie at all: tampered sessions pass.
		fmt.Fprint(w, "<html>admin</html>")
	}))
	defer srv.Close()

	checker := newBypassChecker(time.Millisecond, 5*time.Second)
	findings, _ := checker.Check(context.Background(), []string{srv.URL + "/panel"}, goodCookie)

	var ids []string
	for _, f := range findings {
		ids = append(ids, f.RuleID)
	}
	assert.Contains(t, ids, rules.RuleAuthTamperedToken)
	assert.NotContains(t, ids, rules.RuleAuthBypassDirect)
}

func TestBypassProtectedPageClean(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "login required")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	checker := newBypassChecker(time.Millisecond, 5*time.Second)
	findings, _ := checker.Check(context.Background(), []string{srv.URL + "/admin"}, "session=abc0123456789def")
	assert.Empty(t, findings)
}

func TestTamperCookieKeepsShape(t *testing.T) {
	tampered := tamperCookie("sid=abcd1234; theme=dark")
	assert.NotEqual(t, "sid=abcd1234; theme=dark", tampered)
	assert.True(t, strings.HasPrefix(tampered, "sid="))
	assert.Contains(t, tampered, "; theme=")
	assert.Equal(t, len("sid=abcd1234; theme=dark"), len(tampered))
}
