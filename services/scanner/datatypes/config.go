// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains request and configuration types for scan submission.

package datatypes

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrAuthModeConflict is returned when a request pairs authConfig with
// STATIC mode. The HTTP layer maps it to 409 rather than 400.
var ErrAuthModeConflict = errors.New("authConfig is not applicable to STATIC mode")

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxTargetURLBytes bounds the submitted target URL.
	MaxTargetURLBytes = 2048

	// MaxProtectedPages bounds the protected-page list in an auth config.
	MaxProtectedPages = 20
)

// scanValidate is the shared validator instance for scan datatypes.
var scanValidate = validator.New()

// =============================================================================
// Crawler Options
// =============================================================================

// CrawlerOptions configures the breadth-first crawl of a dynamic scan.
//
// Only the fields below are recognised; out-of-range values are rejected at
// submission rather than silently clamped.
type CrawlerOptions struct {
	MaxDepth          int  `json:"maxDepth" validate:"min=1,max=5"`
	MaxPages          int  `json:"maxPages" validate:"min=1,max=200"`
	RateLimitMs       int  `json:"rateLimitMs" validate:"min=100,max=5000"`
	RespectRobotsTxt  bool `json:"respectRobotsTxt"`
	AllowExternal     bool `json:"allowExternalLinks"`
	TimeoutMs         int  `json:"timeoutMs" validate:"min=5000,max=30000"`
	SessionCookie     string `json:"-"`
	SessionExtraHeaders map[string]string `json:"-"`
}

// DefaultCrawlerOptions returns the documented crawl defaults.
func DefaultCrawlerOptions() CrawlerOptions {
	return CrawlerOptions{
		MaxDepth:         2,
		MaxPages:         50,
		RateLimitMs:      1000,
		RespectRobotsTxt: true,
		AllowExternal:    false,
		TimeoutMs:        10000,
	}
}

// Validate checks the option ranges.
//
// A zero rate limit is rejected: pacing is a safety invariant, not a tuning
// knob.
func (o CrawlerOptions) Validate() error {
	if err := scanValidate.Struct(o); err != nil {
		return fmt.Errorf("crawler options: %w", err)
	}
	return nil
}

// RateLimit returns the configured pacing as a duration.
func (o CrawlerOptions) RateLimit() time.Duration {
	return time.Duration(o.RateLimitMs) * time.Millisecond
}

// Timeout returns the per-request timeout as a duration.
func (o CrawlerOptions) Timeout() time.Duration {
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// =============================================================================
// Authenticated Scan Configuration
// =============================================================================

// AuthConfig describes the headless login flow for an authenticated scan.
//
// # Description
//
// All selector fields are CSS selectors evaluated in the page. Exactly one
// of SuccessSelector or SuccessURL should be set; when both are empty the
// engine falls back to network-idle detection. Credentials are used for a
// single login attempt and are never logged or persisted.
type AuthConfig struct {
	LoginURL         string   `json:"loginUrl" validate:"required,url"`
	UsernameSelector string   `json:"usernameSelector" validate:"required"`
	PasswordSelector string   `json:"passwordSelector" validate:"required"`
	SubmitSelector   string   `json:"submitSelector" validate:"required"`
	Username         string   `json:"username" validate:"required"`
	Password         string   `json:"password" validate:"required"`
	SuccessSelector  string   `json:"successSelector,omitempty"`
	SuccessURL       string   `json:"successUrl,omitempty"`
	ProtectedPages   []string `json:"protectedPages,omitempty" validate:"max=20,dive,url"`
}

// Validate checks that the required login fields are present.
func (a AuthConfig) Validate() error {
	if err := scanValidate.Struct(a); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}
	return nil
}

// =============================================================================
// Scan Request
// =============================================================================

// ScanRequest is the body of POST /v1/scans.
type ScanRequest struct {
	TargetURL      string          `json:"targetUrl" validate:"required,max=2048"`
	Mode           ScanMode        `json:"mode" validate:"required"`
	AuthConfig     *AuthConfig     `json:"authConfig,omitempty"`
	CrawlerOptions *CrawlerOptions `json:"crawlerOptions,omitempty"`
}

// Validate checks structural validity of the request.
//
// AuthConfig with STATIC mode is rejected here (409 at the handler): a
// static scan never authenticates, so accepting credentials would imply a
// flow that will not run.
func (r ScanRequest) Validate() error {
	if err := scanValidate.Struct(r); err != nil {
		return fmt.Errorf("scan request: %w", err)
	}
	if !r.Mode.Valid() {
		return fmt.Errorf("scan request: invalid mode %q", r.Mode)
	}
	if r.AuthConfig != nil {
		if r.Mode == ModeStatic {
			return fmt.Errorf("scan request: %w", ErrAuthModeConflict)
		}
		if err := r.AuthConfig.Validate(); err != nil {
			return err
		}
	}
	if r.CrawlerOptions != nil {
		if err := r.CrawlerOptions.Validate(); err != nil {
			return err
		}
	}
	return nil
}
