// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCrawlerOptionsAreValid(t *testing.T) {
	assert.NoError(t, DefaultCrawlerOptions().Validate())
}

func TestCrawlerOptionsRanges(t *testing.T) {
	mutate := func(fn func(*CrawlerOptions)) CrawlerOptions {
		o := DefaultCrawlerOptions()
		fn(&o)
		return o
	}

	tests := []struct {
		name string
		opts CrawlerOptions
		ok   bool
	}{
		{"depth too deep", mutate(func(o *CrawlerOptions) { o.MaxDepth = 6 }), false},
		{"depth zero", mutate(func(o *CrawlerOptions) { o.MaxDepth = 0 }), false},
		{"pages over cap", mutate(func(o *CrawlerOptions) { o.MaxPages = 201 }), false},
		{"rate below floor", mutate(func(o *CrawlerOptions) { o.RateLimitMs = 50 }), false},
		{"rate zero", mutate(func(o *CrawlerOptions) { o.RateLimitMs = 0 }), false},
		{"timeout below floor", mutate(func(o *CrawlerOptions) { o.TimeoutMs = 1000 }), false},
		{"boundary maximums", mutate(func(o *CrawlerOptions) {
			o.MaxDepth = 5
			o.MaxPages = 200
			o.RateLimitMs = 5000
			o.TimeoutMs = 30000
		}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSessionFieldsNeverSerialized(t *testing.T) {
	opts := DefaultCrawlerOptions()
	opts.SessionCookie = "session=secret"
	opts.SessionExtraHeaders = map[string]string{"Authorization": "Bearer secret"}

	blob, err := json.Marshal(opts)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "secret")
}

func validAuthConfig() *AuthConfig {
	return &AuthConfig{
		LoginURL:         "https://example.com/login",
		UsernameSelector: "#user",
		PasswordSelector: "#pass",
		SubmitSelector:   "#submit",
		Username:         "alice",
		Password:         "pw",
	}
}

func TestScanRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		req  ScanRequest
		ok   bool
	}{
		{"minimal static", ScanRequest{TargetURL: "https://example.com", Mode: ModeStatic}, true},
		{"missing target", ScanRequest{Mode: ModeBoth}, false},
		{"bad mode", ScanRequest{TargetURL: "https://example.com", Mode: "FULL"}, false},
		{"auth with dynamic", ScanRequest{TargetURL: "https://example.com", Mode: ModeDynamic, AuthConfig: validAuthConfig()}, true},
		{"auth with static", ScanRequest{TargetURL: "https://example.com", Mode: ModeStatic, AuthConfig: validAuthConfig()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAuthConfigRequiresCredentials(t *testing.T) {
	cfg := validAuthConfig()
	cfg.Password = ""
	assert.Error(t, cfg.Validate())

	cfg = validAuthConfig()
	cfg.LoginURL = "not a url"
	assert.Error(t, cfg.Validate())
}
