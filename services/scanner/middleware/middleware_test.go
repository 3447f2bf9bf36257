// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw)
	router.POST("/scan", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/scan", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		referer string
		status  int
	}{
		{"no identifying headers", "", "", http.StatusOK},
		{"matching origin", "http://example.com", "", http.StatusOK},
		{"https origin same host", "https://example.com", "", http.StatusOK},
		{"mismatched origin", "http://evil.example", "", http.StatusForbidden},
		{"origin with different port", "http://example.com:8080", "", http.StatusForbidden},
		{"unparseable origin", "http://[::1", "", http.StatusForbidden},
		{"matching referer", "", "http://example.com/page", http.StatusOK},
		{"mismatched referer", "", "http://evil.example/page", http.StatusForbidden},
		{"origin wins over referer", "http://evil.example", "http://example.com/page", http.StatusForbidden},
	}

	router := newRouter(SameOrigin())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/scan", nil)
			req.Host = "example.com"
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	router := newRouter(SecurityHeaders())

	req := httptest.NewRequest(http.MethodGet, "/scan", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'",
		w.Header().Get("Content-Security-Policy"))
}
