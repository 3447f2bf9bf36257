// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the scanner service.
//
// # Same-Origin Flow
//
// Scan submission and the other /v1 endpoints enforce a same-origin
// policy: when a browser identifies the requesting page via Origin or
// Referer, that page's host must match the Host the request was sent to.
// Requests carrying neither header come from non-browser clients (curl,
// the CLI) and pass through.
//
//	Request
//	   │
//	   ▼
//	SameOrigin
//	   │
//	   ├─► Origin present?  host must equal request Host, else 403
//	   │
//	   ├─► else Referer present?  host must equal request Host, else 403
//	   │
//	   └─► neither: allow (non-browser client)
//	           │
//	           ▼
//	       Handler
package middleware

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// SameOrigin rejects cross-origin browser requests with 403.
//
// # Description
//
// A scanner that accepts cross-origin submissions is itself a CSRF
// target: any page the operator visits could start scans against
// arbitrary hosts. The check compares the Origin (or, absent that, the
// Referer) host against the request Host.
func SameOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.GetHeader("Origin")
		if source == "" {
			source = c.GetHeader("Referer")
		}
		if source == "" {
			c.Next()
			return
		}

		parsed, err := url.Parse(source)
		if err != nil || parsed.Host != c.Request.Host {
			c.AbortWithStatusJSON(http.StatusForbidden,
				gin.H{"error": "cross-origin requests are not allowed"})
			return
		}
		c.Next()
	}
}

// SecurityHeaders sets restrictive response headers on every response.
//
// The service serves JSON and event streams only, so framing, MIME
// sniffing, and embedded content are all disabled outright.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Set("X-Frame-Options", "DENY")
		header.Set("X-Content-Type-Options", "nosniff")
		header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		header.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Next()
	}
}
