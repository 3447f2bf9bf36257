// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/observability"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/orchestrator"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/storage"
)

// StartScan handles POST /v1/scans.
//
// # Description
//
// Binds and validates the scan request, submits it to the engine, and
// echoes the normalisation outcome. Rejections produce an error status
// and no scan record:
//
//   - 400: malformed body, invalid mode or options, invalid target URL
//   - 409: authConfig paired with STATIC mode
//   - 422: target reachable on no scheme
//   - 429: concurrent scan cap reached
func StartScan(engine *orchestrator.Engine, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.ScanRejected(observability.ReasonValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		scan, err := engine.Start(c.Request.Context(), req)
		if err != nil {
			status, reason := submitError(err)
			metrics.ScanRejected(reason)
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"scanId":  scan.ID,
			"status":  scan.Status,
			"urlInfo": scan.Summary.URLInfo,
		})
	}
}

// GetScanStatus handles GET /v1/scans/:scanId/status.
func GetScanStatus(engine *orchestrator.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		scan, err := engine.Status(c.Request.Context(), c.Param("scanId"))
		if err != nil {
			c.JSON(lookupError(err), gin.H{"error": "scan not found"})
			return
		}
		c.JSON(http.StatusOK, scan)
	}
}

// GetScanResults handles GET /v1/scans/:scanId/results.
//
// Results exist only after the terminal transition; a PENDING or RUNNING
// scan yields 409 rather than a partial result set.
func GetScanResults(engine *orchestrator.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := engine.GetResults(c.Request.Context(), c.Param("scanId"))
		if err != nil {
			c.JSON(lookupError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

// CancelScan handles POST /v1/scans/:scanId/cancel.
//
// Cancellation is asynchronous: a 202 means the abort was signalled, not
// that the scan has already reached FAILED.
func CancelScan(engine *orchestrator.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !engine.Cancel(c.Param("scanId")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no running scan with that id"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
	}
}

// GetScanHistory handles GET /v1/history/:hostname.
//
// Returns the most recent scans for the hostname, newest first, capped at
// the storage history limit. An unknown hostname yields an empty list,
// not 404.
func GetScanHistory(engine *orchestrator.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := storage.MaxHistoryResults
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}

		scans, err := engine.History(c.Request.Context(), c.Param("hostname"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
			return
		}
		if scans == nil {
			scans = []datatypes.Scan{}
		}
		c.JSON(http.StatusOK, gin.H{"hostname": c.Param("hostname"), "scans": scans})
	}
}
