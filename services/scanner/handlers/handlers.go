// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP handlers of the scanner service:
// scan submission, status, results, history, and the SSE and WebSocket
// log streams.
//
// Handlers translate engine errors into HTTP status codes and never leak
// internal error detail beyond the one-line messages the engine already
// considers client-safe.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/normalize"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/observability"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/orchestrator"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/storage"
)

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// submitError maps a rejected submission to its HTTP status code and
// metrics reason.
//
//   - structurally invalid body or target: 400
//   - authConfig with STATIC mode: 409
//   - concurrency cap reached: 429
//   - target reachable on no scheme: 422
func submitError(err error) (int, observability.RejectionReason) {
	switch {
	case errors.Is(err, datatypes.ErrAuthModeConflict):
		return http.StatusConflict, observability.ReasonAuthModeConflict
	case errors.Is(err, orchestrator.ErrTooManyScans):
		return http.StatusTooManyRequests, observability.ReasonCapacity
	case errors.Is(err, normalize.ErrUnreachable):
		return http.StatusUnprocessableEntity, observability.ReasonUnreachable
	case errors.Is(err, normalize.ErrInvalidTarget):
		return http.StatusBadRequest, observability.ReasonInvalidTarget
	default:
		return http.StatusBadRequest, observability.ReasonValidation
	}
}

// lookupError maps a scan lookup failure to its HTTP status code.
func lookupError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrNotTerminal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
