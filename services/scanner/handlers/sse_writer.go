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
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter writes scan log events to an HTTP response in SSE format.
//
// # Description
//
// Each event is written as:
//
//	event: log
//	data: {json-encoded LogEvent}
//
// and flushed immediately. Keepalive comments (": ping") hold the
// connection open through proxies during quiet scan phases.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the keepalive ticker
// and the event pump write from different goroutines.
//
// # Assumptions
//
//   - Caller has set SSE headers (SetSSEHeaders) before the first write
type SSEWriter interface {
	// WriteLog writes a single log event and flushes.
	WriteLog(event datatypes.LogEvent) error

	// WriteKeepAlive sends an SSE comment to keep the connection alive.
	// Comments are ignored by clients but reset proxy idle timers.
	WriteKeepAlive() error
}

// =============================================================================
// Implementation
// =============================================================================

// sseWriter implements SSEWriter over an http.ResponseWriter.
//
// # Limitations
//
//   - Requires http.Flusher support
//   - Cannot be reused across requests
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEWriter creates an SSEWriter for the given ResponseWriter.
//
// Returns an error when the ResponseWriter does not support flushing, in
// which case the handler should fall back to a plain error response.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

func (w *sseWriter) WriteLog(event datatypes.LogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, "event: log\ndata: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetSSEHeaders configures the response headers for SSE streaming. Must
// be called before the first write.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

var _ SSEWriter = (*sseWriter)(nil)
