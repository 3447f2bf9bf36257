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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/logbus"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/observability"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/orchestrator"
)

// keepAliveInterval is how often the SSE stream pings during quiet scan
// phases. Shorter than common proxy idle timeouts (60s).
const keepAliveInterval = 15 * time.Second

// terminalEvent is the synthetic event sent to a subscriber that attaches
// after the scan has already finished.
func terminalEvent(scan *datatypes.Scan) datatypes.LogEvent {
	level := datatypes.LogSuccess
	message := "scan completed"
	if scan.Status == datatypes.StatusFailed {
		level = datatypes.LogError
		message = "scan failed: " + scan.Summary.FailureReason
	}
	return datatypes.NewLogEvent(scan.ID, level, message)
}

// StreamScanLogs handles GET /v1/scans/:scanId/logs.
//
// # Description
//
// Streams the scan's log events as Server-Sent Events until the scan
// terminates or the client disconnects. Events are not replayed: a client
// attaching mid-scan sees only subsequent events, and a client attaching
// after the terminal transition receives a single terminal event before
// the stream closes.
func StreamScanLogs(engine *orchestrator.Engine, bus *logbus.Bus, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		scanID := c.Param("scanId")
		scan, err := engine.Status(c.Request.Context(), scanID)
		if err != nil {
			c.JSON(lookupError(err), gin.H{"error": "scan not found"})
			return
		}

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		metrics.ActiveLogStreams.WithLabelValues("sse").Inc()
		defer metrics.ActiveLogStreams.WithLabelValues("sse").Dec()

		if scan.Status.Terminal() {
			_ = writer.WriteLog(terminalEvent(scan))
			return
		}

		sub := bus.Subscribe(scanID)
		defer sub.Close()

		// The scan may have terminated between the status read and the
		// subscribe, in which case the bus will never close this
		// subscription.
		if current, err := engine.Status(c.Request.Context(), scanID); err == nil && current.Status.Terminal() {
			_ = writer.WriteLog(terminalEvent(current))
			return
		}

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-sub.C:
				if !ok {
					return
				}
				if err := writer.WriteLog(event); err != nil {
					return
				}
				metrics.LogEventsStreamedTotal.WithLabelValues("sse").Inc()
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					return
				}
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}
