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
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/logbus"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/observability"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/orchestrator"
)

// upgrader enforces same-origin on the WebSocket handshake. Browsers
// always send Origin on WS connects; requests without one come from
// non-browser clients and are allowed.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		parsed, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return parsed.Host == r.Host
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsWriteTimeout bounds a single WebSocket write.
const wsWriteTimeout = 10 * time.Second

// ScanLogsWebSocket handles GET /v1/scans/:scanId/logs/ws.
//
// # Description
//
// The WebSocket variant of the log stream. Each log event is sent as one
// JSON text message; the connection closes normally when the scan
// terminates. Client messages are read and discarded, serving only to
// detect disconnects.
func ScanLogsWebSocket(engine *orchestrator.Engine, bus *logbus.Bus, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		scanID := c.Param("scanId")
		scan, err := engine.Status(c.Request.Context(), scanID)
		if err != nil {
			c.JSON(lookupError(err), gin.H{"error": "scan not found"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "scanId", scanID, "error", err)
			return
		}
		defer ws.Close()

		metrics.ActiveLogStreams.WithLabelValues("ws").Inc()
		defer metrics.ActiveLogStreams.WithLabelValues("ws").Dec()

		send := func(v any) error {
			ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			return ws.WriteJSON(v)
		}

		if scan.Status.Terminal() {
			_ = send(terminalEvent(scan))
			closeNormally(ws)
			return
		}

		sub := bus.Subscribe(scanID)
		defer sub.Close()

		if current, err := engine.Status(c.Request.Context(), scanID); err == nil && current.Status.Terminal() {
			_ = send(terminalEvent(current))
			closeNormally(ws)
			return
		}

		// Read pump: drains client messages so a disconnect surfaces as a
		// read error.
		disconnected := make(chan struct{})
		go func() {
			defer close(disconnected)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case event, ok := <-sub.C:
				if !ok {
					closeNormally(ws)
					return
				}
				if err := send(event); err != nil {
					return
				}
				metrics.LogEventsStreamedTotal.WithLabelValues("ws").Inc()
			case <-disconnected:
				return
			}
		}
	}
}

// closeNormally sends a normal-closure frame so well-behaved clients do
// not report an abnormal close.
func closeNormally(ws *websocket.Conn) {
	deadline := time.Now().Add(wsWriteTimeout)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}
