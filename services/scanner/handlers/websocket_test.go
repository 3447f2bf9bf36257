// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
)

func TestWebSocketStreamAfterTerminalScan(t *testing.T) {
	ts := newTestServer(t)
	srv := staticSite(t)

	scanID := ts.startStaticScan(t, srv.URL)

	live := httptest.NewServer(ts.router)
	t.Cleanup(live.Close)

	wsURL := "ws" + strings.TrimPrefix(live.URL, "http") + "/v1/scans/" + scanID + "/logs/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	var event datatypes.LogEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, scanID, event.ScanID)
	assert.Contains(t, event.Message, "scan completed")

	// The server closes normally after the terminal event.
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestWebSocketCrossOriginHandshakeRejected(t *testing.T) {
	ts := newTestServer(t)
	srv := staticSite(t)

	scanID := ts.startStaticScan(t, srv.URL)

	live := httptest.NewServer(ts.router)
	t.Cleanup(live.Close)

	wsURL := "ws" + strings.TrimPrefix(live.URL, "http") + "/v1/scans/" + scanID + "/logs/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if conn != nil {
		conn.Close()
	}
	if resp != nil {
		defer resp.Body.Close()
	}

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
