// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the live-log event types streamed to subscribers.

package datatypes

import "time"

// LogLevel is the severity of a progress event.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// LogEvent is a structured progress event published on the log bus.
//
// # Description
//
// Every component of a running scan publishes LogEvents keyed by scan ID.
// Events are ephemeral: they are fanned out to current subscribers and not
// persisted, so subscribers attaching late see only subsequent events.
type LogEvent struct {
	ScanID    string            `json:"scanId"`
	Timestamp string            `json:"timestampIso"`
	Level     LogLevel          `json:"level"`
	Message   string            `json:"message"`
	Phase     ScanPhase         `json:"phase,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewLogEvent builds an event with the timestamp set to now (UTC, RFC 3339).
func NewLogEvent(scanID string, level LogLevel, message string) LogEvent {
	return LogEvent{
		ScanID:    scanID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   message,
	}
}

// WithPhase returns a copy of the event tagged with the given phase.
func (e LogEvent) WithPhase(phase ScanPhase) LogEvent {
	e.Phase = phase
	return e
}

// WithMetadata returns a copy of the event with one metadata pair added.
func (e LogEvent) WithMetadata(key, value string) LogEvent {
	md := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	e.Metadata = md
	return e
}
