// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for the scanner service and
// CLI.
//
// The logger is built on the standard library slog package with two
// destinations:
//
//   - stderr: human-readable text, following Unix CLI conventions
//   - log file: JSON lines under LogDir, one file per service per day
//
// # Basic Usage
//
// For CLI usage with stderr output only:
//
//	logger := logging.Default()
//	logger.Info("starting scan", "target", targetURL)
//
// To enable file logging alongside stderr:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.webscan/logs",
//	    Service: "scanner",
//	})
//	defer logger.Close()
//
// # Security Considerations
//
// Never log credentials, session cookies, or Authorization headers. The
// scanner's auth flow passes secrets by value and logs only selectors and
// outcomes; callers of this package must uphold the same rule.
//
// # Thread Safety
//
// Logger is safe for concurrent use.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// =============================================================================
// Levels
// =============================================================================

// Level is the minimum severity a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the conventional upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds logger construction options. The zero value logs Info and
// above to stderr as text.
type Config struct {
	// Level is the minimum severity to emit.
	Level Level

	// LogDir enables file logging when non-empty. Supports ~ expansion.
	// Files are named {service}_{date}.log and contain JSON lines.
	LogDir string

	// Service is attached as a "service" attribute to every record and
	// used in log file names. Default: "webscan"
	Service string

	// Quiet suppresses the stderr destination (file-only logging).
	Quiet bool

	// JSON switches the stderr destination to JSON lines.
	JSON bool
}

// =============================================================================
// Logger
// =============================================================================

// Logger writes structured records to stderr and optionally a log file.
type Logger struct {
	slog   *slog.Logger
	file   *os.File
	config Config
}

// New creates a logger from the given configuration.
//
// A missing or unwritable LogDir degrades to stderr-only logging rather
// than failing: the scanner must keep running when the disk does not
// cooperate.
func New(config Config) *Logger {
	if config.Service == "" {
		config.Service = "webscan"
	}

	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	logger := &Logger{config: config}

	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0750); err == nil {
			filename := fmt.Sprintf("%s_%s.log", config.Service, time.Now().Format("2006-01-02"))
			file, err := os.OpenFile(filepath.Join(logDir, filename),
				os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
			if err == nil {
				logger.file = file
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	logger.slog = slog.New(handler)
	return logger
}

// Default returns a stderr-only Info-level logger.
func Default() *Logger {
	return New(Config{Level: LevelInfo})
}

// Debug logs at Debug level with slog-style key-value attributes.
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// Info logs at Info level.
func (l *Logger) Info(msg string, args ...any) { l.slog.Info(msg, args...) }

// Warn logs at Warn level.
func (l *Logger) Warn(msg string, args ...any) { l.slog.Warn(msg, args...) }

// Error logs at Error level.
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a logger carrying additional attributes on every record.
// The file handle stays owned by the parent; only the parent's Close
// closes it.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), config: l.config}
}

// Slog exposes the underlying slog.Logger for components that take one
// directly (storage, the orchestration engine).
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// =============================================================================
// Multi-Handler (Internal)
// =============================================================================

// multiHandler fans records out to multiple slog handlers, enabling
// simultaneous text-to-stderr and JSON-to-file output.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// =============================================================================
// Helpers
// =============================================================================

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
