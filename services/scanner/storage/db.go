// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage persists scan records, findings, and security tests in an
// embedded BadgerDB instance.
//
// Scans are small JSON blobs with low-latency access requirements and no
// relational queries beyond "by host" and "by status", which the key scheme
// serves directly:
//
//	scan:<id>                        scan record
//	scanfind:<id>:<n>                finding n of a scan
//	scantest:<id>:<n>                security test n of a scan
//	host:<hostname>:<revTime>:<id>   history index, newest first
//	status:<status>:<id>             status index
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the scan database.
type Config struct {
	// Path is the directory for database files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). For testing.
	InMemory bool

	// SyncWrites enables synchronous writes. A scan's terminal transition
	// is its commit point, so production keeps this on.
	SyncWrites bool

	// Logger receives BadgerDB's internal log lines. Nil disables them.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Zero disables GC (and in-memory databases never run it).
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable ratio before GC rewrites
	// a value log file. Default 0.5.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults: durable writes and a
// five-minute GC cadence.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// DB wraps a BadgerDB instance with lifecycle management for the scanner.
type DB struct {
	*badger.DB

	logger  *slog.Logger
	gcRatio float64
	gcStop  chan struct{}
	gcDone  chan struct{}
}

// Open opens the scan database.
//
// # Description
//
// Opens BadgerDB at the configured path (creating the directory) or in
// memory, and starts the GC loop when GCInterval is set on a persistent
// database.
//
// # Outputs
//
//   - *DB: the opened database. Caller must Close it.
//   - error: non-nil when the path is missing or Badger cannot open.
//
// # Thread Safety
//
// The returned DB is safe for concurrent use.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("storage: path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	raw, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open scan database: %w", err)
	}

	db := &DB{DB: raw, logger: cfg.Logger, gcRatio: cfg.GCDiscardRatio}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		db.gcStop = make(chan struct{})
		db.gcDone = make(chan struct{})
		go db.runGC(cfg.GCInterval)
	}
	return db, nil
}

// OpenInMemory opens an in-memory database for testing.
func OpenInMemory() (*DB, error) {
	return Open(InMemoryConfig())
}

// Close stops garbage collection and closes the database.
func (d *DB) Close() error {
	if d.gcStop != nil {
		close(d.gcStop)
		<-d.gcDone
		d.gcStop = nil
	}
	return d.DB.Close()
}

func (d *DB) runGC(interval time.Duration) {
	defer close(d.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.gcStop:
			return
		case <-ticker.C:
			err := d.RunValueLogGC(d.gcRatio)
			switch {
			case err == nil:
				if d.logger != nil {
					d.logger.Debug("badger value log GC completed")
				}
			case errors.Is(err, badger.ErrNoRewrite):
				// Nothing to collect.
			default:
				if d.logger != nil {
					d.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
				}
			}
		}
	}
}

// WithTxn executes fn inside a read-write transaction, committing when fn
// returns nil and discarding otherwise.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn executes fn inside a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.NewTransaction(false)
	defer txn.Discard()
	return fn(txn)
}
