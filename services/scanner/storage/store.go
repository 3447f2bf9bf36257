// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the scan store: typed reads and writes over the key
// scheme described in the package comment.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNotFound is returned when the requested scan does not exist.
	ErrNotFound = errors.New("scan not found")

	// ErrDuplicateScan is returned when inserting a scan whose ID exists.
	ErrDuplicateScan = errors.New("scan id already exists")

	// ErrInvalidTransition is returned when a status write would violate
	// the PENDING → RUNNING → {COMPLETED, FAILED} state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// Key Scheme
// =============================================================================

const (
	scanPrefix    = "scan:"
	findingPrefix = "scanfind:"
	testPrefix    = "scantest:"
	hostPrefix    = "host:"
	statusPrefix  = "status:"
)

func scanKey(id string) []byte {
	return []byte(scanPrefix + id)
}

func findingKey(id string, n int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", findingPrefix, id, n))
}

func testKey(id string, n int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", testPrefix, id, n))
}

// hostKey orders a host's scans newest-first under lexicographic iteration
// by embedding the inverted creation timestamp.
func hostKey(scan *datatypes.Scan) []byte {
	rev := uint64(math.MaxInt64) - uint64(scan.CreatedAt.UnixNano())
	return []byte(fmt.Sprintf("%s%s:%020d:%s", hostPrefix, scan.Hostname, rev, scan.ID))
}

func statusKey(status datatypes.ScanStatus, id string) []byte {
	return []byte(statusPrefix + string(status) + ":" + id)
}

// =============================================================================
// Store
// =============================================================================

// MaxHistoryResults caps ListByHost.
const MaxHistoryResults = 20

// Store persists scans and their results.
//
// # Thread Safety
//
// All methods are safe for concurrent use; Badger transactions provide the
// isolation. The orchestrator serialises status transitions per scan, so
// conflicting writers on a single scan do not occur in practice.
type Store struct {
	db     *DB
	logger *slog.Logger
}

// NewStore wraps an open database.
func NewStore(db *DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// SaveScan inserts a new PENDING scan and its host and status index entries.
//
// # Outputs
//
//   - error: ErrDuplicateScan when the ID exists, ErrInvalidTransition when
//     the scan is not PENDING.
func (s *Store) SaveScan(ctx context.Context, scan *datatypes.Scan) error {
	if scan.ID == "" {
		return errors.New("scan id is empty")
	}
	if scan.Status != datatypes.StatusPending {
		return fmt.Errorf("%w: new scans start PENDING, got %s", ErrInvalidTransition, scan.Status)
	}

	blob, err := json.Marshal(scan)
	if err != nil {
		return fmt.Errorf("marshal scan %s: %w", scan.ID, err)
	}

	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(scanKey(scan.ID)); err == nil {
			return fmt.Errorf("%w: %s", ErrDuplicateScan, scan.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(scanKey(scan.ID), blob); err != nil {
			return err
		}
		if err := txn.Set(hostKey(scan), nil); err != nil {
			return err
		}
		return txn.Set(statusKey(scan.Status, scan.ID), nil)
	})
}

// UpdateStatus moves a scan to a non-terminal successor state (RUNNING).
//
// Terminal transitions go through CompleteScan so the status flip and the
// result rows land in one transaction.
func (s *Store) UpdateStatus(ctx context.Context, id string, next datatypes.ScanStatus) error {
	if next.Terminal() {
		return fmt.Errorf("%w: terminal transitions must use CompleteScan", ErrInvalidTransition)
	}

	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		scan, err := getScanTxn(txn, id)
		if err != nil {
			return err
		}
		if !scan.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, scan.Status, next)
		}

		prev := scan.Status
		scan.Status = next
		blob, err := json.Marshal(scan)
		if err != nil {
			return fmt.Errorf("marshal scan %s: %w", id, err)
		}
		if err := txn.Set(scanKey(id), blob); err != nil {
			return err
		}
		if err := txn.Delete(statusKey(prev, id)); err != nil {
			return err
		}
		return txn.Set(statusKey(next, id), nil)
	})
}

// CompleteScan writes a scan's terminal state and its results atomically.
//
// # Description
//
// The terminal transition is the commit point: the status flip, score and
// grade, every finding, and every security test land in a single Badger
// transaction, so a reader either sees the scan still RUNNING with no
// results or terminal with all of them. Findings pass through rules.Ingest,
// which rejects unregistered rule IDs and remaps legacy OWASP labels; a
// rejected finding aborts the whole write.
//
// # Inputs
//
//   - scan: the final record. Status must be COMPLETED or FAILED and must
//     be reachable from the stored status.
func (s *Store) CompleteScan(ctx context.Context, scan *datatypes.Scan, findings []datatypes.Finding, tests []datatypes.SecurityTest) error {
	if !scan.Status.Terminal() {
		return fmt.Errorf("%w: CompleteScan requires a terminal status, got %s", ErrInvalidTransition, scan.Status)
	}

	ingested := make([]datatypes.Finding, len(findings))
	for i, f := range findings {
		f.ScanID = scan.ID
		canonical, err := rules.Ingest(f)
		if err != nil {
			return fmt.Errorf("finding %d: %w", i, err)
		}
		ingested[i] = canonical
	}

	blob, err := json.Marshal(scan)
	if err != nil {
		return fmt.Errorf("marshal scan %s: %w", scan.ID, err)
	}

	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		stored, err := getScanTxn(txn, scan.ID)
		if err != nil {
			return err
		}
		if !stored.Status.CanTransitionTo(scan.Status) {
			return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, stored.Status, scan.Status)
		}

		if err := txn.Set(scanKey(scan.ID), blob); err != nil {
			return err
		}
		if err := txn.Delete(statusKey(stored.Status, scan.ID)); err != nil {
			return err
		}
		if err := txn.Set(statusKey(scan.Status, scan.ID), nil); err != nil {
			return err
		}

		for i, f := range ingested {
			fb, err := json.Marshal(f)
			if err != nil {
				return fmt.Errorf("marshal finding %d: %w", i, err)
			}
			if err := txn.Set(findingKey(scan.ID, i), fb); err != nil {
				return err
			}
		}
		for i, st := range tests {
			st.ScanID = scan.ID
			tb, err := json.Marshal(st)
			if err != nil {
				return fmt.Errorf("marshal test %d: %w", i, err)
			}
			if err := txn.Set(testKey(scan.ID, i), tb); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetScan loads one scan record.
func (s *Store) GetScan(ctx context.Context, id string) (*datatypes.Scan, error) {
	var scan *datatypes.Scan
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		scan, err = getScanTxn(txn, id)
		return err
	})
	return scan, err
}

// ListFindings returns a scan's findings in insertion order.
func (s *Store) ListFindings(ctx context.Context, id string) ([]datatypes.Finding, error) {
	var findings []datatypes.Finding
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return iteratePrefix(txn, findingPrefix+id+":", func(val []byte) error {
			var f datatypes.Finding
			if err := json.Unmarshal(val, &f); err != nil {
				return fmt.Errorf("unmarshal finding for scan %s: %w", id, err)
			}
			findings = append(findings, f)
			return nil
		})
	})
	return findings, err
}

// ListTests returns a scan's security tests in insertion order.
func (s *Store) ListTests(ctx context.Context, id string) ([]datatypes.SecurityTest, error) {
	var tests []datatypes.SecurityTest
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return iteratePrefix(txn, testPrefix+id+":", func(val []byte) error {
			var st datatypes.SecurityTest
			if err := json.Unmarshal(val, &st); err != nil {
				return fmt.Errorf("unmarshal test for scan %s: %w", id, err)
			}
			tests = append(tests, st)
			return nil
		})
	})
	return tests, err
}

// ListByHost returns a host's scans, newest first, capped at limit (or
// MaxHistoryResults when limit is zero or out of range).
func (s *Store) ListByHost(ctx context.Context, hostname string, limit int) ([]datatypes.Scan, error) {
	if limit <= 0 || limit > MaxHistoryResults {
		limit = MaxHistoryResults
	}

	var ids []string
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		prefix := hostPrefix + hostname + ":"
		return iterateKeys(txn, prefix, func(key string) error {
			if len(ids) >= limit {
				return errStopIteration
			}
			// Key layout: host:<hostname>:<revTime>:<id>. Scan IDs never
			// contain a colon, so the ID is everything after the last one.
			id := key[strings.LastIndexByte(key, ':')+1:]
			ids = append(ids, id)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	scans := make([]datatypes.Scan, 0, len(ids))
	err = s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		for _, id := range ids {
			scan, err := getScanTxn(txn, id)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					// Dangling index entry; skip rather than fail history.
					s.logger.Warn("host index references missing scan", "scanId", id)
					continue
				}
				return err
			}
			scans = append(scans, *scan)
		}
		return nil
	})
	return scans, err
}

// ListByStatus returns the IDs of scans currently in the given status.
func (s *Store) ListByStatus(ctx context.Context, status datatypes.ScanStatus) ([]string, error) {
	prefix := statusPrefix + string(status) + ":"
	var ids []string
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return iterateKeys(txn, prefix, func(key string) error {
			ids = append(ids, key[len(prefix):])
			return nil
		})
	})
	return ids, err
}

// =============================================================================
// Internals
// =============================================================================

// errStopIteration terminates a prefix walk early without surfacing an
// error to the caller.
var errStopIteration = errors.New("stop iteration")

func getScanTxn(txn *badger.Txn, id string) (*datatypes.Scan, error) {
	item, err := txn.Get(scanKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var scan datatypes.Scan
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &scan)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal scan %s: %w", id, err)
	}
	return &scan, nil
}

func iteratePrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(func(val []byte) error {
			return fn(append([]byte(nil), val...))
		}); err != nil {
			if errors.Is(err, errStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

func iterateKeys(txn *badger.Txn, prefix string, fn func(key string) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := fn(string(it.Item().Key())); err != nil {
			if errors.Is(err, errStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}
