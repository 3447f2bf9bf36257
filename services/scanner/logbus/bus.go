// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logbus provides process-wide publish/subscribe of scan progress
// events keyed by scan ID.
//
// The bus is the only structure shared across scan tasks. Publishing never
// blocks: each subscription owns a bounded queue, and a subscriber that
// cannot keep up is closed with a terminal "log overflow" error event
// rather than back-pressuring the scan. Events are not persisted; a
// subscriber attaching late sees only subsequent events.
package logbus

import (
	"sync"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
)

// QueueCapacity is the per-subscriber bounded queue size.
const QueueCapacity = 256

// =============================================================================
// Subscription
// =============================================================================

// Subscription is one subscriber's view of a scan's event stream.
//
// # Description
//
// Events arrive on C in publish order. C is closed when the scan
// terminates, when the subscriber calls Close, or when the subscriber
// overflows. The subscription's queue is single-producer single-consumer:
// the bus writes under its lock, exactly one reader drains C.
type Subscription struct {
	// C delivers events in publish order until closed.
	C <-chan datatypes.LogEvent

	scanID string
	ch     chan datatypes.LogEvent
	bus    *Bus

	mu     sync.Mutex
	closed bool
}

// Close detaches the subscription from the bus and closes its channel.
// Safe to call multiple times and concurrently with publishing.
func (s *Subscription) Close() {
	s.bus.remove(s.scanID, s)
	s.markClosed()
}

// markClosed closes the channel exactly once. Callers must have already
// detached the subscription from the registry (or hold the bus lock).
func (s *Subscription) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// =============================================================================
// Bus
// =============================================================================

// Bus fans scan events out to any number of live subscribers.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The registry lock is held only
// for map access and non-blocking channel sends, never across I/O.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]*Subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]*Subscription)}
}

// Subscribe attaches a new subscriber to the given scan's event stream.
func (b *Bus) Subscribe(scanID string) *Subscription {
	ch := make(chan datatypes.LogEvent, QueueCapacity)
	sub := &Subscription{C: ch, ch: ch, scanID: scanID, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[scanID] = append(b.subs[scanID], sub)
	return sub
}

// Publish delivers an event to all current subscribers of event.ScanID.
//
// # Description
//
// Non-blocking. A subscriber whose queue is full receives a best-effort
// terminal "log overflow" error event and is closed; the publisher is never
// delayed. Per-subscriber ordering matches publish order because delivery
// happens under the registry lock.
func (b *Bus) Publish(event datatypes.LogEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[event.ScanID]
	if len(subs) == 0 {
		return
	}

	var overflowed []*Subscription
	for _, sub := range subs {
		select {
		case sub.ch <- event:
		default:
			// Queue full. Try to squeeze the terminal error in; if even
			// that fails the subscriber simply sees the channel close.
			overflow := datatypes.NewLogEvent(event.ScanID, datatypes.LogError, "log overflow")
			select {
			case sub.ch <- overflow:
			default:
			}
			overflowed = append(overflowed, sub)
		}
	}

	for _, sub := range overflowed {
		b.removeLocked(event.ScanID, sub)
		sub.markClosed()
	}
}

// CloseScan closes every subscription for the scan. Called by the
// orchestrator after the terminal event has been published.
func (b *Bus) CloseScan(scanID string) {
	b.mu.Lock()
	subs := b.subs[scanID]
	delete(b.subs, scanID)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.markClosed()
	}
}

// SubscriberCount returns the number of live subscribers for a scan.
func (b *Bus) SubscriberCount(scanID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[scanID])
}

// remove detaches one subscription under the lock.
func (b *Bus) remove(scanID string, target *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(scanID, target)
}

func (b *Bus) removeLocked(scanID string, target *Subscription) {
	subs := b.subs[scanID]
	for i, sub := range subs {
		if sub == target {
			b.subs[scanID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[scanID]) == 0 {
		delete(b.subs, scanID)
	}
}
