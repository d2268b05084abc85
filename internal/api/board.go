// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"sync"
	"time"

	"github.com/ManuGH/streamnorm/internal/session"
	"github.com/ManuGH/streamnorm/internal/source"
)

const defaultMaxEvents = 2000

// Board is a session observer that keeps what the diagnostics endpoints
// serve. The event log is cleared whenever a new source is adopted.
type Board struct {
	session.NopObserver

	mu        sync.RWMutex
	maxEvents int
	now       func() time.Time
	events    []string
	manifest  string
	failure   *session.Error
}

// NewBoard creates a board keeping at most maxEvents diagnostic lines.
func NewBoard(maxEvents int) *Board {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	return &Board{maxEvents: maxEvents, now: time.Now}
}

func (b *Board) OnSourceAdopted(source.Descriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
	b.manifest = ""
	b.failure = nil
}

func (b *Board) OnManifestCaptured(manifest string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.manifest = manifest
}

func (b *Board) OnDiagnosticEvent(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) >= b.maxEvents {
		// Drop the oldest half so appends stay amortized.
		keep := b.events[len(b.events)-b.maxEvents/2:]
		b.events = append(b.events[:0:0], keep...)
	}
	b.events = append(b.events, b.now().UTC().Format("15:04:05.000")+" "+line)
}

func (b *Board) OnFailure(err *session.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failure = err
}

// Events returns a copy of the diagnostic log, oldest first.
func (b *Board) Events() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.events...)
}

// ClearEvents empties the diagnostic log.
func (b *Board) ClearEvents() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// Manifest returns the raw manifest text of the current source.
func (b *Board) Manifest() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.manifest
}

// LastFailure returns the surfaced failure of the current source, if any.
func (b *Board) LastFailure() *session.Error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.failure
}
