// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sink provides the media element engines render into.
package sink

import (
	"errors"
	"strings"
	"sync"

	"github.com/ManuGH/streamnorm/internal/engine"
)

// ErrNotAttached is returned when media is handed to a sink nobody owns.
var ErrNotAttached = errors.New("media sink has no attached engine")

// Stats is a point-in-time view of the sink.
type Stats struct {
	Owner         string        `json:"owner,omitempty"`
	Locator       string        `json:"locator,omitempty"`
	AutoPlay      bool          `json:"autoPlay"`
	BufferedBytes int64         `json:"bufferedBytes"`
	LevelBytes    map[int]int64 `json:"levelBytes,omitempty"`
	Appends       int           `json:"appends"`
	Attaches      int           `json:"attaches"`
	Resets        int           `json:"resets"`
}

// Memory is a sink that accounts for buffered media without decoding it.
// Native playback support is declared per MIME type at construction.
type Memory struct {
	mu       sync.Mutex
	native   map[string]bool
	owner    string
	locator  string
	autoPlay bool
	levels   map[int]int64
	total    int64
	appends  int
	attaches int
	resets   int
}

// NewMemory returns a sink that plays the given MIME types natively.
func NewMemory(nativeTypes ...string) *Memory {
	native := make(map[string]bool, len(nativeTypes))
	for _, t := range nativeTypes {
		native[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Memory{native: native, levels: map[int]int64{}}
}

// CanPlayType implements engine.Sink.
func (m *Memory) CanPlayType(mime string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.native[strings.ToLower(strings.TrimSpace(mime))]
}

// Attach implements engine.Sink.
func (m *Memory) Attach(owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != "" && m.owner != owner {
		return engine.ErrSinkBusy
	}
	if m.owner == "" {
		m.attaches++
	}
	m.owner = owner
	return nil
}

// Detach implements engine.Sink.
func (m *Memory) Detach(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner == owner {
		m.owner = ""
	}
}

// Load implements engine.Sink.
func (m *Memory) Load(locator string, autoPlay bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner == "" {
		return ErrNotAttached
	}
	m.locator = locator
	m.autoPlay = autoPlay
	return nil
}

// Append implements engine.Sink.
func (m *Memory) Append(level int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner == "" {
		return ErrNotAttached
	}
	m.levels[level] += int64(len(data))
	m.total += int64(len(data))
	m.appends++
	return nil
}

// Reset implements engine.Sink.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locator = ""
	m.autoPlay = false
	m.levels = map[int]int64{}
	m.total = 0
	m.resets++
}

// Stats returns a snapshot of the sink state.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	levels := make(map[int]int64, len(m.levels))
	for k, v := range m.levels {
		levels[k] = v
	}
	return Stats{
		Owner:         m.owner,
		Locator:       m.locator,
		AutoPlay:      m.autoPlay,
		BufferedBytes: m.total,
		LevelBytes:    levels,
		Appends:       m.appends,
		Attaches:      m.attaches,
		Resets:        m.resets,
	}
}

var _ engine.Sink = (*Memory)(nil)
