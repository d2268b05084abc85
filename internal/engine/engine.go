// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package engine defines the capability set shared by all protocol engines
// and the media sink they drive.
package engine

import (
	"context"
	"errors"

	"github.com/ManuGH/streamnorm/internal/source"
)

// AutoLevel selects engine-driven ABR.
const AutoLevel = -1

var (
	// ErrRestartRequired is returned by ApplySelection when the engine can only
	// change ABR mode at construction time.
	ErrRestartRequired = errors.New("engine must be rebuilt to apply selection")
	// ErrLevelOutOfRange is returned when a pinned level does not exist.
	ErrLevelOutOfRange = errors.New("level index out of range")
	// ErrSinkBusy is returned when a second owner attaches to a sink.
	ErrSinkBusy = errors.New("media sink already attached to another engine")
	// ErrDestroyed is returned when an engine is used after Destroy.
	ErrDestroyed = errors.New("engine destroyed")
)

// Sink is the media element a single engine renders into.
type Sink interface {
	// CanPlayType reports native playback support for a MIME type.
	CanPlayType(mime string) bool
	// Attach claims the sink for owner. It fails with ErrSinkBusy while another
	// owner holds it.
	Attach(owner string) error
	// Detach releases the sink if owner holds it.
	Detach(owner string)
	// Load hands a locator to the native player.
	Load(locator string, autoPlay bool) error
	// Append feeds downloaded media for level into the sink buffer.
	Append(level int, data []byte) error
	// Reset stops playback and drops buffered media.
	Reset()
}

// Selection is the engine-native level to render, or AutoLevel.
type Selection struct {
	Level int
	// Stabilize disables bandwidth smoothing and starvation fallbacks so the
	// engine cannot drift away from a pinned level.
	Stabilize bool
}

// Auto returns the automatic selection.
func Auto() Selection {
	return Selection{Level: AutoLevel}
}

// Pinned returns a stabilized selection of level.
func Pinned(level int) Selection {
	return Selection{Level: level, Stabilize: true}
}

// IsAuto reports whether the selection leaves level choice to the engine.
func (s Selection) IsAuto() bool {
	return s.Level < 0
}

// Engine is one protocol engine instance bound to one source.
type Engine interface {
	// ID identifies the instance; events carry it implicitly via the listener.
	ID() string
	// Kind is the protocol the engine plays.
	Kind() source.Kind
	// Attach claims the sink and starts loading. Loading continues in the
	// background; progress is reported through the listener.
	Attach(ctx context.Context, sink Sink) error
	// ApplySelection switches between automatic and pinned levels.
	ApplySelection(sel Selection) error
	// Destroy stops all background work, resets and detaches the sink. It
	// returns only after the engine stopped emitting events.
	Destroy()
}
