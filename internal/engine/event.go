// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"fmt"
	"strings"
)

// EventType names an engine lifecycle or quality notification.
type EventType string

const (
	// EventManifestLoaded carries the raw manifest and the level list.
	EventManifestLoaded EventType = "manifest_loaded"
	// EventLevelSwitched reports the level the engine will render next.
	EventLevelSwitched EventType = "level_switched"
	// EventLevelLoaded reports a loaded level playlist and its duration.
	EventLevelLoaded EventType = "level_loaded"
	// EventFragmentLoaded reports a fragment downloaded for a level.
	EventFragmentLoaded EventType = "fragment_loaded"
	// EventStreamInitialized reports DASH stream setup with all representations.
	EventStreamInitialized EventType = "stream_initialized"
	// EventQualityRendered reports a DASH representation switch taking effect.
	EventQualityRendered EventType = "quality_rendered"
	// EventBufferLoaded reports DASH media appended for the active representation.
	EventBufferLoaded EventType = "buffer_loaded"
	// EventError reports a load or playback failure.
	EventError EventType = "error"
)

// Level is one encoded quality tier as the engine describes it. Zero values
// mean the engine did not report the field.
type Level struct {
	Index       int
	ID          string
	Width       int
	Height      int
	BitrateKbps float64
	Codec       string
	FrameRate   float64
	ScanType    string
	URI         string
}

// Event is a notification emitted by an engine.
type Event struct {
	Type        EventType
	Manifest    string
	Levels      []Level
	Level       int
	Active      *Level
	DurationSec float64
	FragmentURL string
	Fatal       bool
	Err         error
}

// Listener receives engine events. Engines may call it from any goroutine;
// implementations must not block.
type Listener func(Event)

// Describe renders a one-line human readable trace of the event.
func (e Event) Describe() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	switch e.Type {
	case EventManifestLoaded:
		fmt.Fprintf(&b, ": %d levels", len(e.Levels))
	case EventLevelSwitched:
		fmt.Fprintf(&b, ": level %d", e.Level)
	case EventLevelLoaded:
		fmt.Fprintf(&b, ": level %d, duration %.2fs", e.Level, e.DurationSec)
	case EventFragmentLoaded:
		fmt.Fprintf(&b, ": level %d %s", e.Level, e.FragmentURL)
	case EventStreamInitialized, EventQualityRendered, EventBufferLoaded:
		if e.Active != nil {
			fmt.Fprintf(&b, ": representation %s %dx%d %.0fkbps", e.Active.ID, e.Active.Width, e.Active.Height, e.Active.BitrateKbps)
		}
	case EventError:
		if e.Err != nil {
			fmt.Fprintf(&b, ": %v", e.Err)
		}
		if e.Fatal {
			b.WriteString(" (fatal)")
		}
	}
	return b.String()
}
