// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dash

import "github.com/ManuGH/streamnorm/internal/engine"

const defaultBandwidthEstimateKbps = 5000

// Settings are the streaming options a DASH engine reads on every segment,
// so they can change on a running instance.
type Settings struct {
	// AutoSwitchBitrate enables throughput-driven representation switching.
	AutoSwitchBitrate bool
	// SmoothedThroughput averages throughput samples instead of using the
	// latest one.
	SmoothedThroughput bool
	// InsufficientBufferRule switches down when a segment downloads slower
	// than it plays.
	InsufficientBufferRule bool
	// BandwidthEstimateKbps seeds the estimate before the first sample.
	BandwidthEstimateKbps int
	// MaxSegments stops loading after this many media segments; 0 is unlimited.
	MaxSegments int
}

// DefaultSettings returns automatic switching with all rules enabled.
func DefaultSettings() Settings {
	return Settings{
		AutoSwitchBitrate:      true,
		SmoothedThroughput:     true,
		InsufficientBufferRule: true,
		BandwidthEstimateKbps:  defaultBandwidthEstimateKbps,
	}
}

// ForSelection returns s adjusted for sel. Engines derive it from their
// base settings so returning to automatic restores what a pin disabled.
func (s Settings) ForSelection(sel engine.Selection) Settings {
	if sel.IsAuto() {
		s.AutoSwitchBitrate = true
		return s
	}
	s.AutoSwitchBitrate = false
	if sel.Stabilize {
		s.SmoothedThroughput = false
		s.InsufficientBufferRule = false
	}
	return s
}
