// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import "github.com/ManuGH/streamnorm/internal/engine"

const defaultBandwidthEstimateKbps = 5000

// Config holds the constructor-time options of an HLS engine. ABR mode cannot
// change on a running instance; switching between automatic and pinned
// requires a new engine.
type Config struct {
	// AutoLevel lets the engine pick levels from its bandwidth estimate.
	AutoLevel bool
	// StartLevel is the first level to load, or -1 to let the estimate decide.
	StartLevel int
	// ABREwma smooths throughput samples before level selection.
	ABREwma bool
	// StarvationFallback drops one level when a fragment downloads slower
	// than it plays.
	StarvationFallback bool
	// BandwidthEstimateKbps seeds the estimate before the first sample.
	BandwidthEstimateKbps int
	// MaxFragments stops loading after this many fragments; 0 is unlimited.
	MaxFragments int
}

// DefaultConfig returns the automatic configuration.
func DefaultConfig() Config {
	return Config{
		AutoLevel:             true,
		StartLevel:            engine.AutoLevel,
		ABREwma:               true,
		StarvationFallback:    true,
		BandwidthEstimateKbps: defaultBandwidthEstimateKbps,
	}
}

// ForSelection derives the constructor options for sel. A pinned selection
// disables automatic switching and starts on the pinned level; a stabilized
// one also turns off smoothing and starvation fallback.
func (c Config) ForSelection(sel engine.Selection) Config {
	if sel.IsAuto() {
		c.AutoLevel = true
		return c
	}
	c.AutoLevel = false
	c.StartLevel = sel.Level
	if sel.Stabilize {
		c.ABREwma = false
		c.StarvationFallback = false
	}
	return c
}
