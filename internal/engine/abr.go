// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import "time"

// ewmaWeight is the share of the newest throughput sample in a smoothed
// estimate.
const ewmaWeight = 0.3

// Estimator tracks download throughput in kbit/s.
type Estimator struct {
	kbps float64
}

// NewEstimator seeds an estimator with initialKbps.
func NewEstimator(initialKbps float64) *Estimator {
	return &Estimator{kbps: initialKbps}
}

// Sample folds one download into the estimate. With smooth unset the latest
// sample replaces the estimate.
func (e *Estimator) Sample(bytes int, took time.Duration, smooth bool) float64 {
	if took <= 0 || bytes <= 0 {
		return e.kbps
	}
	sample := float64(bytes) * 8 / took.Seconds() / 1000
	if smooth {
		e.kbps = (1-ewmaWeight)*e.kbps + ewmaWeight*sample
	} else {
		e.kbps = sample
	}
	return e.kbps
}

// Kbps returns the current estimate.
func (e *Estimator) Kbps() float64 {
	return e.kbps
}

// PickByBandwidth returns the highest-bitrate level that fits estimateKbps,
// or the lowest-bitrate level when none does.
func PickByBandwidth(levels []Level, estimateKbps float64) int {
	if len(levels) == 0 {
		return AutoLevel
	}
	best, lowest := -1, 0
	for i, l := range levels {
		if l.BitrateKbps < levels[lowest].BitrateKbps {
			lowest = i
		}
		if l.BitrateKbps <= estimateKbps && (best < 0 || l.BitrateKbps > levels[best].BitrateKbps) {
			best = i
		}
	}
	if best < 0 {
		return lowest
	}
	return best
}

// LowerLevel returns the next level below current by bitrate, or current
// when it is already the lowest.
func LowerLevel(levels []Level, current int) int {
	if current < 0 || current >= len(levels) {
		return current
	}
	next := current
	for i, l := range levels {
		if l.BitrateKbps < levels[current].BitrateKbps && (next == current || l.BitrateKbps > levels[next].BitrateKbps) {
			next = i
		}
	}
	return next
}
