// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

// Latch bounds fragment inspection to one run per level activation.
// It is armed when the active level changes and cleared by the first
// TryFire for that level. Not safe for concurrent use.
type Latch struct {
	level    int
	hasLevel bool
	armed    bool
}

// Arm records level as active. The latch is re-armed only if level differs
// from the previously activated level; it reports whether that happened.
func (l *Latch) Arm(level int) bool {
	if l.hasLevel && l.level == level {
		return false
	}
	l.level = level
	l.hasLevel = true
	l.armed = true
	return true
}

// TryFire returns true exactly once per activation, and only for a fragment
// belonging to the armed level.
func (l *Latch) TryFire(level int) bool {
	if !l.armed || !l.hasLevel || l.level != level {
		return false
	}
	l.armed = false
	return true
}

// Reset forgets the active level; used when a new engine instance attaches.
func (l *Latch) Reset() {
	*l = Latch{}
}
