// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatch_FiresOncePerActivation(t *testing.T) {
	var l Latch
	assert.False(t, l.TryFire(0), "unarmed latch must not fire")

	assert.True(t, l.Arm(2))
	fired := 0
	for i := 0; i < 10; i++ {
		if l.TryFire(2) {
			fired++
		}
	}
	assert.Equal(t, 1, fired)
}

func TestLatch_SameLevelDoesNotRearm(t *testing.T) {
	var l Latch
	l.Arm(1)
	assert.True(t, l.TryFire(1))
	assert.False(t, l.Arm(1))
	assert.False(t, l.TryFire(1))
}

func TestLatch_LevelChangeRearms(t *testing.T) {
	var l Latch
	l.Arm(1)
	assert.False(t, l.TryFire(0), "fragment of another level must not fire")
	assert.True(t, l.Arm(0))
	assert.True(t, l.TryFire(0))
	assert.True(t, l.Arm(1))
	assert.True(t, l.TryFire(1))
}

func TestLatch_Reset(t *testing.T) {
	var l Latch
	l.Arm(3)
	l.TryFire(3)
	l.Reset()
	assert.True(t, l.Arm(3), "reset latch re-arms on the same level")
}
