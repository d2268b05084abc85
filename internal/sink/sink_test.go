// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sink

import (
	"testing"

	"github.com/ManuGH/streamnorm/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_CanPlayType(t *testing.T) {
	m := NewMemory("application/vnd.apple.mpegurl", " Video/MP4 ")
	assert.True(t, m.CanPlayType("application/vnd.apple.mpegurl"))
	assert.True(t, m.CanPlayType("video/mp4"))
	assert.False(t, m.CanPlayType("application/dash+xml"))
	assert.False(t, NewMemory().CanPlayType("video/mp4"))
}

func TestMemory_SingleOwner(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Attach("a"))
	require.NoError(t, m.Attach("a"), "re-attach by the owner is allowed")
	assert.ErrorIs(t, m.Attach("b"), engine.ErrSinkBusy)

	m.Detach("b")
	assert.Equal(t, "a", m.Stats().Owner, "detach by a non-owner is ignored")

	m.Detach("a")
	require.NoError(t, m.Attach("b"))
	st := m.Stats()
	assert.Equal(t, "b", st.Owner)
	assert.Equal(t, 2, st.Attaches)
}

func TestMemory_BufferAccounting(t *testing.T) {
	m := NewMemory()
	assert.ErrorIs(t, m.Append(0, []byte("x")), ErrNotAttached)
	assert.ErrorIs(t, m.Load("a.mp4", true), ErrNotAttached)

	require.NoError(t, m.Attach("e1"))
	require.NoError(t, m.Load("a.mp4", true))
	require.NoError(t, m.Append(0, make([]byte, 100)))
	require.NoError(t, m.Append(1, make([]byte, 50)))
	require.NoError(t, m.Append(1, make([]byte, 50)))

	st := m.Stats()
	assert.Equal(t, "a.mp4", st.Locator)
	assert.True(t, st.AutoPlay)
	assert.Equal(t, int64(200), st.BufferedBytes)
	assert.Equal(t, map[int]int64{0: 100, 1: 100}, st.LevelBytes)
	assert.Equal(t, 3, st.Appends)

	m.Reset()
	st = m.Stats()
	assert.Equal(t, int64(0), st.BufferedBytes)
	assert.Empty(t, st.LevelBytes)
	assert.Empty(t, st.Locator)
	assert.Equal(t, 1, st.Resets)
	assert.Equal(t, "e1", st.Owner, "reset keeps ownership")
}
