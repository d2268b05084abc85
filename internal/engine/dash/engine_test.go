// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dash

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamnorm/internal/engine"
	"github.com/ManuGH/streamnorm/internal/platform/httpx"
	"github.com/ManuGH/streamnorm/internal/sink"
	"github.com/ManuGH/streamnorm/internal/source"
)

const threeTierMPD = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" mediaPresentationDuration="PT6S">
  <Period>
    <AdaptationSet mimeType="video/mp4" codecs="avc1.4d401f" frameRate="25">
      <SegmentTemplate timescale="1" duration="2" startNumber="1" media="$RepresentationID$/seg-$Number%03d$.m4s" initialization="$RepresentationID$/init.mp4"/>
      <Representation id="v360" width="640" height="360" bandwidth="800000"/>
      <Representation id="v720" width="1280" height="720" bandwidth="2500000"/>
      <Representation id="v1080" width="1920" height="1080" bandwidth="5000000"/>
    </AdaptationSet>
  </Period>
</MPD>`

const openEndedMPD = `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="dynamic">
  <Period>
    <AdaptationSet contentType="video">
      <SegmentTemplate duration="2" media="seg-$Number$.m4s"/>
      <Representation id="only" width="1280" height="720" bandwidth="1000000"/>
    </AdaptationSet>
  </Period>
</MPD>`

const segmentBaseMPD = `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" mediaPresentationDuration="PT6S">
  <Period>
    <AdaptationSet mimeType="video/mp4">
      <Representation id="v1" width="1280" height="720" bandwidth="1000000"><BaseURL>v1.mp4</BaseURL></Representation>
    </AdaptationSet>
  </Period>
</MPD>`

type dashServer struct {
	*httptest.Server
	gate    chan struct{}
	reached chan string
}

func newDASHServer(t *testing.T, gated bool) *dashServer {
	t.Helper()
	s := &dashServer{}
	if gated {
		s.gate = make(chan struct{})
		s.reached = make(chan string, 1)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/three.mpd":
			_, _ = w.Write([]byte(threeTierMPD))
		case r.URL.Path == "/open.mpd":
			_, _ = w.Write([]byte(openEndedMPD))
		case r.URL.Path == "/segbase.mpd":
			_, _ = w.Write([]byte(segmentBaseMPD))
		case r.URL.Path == "/seg-1.m4s", r.URL.Path == "/seg-2.m4s":
			_, _ = w.Write(make([]byte, 64))
		case strings.HasSuffix(r.URL.Path, "/init.mp4"):
			_, _ = w.Write(make([]byte, 32))
		case strings.HasPrefix(r.URL.Path, "/v") && strings.Contains(r.URL.Path, "/seg-"):
			if s.reached != nil {
				select {
				case s.reached <- r.URL.Path:
				default:
				}
			}
			if s.gate != nil {
				select {
				case <-s.gate:
				case <-r.Context().Done():
					return
				}
			}
			_, _ = w.Write(make([]byte, 128))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

type collector struct {
	mu     sync.Mutex
	events []engine.Event
}

func (c *collector) listen(ev engine.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) ofType(typ engine.EventType) []engine.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []engine.Event
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *collector) count(typ engine.EventType) int {
	return len(c.ofType(typ))
}

func newEngine(t *testing.T, locator string, sel engine.Selection, c *collector) *Engine {
	t.Helper()
	e := New(source.Descriptor{Locator: locator, Kind: source.KindDASH}, DefaultSettings(), sel, httpx.NewClient(2*time.Second), c.listen, zerolog.Nop())
	t.Cleanup(e.Destroy)
	return e
}

func TestEngine_PinnedRepresentation(t *testing.T) {
	srv := newDASHServer(t, false)
	c := &collector{}
	mem := sink.NewMemory()
	e := newEngine(t, srv.URL+"/three.mpd", engine.Pinned(1), c)

	s := e.Settings()
	assert.False(t, s.AutoSwitchBitrate)
	assert.False(t, s.SmoothedThroughput)
	assert.False(t, s.InsufficientBufferRule)

	require.NoError(t, e.Attach(context.Background(), mem))
	require.Eventually(t, func() bool { return c.count(engine.EventBufferLoaded) == 3 }, 5*time.Second, 10*time.Millisecond)

	manifest := c.ofType(engine.EventManifestLoaded)
	require.Len(t, manifest, 1)
	assert.Equal(t, threeTierMPD, manifest[0].Manifest)

	initialized := c.ofType(engine.EventStreamInitialized)
	require.Len(t, initialized, 1)
	require.Len(t, initialized[0].Levels, 3)
	assert.Equal(t, []int{360, 720, 1080}, []int{initialized[0].Levels[0].Height, initialized[0].Levels[1].Height, initialized[0].Levels[2].Height})
	assert.Equal(t, 1, initialized[0].Level)
	require.NotNil(t, initialized[0].Active)
	assert.Equal(t, "v720", initialized[0].Active.ID)
	assert.InDelta(t, 2500, initialized[0].Active.BitrateKbps, 0.001)
	assert.Equal(t, "avc1.4d401f", initialized[0].Active.Codec)
	assert.InDelta(t, 25, initialized[0].Active.FrameRate, 0.001)
	assert.InDelta(t, 6, initialized[0].DurationSec, 0.001)

	for i, ev := range c.ofType(engine.EventBufferLoaded) {
		assert.Equal(t, 1, ev.Level)
		assert.Equal(t, fmt.Sprintf("%s/v720/seg-%03d.m4s", srv.URL, i+1), ev.FragmentURL)
		require.NotNil(t, ev.Active)
		assert.Equal(t, 720, ev.Active.Height)
	}
	assert.Zero(t, c.count(engine.EventQualityRendered))
	assert.Equal(t, int64(32+3*128), mem.Stats().LevelBytes[1])

	e.Destroy()
	assert.Empty(t, mem.Stats().Owner)
}

func TestEngine_ApplySelectionInPlace(t *testing.T) {
	srv := newDASHServer(t, true)
	c := &collector{}
	e := newEngine(t, srv.URL+"/three.mpd", engine.Pinned(0), c)

	require.NoError(t, e.Attach(context.Background(), sink.NewMemory()))
	select {
	case path := <-srv.reached:
		assert.Equal(t, "/v360/seg-001.m4s", path)
	case <-time.After(5 * time.Second):
		t.Fatal("first segment never requested")
	}

	require.NoError(t, e.ApplySelection(engine.Pinned(2)))
	close(srv.gate)

	require.Eventually(t, func() bool { return c.count(engine.EventBufferLoaded) == 3 }, 5*time.Second, 10*time.Millisecond)
	rendered := c.ofType(engine.EventQualityRendered)
	require.Len(t, rendered, 1)
	assert.Equal(t, 2, rendered[0].Level)
	assert.Equal(t, "v1080", rendered[0].Active.ID)

	buffers := c.ofType(engine.EventBufferLoaded)
	assert.Equal(t, srv.URL+"/v360/seg-001.m4s", buffers[0].FragmentURL)
	assert.Equal(t, srv.URL+"/v1080/seg-002.m4s", buffers[1].FragmentURL)
	assert.Equal(t, 2, buffers[2].Level)

	assert.ErrorIs(t, e.ApplySelection(engine.Pinned(3)), engine.ErrLevelOutOfRange)
}

func TestEngine_ReturnToAutoRestoresSettings(t *testing.T) {
	base := DefaultSettings()
	base.SmoothedThroughput = false
	e := New(source.Descriptor{Locator: "http://127.0.0.1:1/a.mpd", Kind: source.KindDASH}, base, engine.Pinned(1), httpx.NewClient(time.Second), func(engine.Event) {}, zerolog.Nop())
	t.Cleanup(e.Destroy)

	assert.False(t, e.Settings().AutoSwitchBitrate)
	require.NoError(t, e.ApplySelection(engine.Auto()))
	s := e.Settings()
	assert.True(t, s.AutoSwitchBitrate)
	assert.True(t, s.InsufficientBufferRule)
	assert.False(t, s.SmoothedThroughput, "base settings are restored, not defaults")

	require.NoError(t, e.ApplySelection(engine.Pinned(5)), "levels unknown before load")
	e.Destroy()
	assert.ErrorIs(t, e.ApplySelection(engine.Auto()), engine.ErrDestroyed)
}

func TestEngine_PinnedSegmentsKeepEstimateFresh(t *testing.T) {
	levels := []engine.Level{
		{Index: 0, BitrateKbps: 800},
		{Index: 1, BitrateKbps: 2500},
		{Index: 2, BitrateKbps: 5000},
	}
	e := New(source.Descriptor{Locator: "http://127.0.0.1:1/a.mpd", Kind: source.KindDASH}, DefaultSettings(), engine.Pinned(2), httpx.NewClient(time.Second), func(engine.Event) {}, zerolog.Nop())
	t.Cleanup(e.Destroy)

	// 125000 bytes in one second is 1000 kbit/s, and slower than the 0.5s segment.
	assert.Equal(t, 2, e.nextLevel(levels, 2, 125000, time.Second, 0.5), "the pin wins over the buffer rule")

	require.NoError(t, e.ApplySelection(engine.Auto()))
	assert.Equal(t, 0, e.initialLevel(levels), "unsmoothed sample taken while pinned drives the next pick")
}

func TestEngine_OpenEndedTemplateStopsAtMissingSegment(t *testing.T) {
	srv := newDASHServer(t, false)
	c := &collector{}
	e := newEngine(t, srv.URL+"/open.mpd", engine.Auto(), c)

	require.NoError(t, e.Attach(context.Background(), sink.NewMemory()))
	require.Eventually(t, func() bool { return c.count(engine.EventBufferLoaded) == 2 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 2, c.count(engine.EventBufferLoaded))
	assert.Zero(t, c.count(engine.EventError))
	initialized := c.ofType(engine.EventStreamInitialized)
	require.Len(t, initialized, 1)
	assert.Zero(t, initialized[0].DurationSec)
}

func TestEngine_FatalErrors(t *testing.T) {
	srv := newDASHServer(t, false)

	cases := []struct {
		path     string
		manifest bool
		want     error
	}{
		{"/missing.mpd", false, httpx.ErrStatus},
		{"/segbase.mpd", true, ErrUnsupportedAddressing},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			c := &collector{}
			e := newEngine(t, srv.URL+tc.path, engine.Auto(), c)
			require.NoError(t, e.Attach(context.Background(), sink.NewMemory()))
			require.Eventually(t, func() bool { return c.count(engine.EventError) == 1 }, 5*time.Second, 10*time.Millisecond)

			errs := c.ofType(engine.EventError)
			assert.True(t, errs[0].Fatal)
			assert.ErrorIs(t, errs[0].Err, tc.want)
			assert.Equal(t, tc.manifest, c.count(engine.EventManifestLoaded) == 1)
			assert.Zero(t, c.count(engine.EventStreamInitialized))
		})
	}
}

func TestSettingsForSelection(t *testing.T) {
	base := DefaultSettings()

	pinned := base.ForSelection(engine.Pinned(1))
	assert.False(t, pinned.AutoSwitchBitrate)
	assert.False(t, pinned.SmoothedThroughput)
	assert.False(t, pinned.InsufficientBufferRule)

	loose := base.ForSelection(engine.Selection{Level: 1})
	assert.False(t, loose.AutoSwitchBitrate)
	assert.True(t, loose.SmoothedThroughput)

	auto := pinned.ForSelection(engine.Auto())
	assert.True(t, auto.AutoSwitchBitrate)
}
