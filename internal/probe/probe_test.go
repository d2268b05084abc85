// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/streamnorm/internal/metadata"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragmentServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.ts" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func scriptedInspector(lines string, err error) InspectorFunc {
	return func(ctx context.Context, data []byte, onLine func(string)) error {
		for _, l := range strings.Split(lines, "\n") {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			onLine(l)
		}
		return err
	}
}

func TestProbe_FillsDeclaredRecord(t *testing.T) {
	srv := fragmentServer(t, "fake-ts-bytes")
	p := New(Config{}, srv.Client(), scriptedInspector(tsFragmentLog, nil), zerolog.Nop())

	declared := metadata.Stream{
		Codec:       metadata.String("avc1.64001f"),
		BitrateKbps: metadata.Float(2800),
		DurationSec: metadata.Float(600),
	}
	got, err := p.Run(context.Background(), srv.URL+"/seg1.ts", declared)
	require.NoError(t, err)
	assert.Equal(t, "h264", *got.Codec)
	assert.Equal(t, 2345.0, *got.BitrateKbps)
	assert.Equal(t, 25.0, *got.FrameRateFps)
	assert.Equal(t, metadata.ScanProgressive, *got.ScanType)
}

func TestProbe_StopsInspectorOnceComplete(t *testing.T) {
	srv := fragmentServer(t, "x")
	cancelled := false
	insp := InspectorFunc(func(ctx context.Context, data []byte, onLine func(string)) error {
		for _, l := range strings.Split(tsFragmentLog, "\n") {
			onLine(l)
		}
		select {
		case <-ctx.Done():
			cancelled = true
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return nil
		}
	})

	p := New(Config{}, srv.Client(), insp, zerolog.Nop())
	_, err := p.Run(context.Background(), srv.URL+"/seg.ts", metadata.Stream{})
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestProbe_NoOutputMarkerEmitsNothing(t *testing.T) {
	srv := fragmentServer(t, "x")
	log := `  Duration: 00:00:04.00, start: 0.000000, bitrate: 900 kb/s
    Stream #0:0: Video: h264, yuv420p, 640x360, 30 fps`
	p := New(Config{}, srv.Client(), scriptedInspector(log, nil), zerolog.Nop())

	got, err := p.Run(context.Background(), srv.URL+"/seg.ts", metadata.Stream{HeightPx: metadata.Int(360)})
	require.ErrorIs(t, err, ErrIncomplete)
	assert.True(t, got.IsEmpty())
}

func TestProbe_InspectorFailureWrapped(t *testing.T) {
	srv := fragmentServer(t, "x")
	boom := errors.New("decoder crashed")
	p := New(Config{}, srv.Client(), scriptedInspector("garbage", boom), zerolog.Nop())

	_, err := p.Run(context.Background(), srv.URL+"/seg.ts", metadata.Stream{})
	require.ErrorIs(t, err, ErrIncomplete)
	require.ErrorIs(t, err, boom)
}

func TestProbe_FetchFailure(t *testing.T) {
	srv := fragmentServer(t, "x")
	p := New(Config{}, srv.Client(), scriptedInspector(tsFragmentLog, nil), zerolog.Nop())

	_, err := p.Run(context.Background(), srv.URL+"/missing.ts", metadata.Stream{})
	require.ErrorIs(t, err, ErrFetch)
}

func TestFFmpegInspector_MissingBinary(t *testing.T) {
	insp := NewFFmpegInspector("", zerolog.Nop())
	err := insp.Inspect(context.Background(), nil, func(string) {})
	require.ErrorIs(t, err, ErrInspectorUnavailable)
}

func TestFFmpegInspector_StreamsStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\ncat >/dev/null\ncat >&2 <<'LOG'\n" + tsFragmentLog + "LOG\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	var p Parser
	insp := NewFFmpegInspector(bin, zerolog.Nop())
	require.NoError(t, insp.Inspect(context.Background(), []byte("payload"), p.Feed))

	got, complete := p.Result()
	require.True(t, complete)
	assert.Equal(t, "h264", *got.Codec)
}

func TestRingBuffer_KeepsNewest(t *testing.T) {
	r := NewRingBuffer(2)
	r.Add("a")
	assert.Equal(t, []string{"a"}, r.GetAll())
	r.Add("b")
	r.Add("c")
	assert.Equal(t, []string{"b", "c"}, r.GetAll())
}
