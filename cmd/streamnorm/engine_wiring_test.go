// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamnorm/internal/config"
	"github.com/ManuGH/streamnorm/internal/engine"
	"github.com/ManuGH/streamnorm/internal/engine/dash"
	"github.com/ManuGH/streamnorm/internal/engine/hls"
	"github.com/ManuGH/streamnorm/internal/probe"
	"github.com/ManuGH/streamnorm/internal/source"
)

func testFactory() *engineFactory {
	return &engineFactory{
		cfg:    config.Defaults("test"),
		client: &http.Client{Timeout: time.Second},
		logger: zerolog.Nop(),
	}
}

func TestEngineFactory_KindMapping(t *testing.T) {
	f := testFactory()
	listener := engine.Listener(func(engine.Event) {})

	tests := []struct {
		name string
		desc source.Descriptor
		kind source.Kind
	}{
		{"progressive", source.Descriptor{Locator: "https://cdn.example/a.mp4", Kind: source.KindProgressive}, source.KindProgressive},
		{"native hls", source.Descriptor{Locator: "https://cdn.example/a.m3u8", Kind: source.KindProgressive, NativeHLS: true}, source.KindProgressive},
		{"hls", source.Descriptor{Locator: "https://cdn.example/a.m3u8", Kind: source.KindHLS}, source.KindHLS},
		{"dash", source.Descriptor{Locator: "https://cdn.example/a.mpd", Kind: source.KindDASH}, source.KindDASH},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := f.New(tt.desc, engine.Auto(), listener)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, e.Kind())
			assert.NotEmpty(t, e.ID())
		})
	}

	e, err := f.New(source.Descriptor{Locator: "x", Kind: source.KindHLS}, engine.Pinned(1), listener)
	require.NoError(t, err)
	assert.IsType(t, &hls.Engine{}, e)

	e, err = f.New(source.Descriptor{Locator: "x.mpd", Kind: source.KindDASH}, engine.Pinned(0), listener)
	require.NoError(t, err)
	assert.IsType(t, &dash.Engine{}, e)
}

func TestEngineFactory_UnsupportedKind(t *testing.T) {
	_, err := testFactory().New(source.Descriptor{Locator: "x", Kind: source.KindUnsupported}, engine.Auto(), func(engine.Event) {})
	require.ErrorIs(t, err, source.ErrUnsupported)
}

func TestHLSConfig_FollowsSelection(t *testing.T) {
	cfg := config.Defaults("test")
	cfg.HLS.ABREwma = true
	cfg.HLS.StarvationFallback = true

	auto := hlsConfig(cfg.HLS).ForSelection(engine.Auto())
	assert.True(t, auto.AutoLevel)
	assert.True(t, auto.ABREwma)
	assert.Equal(t, cfg.HLS.BandwidthEstimateKbps, auto.BandwidthEstimateKbps)

	pinned := hlsConfig(cfg.HLS).ForSelection(engine.Pinned(2))
	assert.False(t, pinned.AutoLevel)
	assert.Equal(t, 2, pinned.StartLevel)
}

func TestDASHSettings_AutoSwitchIsDefault(t *testing.T) {
	cfg := config.Defaults("test")
	cfg.DASH.SmoothedThroughput = true
	s := dashSettings(cfg.DASH)
	assert.True(t, s.AutoSwitchBitrate)
	assert.True(t, s.SmoothedThroughput)
	assert.Equal(t, cfg.DASH.MaxSegments, s.MaxSegments)
}

func TestRuntimeCaps(t *testing.T) {
	native := runtimeCaps{sink: newSink(config.PlayerConfig{NativeHLS: true}), software: false}
	assert.True(t, native.CanPlayType(source.MIMETypeHLS))
	assert.False(t, native.SoftwareHLSSupported())

	desc, err := source.NewClassifier(native).Classify("https://cdn.example/live.m3u8")
	require.NoError(t, err)
	assert.True(t, desc.NativeHLS)

	software := runtimeCaps{sink: newSink(config.PlayerConfig{}), software: true}
	assert.False(t, software.CanPlayType(source.MIMETypeHLS))
	desc, err = source.NewClassifier(software).Classify("https://cdn.example/live.m3u8")
	require.NoError(t, err)
	assert.Equal(t, source.KindHLS, desc.Kind)
}

func TestNewProber(t *testing.T) {
	client := &http.Client{}
	assert.Nil(t, newProber(config.ProbeConfig{Enabled: false}, client, zerolog.Nop()))

	p := newProber(config.ProbeConfig{Enabled: true, FFmpegBin: "ffmpeg", Timeout: time.Second}, client, zerolog.Nop())
	require.NotNil(t, p)
	assert.IsType(t, &probe.Probe{}, p)
}
