// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamnorm/internal/config"
	"github.com/ManuGH/streamnorm/internal/engine"
	"github.com/ManuGH/streamnorm/internal/engine/dash"
	"github.com/ManuGH/streamnorm/internal/engine/hls"
	"github.com/ManuGH/streamnorm/internal/probe"
	"github.com/ManuGH/streamnorm/internal/session"
	"github.com/ManuGH/streamnorm/internal/sink"
	"github.com/ManuGH/streamnorm/internal/source"
)

// engineFactory builds the engine matching a classified source.
type engineFactory struct {
	cfg    config.AppConfig
	client *http.Client
	logger zerolog.Logger
}

var _ session.EngineFactory = (*engineFactory)(nil)

func (f *engineFactory) New(desc source.Descriptor, sel engine.Selection, listener engine.Listener) (engine.Engine, error) {
	switch desc.Kind {
	case source.KindProgressive:
		return engine.NewProgressive(desc, f.cfg.Player.AutoPlay, listener, f.logger), nil
	case source.KindHLS:
		return hls.New(desc, hlsConfig(f.cfg.HLS).ForSelection(sel), f.client, listener, f.logger), nil
	case source.KindDASH:
		return dash.New(desc, dashSettings(f.cfg.DASH), sel, f.client, listener, f.logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", source.ErrUnsupported, desc.Kind)
	}
}

func hlsConfig(c config.HLSConfig) hls.Config {
	return hls.Config{
		AutoLevel:             true,
		StartLevel:            c.StartLevel,
		ABREwma:               c.ABREwma,
		StarvationFallback:    c.StarvationFallback,
		BandwidthEstimateKbps: c.BandwidthEstimateKbps,
		MaxFragments:          c.MaxFragments,
	}
}

func dashSettings(c config.DASHConfig) dash.Settings {
	return dash.Settings{
		AutoSwitchBitrate:      true,
		SmoothedThroughput:     c.SmoothedThroughput,
		InsufficientBufferRule: c.InsufficientBufferRule,
		BandwidthEstimateKbps:  c.BandwidthEstimateKbps,
		MaxSegments:            c.MaxSegments,
	}
}

// runtimeCaps answers classifier questions from the sink and configuration.
type runtimeCaps struct {
	sink     *sink.Memory
	software bool
}

func (c runtimeCaps) CanPlayType(mime string) bool { return c.sink.CanPlayType(mime) }
func (c runtimeCaps) SoftwareHLSSupported() bool   { return c.software }

func newSink(cfg config.PlayerConfig) *sink.Memory {
	if cfg.NativeHLS {
		return sink.NewMemory(source.MIMETypeHLS)
	}
	return sink.NewMemory()
}

// newProber returns nil when inspection is disabled so the controller skips it.
func newProber(cfg config.ProbeConfig, client *http.Client, logger zerolog.Logger) session.Prober {
	if !cfg.Enabled {
		return nil
	}
	inspector := probe.NewFFmpegInspector(cfg.FFmpegBin, logger)
	return probe.New(probe.Config{
		Timeout:          cfg.Timeout,
		MaxFragmentBytes: cfg.MaxFragmentBytes,
	}, client, inspector, logger)
}
