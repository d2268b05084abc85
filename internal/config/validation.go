// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/streamnorm/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("logLevel", "must be one of debug, info, warn, error", cfg.LogLevel)
	}

	v.Locator("sources.hls", cfg.Sources.HLS)
	v.Locator("sources.dash", cfg.Sources.DASH)
	v.Locator("sources.initial", cfg.Sources.Initial)

	if cfg.Player.InitialVariant < -1 {
		v.AddError("player.initialVariant", "must be -1 (automatic) or a variant index", cfg.Player.InitialVariant)
	}

	if cfg.HLS.StartLevel < -1 {
		v.AddError("hls.startLevel", "must be -1 (automatic) or a level index", cfg.HLS.StartLevel)
	}
	v.Positive("hls.bandwidthEstimateKbps", cfg.HLS.BandwidthEstimateKbps)
	v.NonNegative("hls.maxFragments", cfg.HLS.MaxFragments)

	v.Positive("dash.bandwidthEstimateKbps", cfg.DASH.BandwidthEstimateKbps)
	v.NonNegative("dash.maxSegments", cfg.DASH.MaxSegments)

	if cfg.Probe.Enabled {
		v.NotEmpty("probe.ffmpegBin", cfg.Probe.FFmpegBin)
		v.MinDuration("probe.timeout", cfg.Probe.Timeout, 100*time.Millisecond)
		if cfg.Probe.MaxFragmentBytes < 1<<10 {
			v.AddError("probe.maxFragmentBytes", "must be at least 1KiB", cfg.Probe.MaxFragmentBytes)
		}
	}

	v.MinDuration("http.timeout", cfg.HTTP.Timeout, 100*time.Millisecond)

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.Range("api.rateLimitPerMinute", cfg.API.RateLimitPerMinute, 0, 100000)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.samplingRate", "must be between 0.0 and 1.0", cfg.Telemetry.SamplingRate)
		}
	}

	return v.Err()
}
