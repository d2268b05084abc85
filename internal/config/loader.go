// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/streamnorm/internal/log"
	"gopkg.in/yaml.v3"
)

// Environment keys, all prefixed with EnvPrefix.
const (
	EnvHLSURL                 = EnvPrefix + "HLS_URL"
	EnvDASHURL                = EnvPrefix + "DASH_URL"
	EnvInitialSource          = EnvPrefix + "INITIAL_SOURCE"
	EnvNativeHLS              = EnvPrefix + "NATIVE_HLS"
	EnvSoftwareHLS            = EnvPrefix + "SOFTWARE_HLS"
	EnvAutoPlay               = EnvPrefix + "AUTOPLAY"
	EnvInitialVariant         = EnvPrefix + "INITIAL_VARIANT"
	EnvHLSStartLevel          = EnvPrefix + "HLS_START_LEVEL"
	EnvHLSABREwma             = EnvPrefix + "HLS_ABR_EWMA"
	EnvHLSStarvationFallback  = EnvPrefix + "HLS_STARVATION_FALLBACK"
	EnvHLSBandwidthKbps       = EnvPrefix + "HLS_BANDWIDTH_KBPS"
	EnvHLSMaxFragments        = EnvPrefix + "HLS_MAX_FRAGMENTS"
	EnvDASHSmoothedThroughput = EnvPrefix + "DASH_SMOOTHED_THROUGHPUT"
	EnvDASHInsufficientBuffer = EnvPrefix + "DASH_INSUFFICIENT_BUFFER_RULE"
	EnvDASHBandwidthKbps      = EnvPrefix + "DASH_BANDWIDTH_KBPS"
	EnvDASHMaxSegments        = EnvPrefix + "DASH_MAX_SEGMENTS"
	EnvProbeEnabled           = EnvPrefix + "PROBE_ENABLED"
	EnvFFmpegBin              = EnvPrefix + "FFMPEG_BIN"
	EnvProbeTimeout           = EnvPrefix + "PROBE_TIMEOUT"
	EnvProbeMaxBytes          = EnvPrefix + "PROBE_MAX_BYTES"
	EnvHTTPTimeout            = EnvPrefix + "HTTP_TIMEOUT"
	EnvUserAgent              = EnvPrefix + "USER_AGENT"
	EnvListenAddr             = EnvPrefix + "LISTEN"
	EnvRateLimit              = EnvPrefix + "RATE_LIMIT"
	EnvLogLevel               = EnvPrefix + "LOG_LEVEL"
	EnvTelemetryEnabled       = EnvPrefix + "TELEMETRY_ENABLED"
	EnvTelemetryExporter      = EnvPrefix + "TELEMETRY_EXPORTER"
	EnvOTLPEndpoint           = EnvPrefix + "OTLP_ENDPOINT"
	EnvSamplingRate           = EnvPrefix + "SAMPLING_RATE"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	resolveFFmpeg   func(string) (string, error)
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults(l.version)

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)

	if cfg.Probe.Enabled {
		resolve := l.resolveFFmpeg
		if resolve == nil {
			resolve = ResolveFFmpegBin
		}
		bin, err := resolve(cfg.Probe.FFmpegBin)
		if err != nil {
			// Inspection is an enrichment; playback works without it.
			logger := log.WithComponent("config")
			logger.Warn().Err(err).Msg("fragment probe disabled")
			cfg.Probe.Enabled = false
		} else {
			cfg.Probe.FFmpegBin = bin
		}
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults(version string) AppConfig {
	ua := "streamnorm"
	if version != "" {
		ua += "/" + version
	}
	return AppConfig{
		Version:  version,
		LogLevel: "info",
		Player: PlayerConfig{
			SoftwareHLS:    true,
			AutoPlay:       true,
			InitialVariant: -1,
		},
		HLS: HLSConfig{
			StartLevel:            -1,
			ABREwma:               true,
			StarvationFallback:    true,
			BandwidthEstimateKbps: 5000,
		},
		DASH: DASHConfig{
			SmoothedThroughput:     true,
			InsufficientBufferRule: true,
			BandwidthEstimateKbps:  5000,
		},
		Probe: ProbeConfig{
			Enabled:          true,
			FFmpegBin:        defaultFFmpegBin,
			Timeout:          10 * time.Second,
			MaxFragmentBytes: 8 << 20,
		},
		HTTP: HTTPConfig{
			Timeout:   15 * time.Second,
			UserAgent: ua,
		},
		API: APIConfig{
			ListenAddr:         ":8088",
			RateLimitPerMinute: 120,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// LoadFileConfig loads a YAML config file without applying defaults or env overrides.
func LoadFileConfig(path string) (*FileConfig, error) {
	return NewLoader(path, "").loadFile(path)
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) {
	setString(&cfg.LogLevel, f.LogLevel)

	setString(&cfg.Sources.HLS, f.Sources.HLS)
	setString(&cfg.Sources.DASH, f.Sources.DASH)
	setString(&cfg.Sources.Initial, f.Sources.Initial)

	setPtr(&cfg.Player.NativeHLS, f.Player.NativeHLS)
	setPtr(&cfg.Player.SoftwareHLS, f.Player.SoftwareHLS)
	setPtr(&cfg.Player.AutoPlay, f.Player.AutoPlay)
	setPtr(&cfg.Player.InitialVariant, f.Player.InitialVariant)

	setPtr(&cfg.HLS.StartLevel, f.HLS.StartLevel)
	setPtr(&cfg.HLS.ABREwma, f.HLS.ABREwma)
	setPtr(&cfg.HLS.StarvationFallback, f.HLS.StarvationFallback)
	setPtr(&cfg.HLS.BandwidthEstimateKbps, f.HLS.BandwidthEstimateKbps)
	setPtr(&cfg.HLS.MaxFragments, f.HLS.MaxFragments)

	setPtr(&cfg.DASH.SmoothedThroughput, f.DASH.SmoothedThroughput)
	setPtr(&cfg.DASH.InsufficientBufferRule, f.DASH.InsufficientBufferRule)
	setPtr(&cfg.DASH.BandwidthEstimateKbps, f.DASH.BandwidthEstimateKbps)
	setPtr(&cfg.DASH.MaxSegments, f.DASH.MaxSegments)

	setPtr(&cfg.Probe.Enabled, f.Probe.Enabled)
	setString(&cfg.Probe.FFmpegBin, f.Probe.FFmpegBin)
	setPtr(&cfg.Probe.Timeout, f.Probe.Timeout)
	setPtr(&cfg.Probe.MaxFragmentBytes, f.Probe.MaxFragmentBytes)

	setPtr(&cfg.HTTP.Timeout, f.HTTP.Timeout)
	setString(&cfg.HTTP.UserAgent, f.HTTP.UserAgent)

	setString(&cfg.API.ListenAddr, f.API.ListenAddr)
	setPtr(&cfg.API.RateLimitPerMinute, f.API.RateLimitPerMinute)

	setPtr(&cfg.Telemetry.Enabled, f.Telemetry.Enabled)
	setString(&cfg.Telemetry.Exporter, f.Telemetry.Exporter)
	setString(&cfg.Telemetry.Endpoint, f.Telemetry.Endpoint)
	setPtr(&cfg.Telemetry.SamplingRate, f.Telemetry.SamplingRate)
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)

	cfg.Sources.HLS = l.envString(EnvHLSURL, cfg.Sources.HLS)
	cfg.Sources.DASH = l.envString(EnvDASHURL, cfg.Sources.DASH)
	cfg.Sources.Initial = l.envString(EnvInitialSource, cfg.Sources.Initial)

	cfg.Player.NativeHLS = l.envBool(EnvNativeHLS, cfg.Player.NativeHLS)
	cfg.Player.SoftwareHLS = l.envBool(EnvSoftwareHLS, cfg.Player.SoftwareHLS)
	cfg.Player.AutoPlay = l.envBool(EnvAutoPlay, cfg.Player.AutoPlay)
	cfg.Player.InitialVariant = l.envInt(EnvInitialVariant, cfg.Player.InitialVariant)

	cfg.HLS.StartLevel = l.envInt(EnvHLSStartLevel, cfg.HLS.StartLevel)
	cfg.HLS.ABREwma = l.envBool(EnvHLSABREwma, cfg.HLS.ABREwma)
	cfg.HLS.StarvationFallback = l.envBool(EnvHLSStarvationFallback, cfg.HLS.StarvationFallback)
	cfg.HLS.BandwidthEstimateKbps = l.envInt(EnvHLSBandwidthKbps, cfg.HLS.BandwidthEstimateKbps)
	cfg.HLS.MaxFragments = l.envInt(EnvHLSMaxFragments, cfg.HLS.MaxFragments)

	cfg.DASH.SmoothedThroughput = l.envBool(EnvDASHSmoothedThroughput, cfg.DASH.SmoothedThroughput)
	cfg.DASH.InsufficientBufferRule = l.envBool(EnvDASHInsufficientBuffer, cfg.DASH.InsufficientBufferRule)
	cfg.DASH.BandwidthEstimateKbps = l.envInt(EnvDASHBandwidthKbps, cfg.DASH.BandwidthEstimateKbps)
	cfg.DASH.MaxSegments = l.envInt(EnvDASHMaxSegments, cfg.DASH.MaxSegments)

	cfg.Probe.Enabled = l.envBool(EnvProbeEnabled, cfg.Probe.Enabled)
	cfg.Probe.FFmpegBin = l.envString(EnvFFmpegBin, cfg.Probe.FFmpegBin)
	cfg.Probe.Timeout = l.envDuration(EnvProbeTimeout, cfg.Probe.Timeout)
	cfg.Probe.MaxFragmentBytes = l.envInt64(EnvProbeMaxBytes, cfg.Probe.MaxFragmentBytes)

	cfg.HTTP.Timeout = l.envDuration(EnvHTTPTimeout, cfg.HTTP.Timeout)
	cfg.HTTP.UserAgent = l.envString(EnvUserAgent, cfg.HTTP.UserAgent)

	cfg.API.ListenAddr = l.envString(EnvListenAddr, cfg.API.ListenAddr)
	cfg.API.RateLimitPerMinute = l.envInt(EnvRateLimit, cfg.API.RateLimitPerMinute)

	cfg.Telemetry.Enabled = l.envBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvTelemetryExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvOTLPEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvSamplingRate, cfg.Telemetry.SamplingRate)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
