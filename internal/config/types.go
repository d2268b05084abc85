// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version  string
	LogLevel string

	Sources SourcesConfig
	Player  PlayerConfig
	HLS     HLSConfig
	DASH    DASHConfig
	Probe   ProbeConfig
	HTTP    HTTPConfig
	API     APIConfig

	Telemetry TelemetryConfig
}

// SourcesConfig holds the process-wide default locators.
type SourcesConfig struct {
	HLS     string
	DASH    string
	Initial string
}

// PlayerConfig describes the runtime the session plays into.
type PlayerConfig struct {
	// NativeHLS reports that the sink plays HLS itself.
	NativeHLS bool
	// SoftwareHLS enables the built-in HLS engine.
	SoftwareHLS bool
	AutoPlay    bool
	// InitialVariant is the registry index pinned at startup, -1 for automatic.
	InitialVariant int
}

// HLSConfig holds constructor-time options of the HLS engine.
type HLSConfig struct {
	StartLevel            int
	ABREwma               bool
	StarvationFallback    bool
	BandwidthEstimateKbps int
	MaxFragments          int
}

// DASHConfig holds the default runtime settings of the DASH engine.
type DASHConfig struct {
	SmoothedThroughput     bool
	InsufficientBufferRule bool
	BandwidthEstimateKbps  int
	MaxSegments            int
}

// ProbeConfig controls fragment inspection.
type ProbeConfig struct {
	Enabled          bool
	FFmpegBin        string
	Timeout          time.Duration
	MaxFragmentBytes int64
}

// HTTPConfig tunes the outbound client shared by engines and the probe.
type HTTPConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// APIConfig configures the control API.
type APIConfig struct {
	ListenAddr         string
	RateLimitPerMinute int
}

// TelemetryConfig controls OpenTelemetry tracing of the control API.
type TelemetryConfig struct {
	Enabled bool
	// Exporter is the OTLP transport: "grpc" or "http".
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// FileConfig is the YAML representation. Pointer fields distinguish an
// explicit zero value from an omitted key.
type FileConfig struct {
	LogLevel string      `yaml:"logLevel,omitempty"`
	Sources  FileSources `yaml:"sources,omitempty"`
	Player   FilePlayer  `yaml:"player,omitempty"`
	HLS      FileHLS     `yaml:"hls,omitempty"`
	DASH     FileDASH    `yaml:"dash,omitempty"`
	Probe    FileProbe   `yaml:"probe,omitempty"`
	HTTP     FileHTTP    `yaml:"http,omitempty"`
	API      FileAPI     `yaml:"api,omitempty"`

	Telemetry FileTelemetry `yaml:"telemetry,omitempty"`
}

type FileSources struct {
	HLS     string `yaml:"hls,omitempty"`
	DASH    string `yaml:"dash,omitempty"`
	Initial string `yaml:"initial,omitempty"`
}

type FilePlayer struct {
	NativeHLS      *bool `yaml:"nativeHLS,omitempty"`
	SoftwareHLS    *bool `yaml:"softwareHLS,omitempty"`
	AutoPlay       *bool `yaml:"autoPlay,omitempty"`
	InitialVariant *int  `yaml:"initialVariant,omitempty"`
}

type FileHLS struct {
	StartLevel            *int  `yaml:"startLevel,omitempty"`
	ABREwma               *bool `yaml:"abrEwma,omitempty"`
	StarvationFallback    *bool `yaml:"starvationFallback,omitempty"`
	BandwidthEstimateKbps *int  `yaml:"bandwidthEstimateKbps,omitempty"`
	MaxFragments          *int  `yaml:"maxFragments,omitempty"`
}

type FileDASH struct {
	SmoothedThroughput     *bool `yaml:"smoothedThroughput,omitempty"`
	InsufficientBufferRule *bool `yaml:"insufficientBufferRule,omitempty"`
	BandwidthEstimateKbps  *int  `yaml:"bandwidthEstimateKbps,omitempty"`
	MaxSegments            *int  `yaml:"maxSegments,omitempty"`
}

type FileProbe struct {
	Enabled          *bool          `yaml:"enabled,omitempty"`
	FFmpegBin        string         `yaml:"ffmpegBin,omitempty"`
	Timeout          *time.Duration `yaml:"timeout,omitempty"`
	MaxFragmentBytes *int64         `yaml:"maxFragmentBytes,omitempty"`
}

type FileHTTP struct {
	Timeout   *time.Duration `yaml:"timeout,omitempty"`
	UserAgent string         `yaml:"userAgent,omitempty"`
}

type FileAPI struct {
	ListenAddr         string `yaml:"listenAddr,omitempty"`
	RateLimitPerMinute *int   `yaml:"rateLimitPerMinute,omitempty"`
}

type FileTelemetry struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
