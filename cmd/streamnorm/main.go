// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/streamnorm/internal/api"
	"github.com/ManuGH/streamnorm/internal/config"
	"github.com/ManuGH/streamnorm/internal/log"
	"github.com/ManuGH/streamnorm/internal/platform/httpx"
	"github.com/ManuGH/streamnorm/internal/session"
	"github.com/ManuGH/streamnorm/internal/source"
	"github.com/ManuGH/streamnorm/internal/telemetry"
	"github.com/ManuGH/streamnorm/internal/version"
)

const (
	serviceName = "streamnorm"
	// noVariant marks the -variant flag as unset.
	noVariant = -2
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	initialSource := flag.String("source", "", "locator to play at startup (overrides sources.initial)")
	initialVariant := flag.Int("variant", noVariant, "variant index to pin at startup, -1 for automatic")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	log.Configure(log.Config{
		Level:   "info",
		Service: serviceName,
		Version: version.Version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(strings.TrimSpace(*configPath), version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}
	if s := strings.TrimSpace(*initialSource); s != "" {
		cfg.Sources.Initial = s
	}
	if *initialVariant != noVariant {
		cfg.Player.InitialVariant = *initialVariant
	}

	log.Reconfigure(log.Config{
		Level:   cfg.LogLevel,
		Service: serviceName,
		Version: cfg.Version,
	})

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("daemon failed")
	}
	logger.Info().Msg("daemon stopped")
}

// run wires the session and the API and blocks until ctx is done or either fails.
func run(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("daemon")
	logger.Info().
		Str(log.FieldEvent, "daemon.start").
		Str("version", version.Version).
		Str("listen", cfg.API.ListenAddr).
		Bool("probe", cfg.Probe.Enabled).
		Bool("native_hls", cfg.Player.NativeHLS).
		Msg("starting streamnorm")

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry init failed: %w", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()
	if cfg.Telemetry.Enabled {
		logger.Info().
			Str("exporter", cfg.Telemetry.Exporter).
			Str("endpoint", cfg.Telemetry.Endpoint).
			Float64("sampling_rate", cfg.Telemetry.SamplingRate).
			Msg("telemetry initialized")
	}

	client := httpx.WithUserAgent(httpx.NewClient(cfg.HTTP.Timeout), cfg.HTTP.UserAgent)
	if cfg.Telemetry.Enabled {
		client = httpx.WithTracing(client)
	}
	mediaSink := newSink(cfg.Player)
	board := api.NewBoard(0)

	sources := session.Sources{
		HLS:     cfg.Sources.HLS,
		DASH:    cfg.Sources.DASH,
		Initial: cfg.Sources.Initial,
	}
	ctrl := session.New(session.Config{
		Sources:        sources,
		InitialVariant: cfg.Player.InitialVariant,
	}, session.Deps{
		Classifier: source.NewClassifier(runtimeCaps{sink: mediaSink, software: cfg.Player.SoftwareHLS}),
		Factory:    &engineFactory{cfg: cfg, client: client, logger: log.WithComponent("engine")},
		Sink:       mediaSink,
		Prober:     newProber(cfg.Probe, client, log.WithComponent("probe")),
		Observer:   board,
		Logger:     log.WithComponent("session"),
	})

	apiCfg := api.Config{
		ListenAddr:         cfg.API.ListenAddr,
		RateLimitPerMinute: cfg.API.RateLimitPerMinute,
	}
	if cfg.Telemetry.Enabled {
		apiCfg.TracingService = serviceName
	}
	srv := api.New(apiCfg, ctrl, board, sources)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	return g.Wait()
}
