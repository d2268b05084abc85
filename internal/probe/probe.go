// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe recovers stream facts that a manifest does not declare by
// inspecting a downloaded media fragment.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/streamnorm/internal/log"
	"github.com/ManuGH/streamnorm/internal/metadata"
	"github.com/ManuGH/streamnorm/internal/metrics"
	"github.com/ManuGH/streamnorm/internal/platform/httpx"
	"github.com/rs/zerolog"
)

var (
	// ErrIncomplete means the diagnostic stream ended before the output marker
	// or without a video codec.
	ErrIncomplete = errors.New("inspection ended without a complete stream description")
	// ErrFetch wraps failures downloading the fragment.
	ErrFetch = errors.New("fragment fetch failed")
)

const (
	defaultTimeout          = 10 * time.Second
	defaultMaxFragmentBytes = 8 << 20
)

// Config tunes a Probe.
type Config struct {
	Timeout          time.Duration
	MaxFragmentBytes int64
}

// Probe fetches a fragment and runs it through an Inspector.
type Probe struct {
	client    *http.Client
	inspector Inspector
	cfg       Config
	logger    zerolog.Logger
}

// New creates a probe. A zero Config uses defaults.
func New(cfg Config, client *http.Client, inspector Inspector, logger zerolog.Logger) *Probe {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxFragmentBytes <= 0 {
		cfg.MaxFragmentBytes = defaultMaxFragmentBytes
	}
	return &Probe{client: client, inspector: inspector, cfg: cfg, logger: logger}
}

// Run inspects the fragment at fragmentURL and returns declared filled with
// the inspected values. On any error the caller keeps its prior metadata.
func (p *Probe) Run(ctx context.Context, fragmentURL string, declared metadata.Stream) (metadata.Stream, error) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	data, err := p.fetch(ctx, fragmentURL)
	if err != nil {
		metrics.ObserveProbe("fetch_error", time.Since(started))
		return metadata.Stream{}, err
	}

	inspectCtx, stop := context.WithCancel(ctx)
	defer stop()

	var parser Parser
	inspectErr := p.inspector.Inspect(inspectCtx, data, func(line string) {
		parser.Feed(line)
		if parser.Complete() {
			stop()
		}
	})

	probed, complete := parser.Result()
	if !complete {
		result := "incomplete"
		if inspectErr != nil {
			result = "inspect_error"
			err = fmt.Errorf("%w: %w", ErrIncomplete, inspectErr)
		} else {
			err = ErrIncomplete
		}
		metrics.ObserveProbe(result, time.Since(started))
		return metadata.Stream{}, err
	}

	metrics.ObserveProbe("ok", time.Since(started))
	out := declared.Merge(probed)
	ev := p.logger.Debug().Str(log.FieldFragmentURL, fragmentURL).Dur("took", time.Since(started))
	if out.Codec != nil {
		ev = ev.Str(log.FieldCodec, *out.Codec)
	}
	ev.Msg("fragment inspected")
	return out, nil
}

func (p *Probe) fetch(ctx context.Context, fragmentURL string) ([]byte, error) {
	data, err := httpx.Get(ctx, p.client, fragmentURL, p.cfg.MaxFragmentBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return data, nil
}
