// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/streamnorm/internal/log"
	"github.com/ManuGH/streamnorm/internal/source"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Progressive hands the locator to the sink's native player. It exposes no
// levels, so selections are accepted and ignored.
type Progressive struct {
	id       string
	desc     source.Descriptor
	autoPlay bool
	listener Listener
	logger   zerolog.Logger

	mu        sync.Mutex
	sink      Sink
	destroyed bool
}

// NewProgressive returns an engine for progressive files and native HLS.
func NewProgressive(desc source.Descriptor, autoPlay bool, listener Listener, logger zerolog.Logger) *Progressive {
	id := uuid.NewString()
	return &Progressive{
		id:       id,
		desc:     desc,
		autoPlay: autoPlay,
		listener: listener,
		logger:   logger.With().Str(log.FieldEngineID, id).Logger(),
	}
}

// ID implements Engine.
func (p *Progressive) ID() string { return p.id }

// Kind implements Engine.
func (p *Progressive) Kind() source.Kind { return p.desc.Kind }

// Attach implements Engine.
func (p *Progressive) Attach(_ context.Context, sink Sink) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return ErrDestroyed
	}
	if err := sink.Attach(p.id); err != nil {
		return err
	}
	p.sink = sink
	if err := sink.Load(p.desc.Locator, p.autoPlay); err != nil {
		sink.Detach(p.id)
		p.sink = nil
		return fmt.Errorf("native load %s: %w", p.desc.Locator, err)
	}
	p.logger.Debug().Str(log.FieldLocator, p.desc.Locator).Bool("autoplay", p.autoPlay).Msg("native playback started")
	p.listener(Event{Type: EventManifestLoaded, Level: AutoLevel})
	return nil
}

// ApplySelection implements Engine.
func (p *Progressive) ApplySelection(Selection) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return ErrDestroyed
	}
	return nil
}

// Destroy implements Engine.
func (p *Progressive) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.destroyed = true
	if p.sink != nil {
		p.sink.Reset()
		p.sink.Detach(p.id)
		p.sink = nil
	}
}
