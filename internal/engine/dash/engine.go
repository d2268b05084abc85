// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package dash plays MPEG-DASH presentations addressed with numbered
// segment templates.
package dash

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	m "github.com/Eyevinn/dash-mpd/mpd"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/streamnorm/internal/engine"
	"github.com/ManuGH/streamnorm/internal/log"
	"github.com/ManuGH/streamnorm/internal/metrics"
	"github.com/ManuGH/streamnorm/internal/platform/httpx"
	"github.com/ManuGH/streamnorm/internal/source"
)

const maxManifestBytes = 4 << 20

// ErrUnsupportedAddressing is returned for representations without a
// numbered SegmentTemplate.
var ErrUnsupportedAddressing = errors.New("representation has no $Number$ segment template")

// Engine is a DASH engine instance. Its Settings change in place.
type Engine struct {
	id       string
	desc     source.Descriptor
	base     Settings
	client   *http.Client
	listener engine.Listener
	logger   zerolog.Logger

	mu        sync.Mutex
	sink      engine.Sink
	cancel    context.CancelFunc
	done      chan struct{}
	destroyed bool
	settings  Settings
	target    int
	levels    []engine.Level
	estimator *engine.Estimator
}

type stream struct {
	set    *VideoSet
	levels []engine.Level
	total  float64
}

// New returns an engine for desc starting with sel applied on top of base.
func New(desc source.Descriptor, base Settings, sel engine.Selection, client *http.Client, listener engine.Listener, logger zerolog.Logger) *Engine {
	id := uuid.NewString()
	estimate := float64(base.BandwidthEstimateKbps)
	if estimate <= 0 {
		estimate = defaultBandwidthEstimateKbps
	}
	target := engine.AutoLevel
	if !sel.IsAuto() {
		target = sel.Level
	}
	return &Engine{
		id:        id,
		desc:      desc,
		base:      base,
		client:    client,
		listener:  listener,
		logger:    logger.With().Str(log.FieldEngineID, id).Str(log.FieldKind, string(source.KindDASH)).Logger(),
		settings:  base.ForSelection(sel),
		target:    target,
		estimator: engine.NewEstimator(estimate),
	}
}

// ID implements engine.Engine.
func (e *Engine) ID() string { return e.id }

// Kind implements engine.Engine.
func (e *Engine) Kind() source.Kind { return source.KindDASH }

// Settings returns the active settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Attach implements engine.Engine.
func (e *Engine) Attach(ctx context.Context, sink engine.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return engine.ErrDestroyed
	}
	if e.sink != nil {
		return fmt.Errorf("engine %s already attached", e.id)
	}
	if err := sink.Attach(e.id); err != nil {
		return err
	}
	e.sink = sink

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(runCtx, sink)
	return nil
}

// ApplySelection implements engine.Engine. Both pins and the return to
// automatic switching are applied to the running instance.
func (e *Engine) ApplySelection(sel engine.Selection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return engine.ErrDestroyed
	}
	if !sel.IsAuto() && e.levels != nil && sel.Level >= len(e.levels) {
		return fmt.Errorf("%w: %d", engine.ErrLevelOutOfRange, sel.Level)
	}
	e.settings = e.base.ForSelection(sel)
	e.target = engine.AutoLevel
	if !sel.IsAuto() {
		e.target = sel.Level
	}
	e.logger.Debug().
		Int(log.FieldSelection, e.target).
		Bool("auto_switch", e.settings.AutoSwitchBitrate).
		Msg("settings updated")
	return nil
}

// Destroy implements engine.Engine.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	cancel, done, sink := e.cancel, e.done, e.sink
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if sink != nil {
		sink.Reset()
		sink.Detach(e.id)
	}

	e.mu.Lock()
	e.sink = nil
	e.mu.Unlock()
	e.logger.Debug().Msg("engine destroyed")
}

func (e *Engine) run(ctx context.Context, sink engine.Sink) {
	defer close(e.done)

	raw, err := httpx.Get(ctx, e.client, e.desc.Locator, maxManifestBytes)
	if err != nil {
		e.fail(ctx, fmt.Errorf("load manifest: %w", err))
		return
	}
	doc, err := Decode(raw)
	if err != nil {
		e.fail(ctx, err)
		return
	}
	e.emit(ctx, engine.Event{Type: engine.EventManifestLoaded, Manifest: string(raw), Level: engine.AutoLevel})

	st, err := e.openStream(doc)
	if err != nil {
		e.fail(ctx, err)
		return
	}

	active := e.initialLevel(st.levels)
	e.emit(ctx, engine.Event{
		Type:        engine.EventStreamInitialized,
		Levels:      append([]engine.Level(nil), st.levels...),
		Level:       active,
		Active:      levelPtr(st.levels[active]),
		DurationSec: st.total,
	})

	if err := e.loadInit(ctx, sink, st, active); err != nil {
		e.fail(ctx, err)
		return
	}

	tmpl := st.set.Renditions[active].Template
	number := tmpl.FirstNumber()
	count := tmpl.SegmentCount(st.total)
	loaded := 0

	for ctx.Err() == nil {
		if count > 0 && loaded >= count {
			e.logger.Debug().Int("segments", loaded).Msg("presentation finished")
			return
		}
		if limit := e.Settings().MaxSegments; limit > 0 && loaded >= limit {
			e.logger.Debug().Int("segments", loaded).Msg("segment limit reached")
			return
		}

		rep := st.set.Renditions[active]
		tmpl = rep.Template
		segURL, err := httpx.Resolve(st.levels[active].URI, Expand(tmpl.Media, rep.ID, rep.Bandwidth, number))
		if err != nil {
			e.fail(ctx, err)
			return
		}

		started := time.Now()
		data, err := httpx.Get(ctx, e.client, segURL, 0)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if count == 0 {
				// Open-ended template: the first missing segment ends the stream.
				e.logger.Debug().Err(err).Int("segments", loaded).Msg("presentation ended")
				return
			}
			e.emit(ctx, engine.Event{Type: engine.EventError, Level: active, FragmentURL: segURL, Err: err})
			number++
			loaded++
			continue
		}
		if err := sink.Append(active, data); err != nil {
			e.fail(ctx, fmt.Errorf("append segment: %w", err))
			return
		}
		metrics.AddSinkBytes(string(source.KindDASH), len(data))
		e.emit(ctx, engine.Event{
			Type:        engine.EventBufferLoaded,
			Level:       active,
			Active:      levelPtr(st.levels[active]),
			FragmentURL: segURL,
		})
		number++
		loaded++

		next := e.nextLevel(st.levels, active, len(data), time.Since(started), tmpl.SegmentDuration())
		if next == active {
			continue
		}
		if err := e.loadInit(ctx, sink, st, next); err != nil {
			e.fail(ctx, err)
			return
		}
		active = next
		e.emit(ctx, engine.Event{Type: engine.EventQualityRendered, Level: active, Active: levelPtr(st.levels[active])})
	}
}

// openStream resolves the first period's video representations into levels.
func (e *Engine) openStream(doc *m.MPD) (*stream, error) {
	set, err := Video(doc, 0)
	if err != nil {
		return nil, err
	}
	total := PeriodDuration(doc, 0)

	base := e.desc.Locator
	for _, ref := range set.BaseURLs {
		if base, err = httpx.Resolve(base, ref); err != nil {
			return nil, err
		}
	}

	levels := make([]engine.Level, 0, len(set.Renditions))
	for i, rep := range set.Renditions {
		tmpl := rep.Template
		if tmpl == nil || tmpl.Media == "" {
			return nil, fmt.Errorf("representation %s: %w", rep.ID, ErrUnsupportedAddressing)
		}
		uri, err := httpx.Resolve(base, rep.BaseURL)
		if err != nil {
			return nil, err
		}
		levels = append(levels, engine.Level{
			Index:       i,
			ID:          rep.ID,
			Width:       rep.Width,
			Height:      rep.Height,
			BitrateKbps: float64(rep.Bandwidth) / 1000,
			Codec:       rep.Codecs,
			FrameRate:   rep.FrameRate,
			ScanType:    rep.ScanType,
			URI:         uri,
		})
	}

	e.mu.Lock()
	e.levels = levels
	if e.target >= len(levels) {
		e.target = engine.AutoLevel
		e.settings = e.base.ForSelection(engine.Auto())
	}
	e.mu.Unlock()

	return &stream{set: set, levels: levels, total: total}, nil
}

func (e *Engine) loadInit(ctx context.Context, sink engine.Sink, st *stream, level int) error {
	rep := st.set.Renditions[level]
	tmpl := rep.Template
	if tmpl.Initialization == "" {
		return nil
	}
	initURL, err := httpx.Resolve(st.levels[level].URI, Expand(tmpl.Initialization, rep.ID, rep.Bandwidth, -1))
	if err != nil {
		return err
	}
	data, err := httpx.Get(ctx, e.client, initURL, 0)
	if err != nil {
		return fmt.Errorf("load init segment %s: %w", rep.ID, err)
	}
	if err := sink.Append(level, data); err != nil {
		return fmt.Errorf("append init segment: %w", err)
	}
	metrics.AddSinkBytes(string(source.KindDASH), len(data))
	return nil
}

func (e *Engine) initialLevel(levels []engine.Level) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.settings.AutoSwitchBitrate && e.target >= 0 {
		return e.target
	}
	return engine.PickByBandwidth(levels, e.estimator.Kbps())
}

// nextLevel applies the current settings after a segment download.
func (e *Engine) nextLevel(levels []engine.Level, current, size int, took time.Duration, segSec float64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	// Sampling continues while pinned so a return to automatic starts from a
	// fresh estimate. InsufficientBufferRule never overrides a pin.
	estimate := e.estimator.Sample(size, took, e.settings.SmoothedThroughput)
	if !e.settings.AutoSwitchBitrate {
		if e.target >= 0 && e.target < len(levels) {
			return e.target
		}
		return current
	}
	if e.settings.InsufficientBufferRule && segSec > 0 && took.Seconds() > segSec {
		return engine.LowerLevel(levels, current)
	}
	return engine.PickByBandwidth(levels, estimate)
}

func (e *Engine) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	e.logger.Warn().Err(err).Str(log.FieldLocator, e.desc.Locator).Msg("dash load failed")
	e.emit(ctx, engine.Event{Type: engine.EventError, Level: engine.AutoLevel, Err: err, Fatal: true})
}

func (e *Engine) emit(ctx context.Context, ev engine.Event) {
	if ctx.Err() != nil {
		return
	}
	e.listener(ev)
}

func levelPtr(l engine.Level) *engine.Level {
	return &l
}
