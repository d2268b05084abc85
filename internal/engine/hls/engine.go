// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package hls plays HLS playlists in software: it loads the multivariant and
// media playlists, picks levels and feeds fragments into the sink.
package hls

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/streamnorm/internal/engine"
	"github.com/ManuGH/streamnorm/internal/log"
	"github.com/ManuGH/streamnorm/internal/metrics"
	"github.com/ManuGH/streamnorm/internal/platform/httpx"
	"github.com/ManuGH/streamnorm/internal/source"
)

const maxPlaylistBytes = 4 << 20

// ErrNoLevels is reported when a playlist lists nothing playable.
var ErrNoLevels = errors.New("playlist has no playable levels")

type mediaPlaylist struct {
	base     string
	segments []*playlist.MediaSegment
}

// Engine is a software HLS engine instance.
type Engine struct {
	id       string
	desc     source.Descriptor
	cfg      Config
	client   *http.Client
	listener engine.Listener
	logger   zerolog.Logger

	mu        sync.Mutex
	sink      engine.Sink
	cancel    context.CancelFunc
	done      chan struct{}
	destroyed bool
	levels    []engine.Level
	target    int
	estimator *engine.Estimator
}

// New returns an engine for desc. cfg is fixed for the life of the instance.
func New(desc source.Descriptor, cfg Config, client *http.Client, listener engine.Listener, logger zerolog.Logger) *Engine {
	id := uuid.NewString()
	estimate := float64(cfg.BandwidthEstimateKbps)
	if estimate <= 0 {
		estimate = defaultBandwidthEstimateKbps
	}
	target := engine.AutoLevel
	if !cfg.AutoLevel {
		target = cfg.StartLevel
	}
	return &Engine{
		id:        id,
		desc:      desc,
		cfg:       cfg,
		client:    client,
		listener:  listener,
		logger:    logger.With().Str(log.FieldEngineID, id).Str(log.FieldKind, string(source.KindHLS)).Logger(),
		target:    target,
		estimator: engine.NewEstimator(estimate),
	}
}

// ID implements engine.Engine.
func (e *Engine) ID() string { return e.id }

// Kind implements engine.Engine.
func (e *Engine) Kind() source.Kind { return source.KindHLS }

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

// ApplySelection implements engine.Engine. Pinned levels can change at
// runtime; switching ABR mode returns engine.ErrRestartRequired.
func (e *Engine) ApplySelection(sel engine.Selection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return engine.ErrDestroyed
	}
	if sel.IsAuto() != e.cfg.AutoLevel {
		return engine.ErrRestartRequired
	}
	if sel.IsAuto() {
		return nil
	}
	if e.levels != nil && sel.Level >= len(e.levels) {
		return fmt.Errorf("%w: %d", engine.ErrLevelOutOfRange, sel.Level)
	}
	e.target = sel.Level
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

	raw, err := httpx.Get(ctx, e.client, e.desc.Locator, maxPlaylistBytes)
	if err != nil {
		e.fail(ctx, fmt.Errorf("load playlist: %w", err))
		return
	}
	pl, err := playlist.Unmarshal(raw)
	if err != nil {
		e.fail(ctx, fmt.Errorf("parse playlist: %w", err))
		return
	}

	var levels []engine.Level
	var preloaded *mediaPlaylist
	switch pl := pl.(type) {
	case *playlist.Multivariant:
		levels, err = levelsFromMultivariant(pl, e.desc.Locator)
		if err != nil {
			e.fail(ctx, err)
			return
		}
	case *playlist.Media:
		levels = []engine.Level{{Index: 0, ID: "0", URI: e.desc.Locator}}
		preloaded = &mediaPlaylist{base: e.desc.Locator, segments: pl.Segments}
	}
	if len(levels) == 0 {
		e.fail(ctx, ErrNoLevels)
		return
	}

	e.mu.Lock()
	e.levels = levels
	if !e.cfg.AutoLevel && (e.target < 0 || e.target >= len(levels)) {
		e.target = engine.PickByBandwidth(levels, e.estimator.Kbps())
	}
	e.mu.Unlock()

	e.emit(ctx, engine.Event{Type: engine.EventManifestLoaded, Manifest: string(raw), Levels: append([]engine.Level(nil), levels...)})

	level := e.initialLevel(levels)
	current := engine.AutoLevel
	var media *mediaPlaylist
	seq, fetched := 0, 0

	for ctx.Err() == nil {
		if level != current {
			if preloaded != nil {
				media = preloaded
			} else {
				media, err = e.loadMedia(ctx, levels[level])
				if err != nil {
					e.fail(ctx, err)
					return
				}
			}
			e.emit(ctx, engine.Event{Type: engine.EventLevelSwitched, Level: level})
			e.emit(ctx, engine.Event{Type: engine.EventLevelLoaded, Level: level, DurationSec: totalDuration(media.segments)})
			current = level
		}

		if seq >= len(media.segments) {
			e.logger.Debug().Int("fragments", fetched).Msg("playlist finished")
			return
		}
		if e.cfg.MaxFragments > 0 && fetched >= e.cfg.MaxFragments {
			e.logger.Debug().Int("fragments", fetched).Msg("fragment limit reached")
			return
		}

		seg := media.segments[seq]
		segURL, err := httpx.Resolve(media.base, seg.URI)
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
			e.emit(ctx, engine.Event{Type: engine.EventError, Level: level, FragmentURL: segURL, Err: err})
			seq++
			continue
		}
		if err := sink.Append(level, data); err != nil {
			e.fail(ctx, fmt.Errorf("append fragment: %w", err))
			return
		}
		metrics.AddSinkBytes(string(source.KindHLS), len(data))
		e.emit(ctx, engine.Event{Type: engine.EventFragmentLoaded, Level: level, FragmentURL: segURL})
		seq++
		fetched++

		level = e.nextLevel(levels, level, len(data), time.Since(started), seg.Duration)
	}
}

func (e *Engine) loadMedia(ctx context.Context, lvl engine.Level) (*mediaPlaylist, error) {
	raw, err := httpx.Get(ctx, e.client, lvl.URI, maxPlaylistBytes)
	if err != nil {
		return nil, fmt.Errorf("load level %d: %w", lvl.Index, err)
	}
	pl, err := playlist.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse level %d: %w", lvl.Index, err)
	}
	mp, ok := pl.(*playlist.Media)
	if !ok {
		return nil, fmt.Errorf("level %d: expected media playlist", lvl.Index)
	}
	return &mediaPlaylist{base: lvl.URI, segments: mp.Segments}, nil
}

func (e *Engine) initialLevel(levels []engine.Level) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.cfg.AutoLevel {
		return e.target
	}
	if e.cfg.StartLevel >= 0 && e.cfg.StartLevel < len(levels) {
		return e.cfg.StartLevel
	}
	return engine.PickByBandwidth(levels, e.estimator.Kbps())
}

// nextLevel applies the ABR rule after a fragment. Pinned engines follow the
// runtime target only.
func (e *Engine) nextLevel(levels []engine.Level, current, size int, took, segDur time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	// A pin already holds the level, so ABREwma and StarvationFallback only
	// act in automatic mode. A pinned instance never returns to automatic.
	if !e.cfg.AutoLevel {
		return e.target
	}

	estimate := e.estimator.Sample(size, took, e.cfg.ABREwma)
	if e.cfg.StarvationFallback && segDur > 0 && took > segDur {
		return engine.LowerLevel(levels, current)
	}
	return engine.PickByBandwidth(levels, estimate)
}

func (e *Engine) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	e.logger.Warn().Err(err).Str(log.FieldLocator, e.desc.Locator).Msg("hls load failed")
	e.emit(ctx, engine.Event{Type: engine.EventError, Level: engine.AutoLevel, Err: err, Fatal: true})
}

func (e *Engine) emit(ctx context.Context, ev engine.Event) {
	if ctx.Err() != nil {
		return
	}
	e.listener(ev)
}

func levelsFromMultivariant(pl *playlist.Multivariant, base string) ([]engine.Level, error) {
	levels := make([]engine.Level, 0, len(pl.Variants))
	for i, v := range pl.Variants {
		uri, err := httpx.Resolve(base, v.URI)
		if err != nil {
			return nil, err
		}
		lvl := engine.Level{
			Index:       i,
			ID:          strconv.Itoa(i),
			BitrateKbps: float64(v.Bandwidth) / 1000,
			Codec:       videoCodec(v.Codecs),
			URI:         uri,
		}
		lvl.Width, lvl.Height = parseResolution(v.Resolution)
		if v.FrameRate != nil {
			lvl.FrameRate = *v.FrameRate
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

func parseResolution(s string) (int, int) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0
	}
	width, err1 := strconv.Atoi(w)
	height, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return width, height
}

var audioCodecPrefixes = []string{"mp4a", "ac-3", "ec-3", "opus", "flac", "alac"}

// videoCodec returns the first non-audio codec of a CODECS attribute.
func videoCodec(codecs []string) string {
	for _, c := range codecs {
		c = strings.TrimSpace(c)
		audio := false
		for _, p := range audioCodecPrefixes {
			if strings.HasPrefix(strings.ToLower(c), p) {
				audio = true
				break
			}
		}
		if !audio && c != "" {
			return c
		}
	}
	return ""
}

func totalDuration(segs []*playlist.MediaSegment) float64 {
	var d time.Duration
	for _, s := range segs {
		d += s.Duration
	}
	return d.Seconds()
}
