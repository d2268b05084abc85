// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session owns the playback lifecycle: it attaches one protocol
// engine per source, applies variant pins, and reconciles the metadata the
// engines and the fragment probe report.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/streamnorm/internal/engine"
	"github.com/ManuGH/streamnorm/internal/log"
	"github.com/ManuGH/streamnorm/internal/metadata"
	"github.com/ManuGH/streamnorm/internal/metrics"
	"github.com/ManuGH/streamnorm/internal/probe"
	"github.com/ManuGH/streamnorm/internal/source"
	"github.com/ManuGH/streamnorm/internal/variant"
)

// EngineFactory builds the engine for a classified source. sel is the
// engine-native selection the instance starts with.
type EngineFactory interface {
	New(desc source.Descriptor, sel engine.Selection, listener engine.Listener) (engine.Engine, error)
}

// EngineFactoryFunc adapts a function to EngineFactory.
type EngineFactoryFunc func(desc source.Descriptor, sel engine.Selection, listener engine.Listener) (engine.Engine, error)

// New implements EngineFactory.
func (f EngineFactoryFunc) New(desc source.Descriptor, sel engine.Selection, listener engine.Listener) (engine.Engine, error) {
	return f(desc, sel, listener)
}

// Prober recovers stream facts from a downloaded fragment.
type Prober interface {
	Run(ctx context.Context, fragmentURL string, declared metadata.Stream) (metadata.Stream, error)
}

// Sources are the process-wide default locators.
type Sources struct {
	HLS     string
	DASH    string
	Initial string
}

// Preset returns the locator configured under name ("hls" or "dash").
func (s Sources) Preset(name string) (string, bool) {
	var loc string
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hls":
		loc = s.HLS
	case "dash":
		loc = s.DASH
	}
	return loc, loc != ""
}

// Config is the explicit configuration a controller is built with.
type Config struct {
	Sources Sources
	// InitialVariant is the selection requested before any source loads.
	InitialVariant int
}

// Deps are the collaborators of a controller. Prober may be nil.
type Deps struct {
	Classifier *source.Classifier
	Factory    EngineFactory
	Sink       engine.Sink
	Prober     Prober
	Observer   Observer
	Logger     zerolog.Logger
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	SessionID string               `json:"sessionId"`
	State     State                `json:"state"`
	Source    *source.Descriptor   `json:"source,omitempty"`
	EngineID  string               `json:"engineId,omitempty"`
	Selection int                  `json:"selection"`
	Active    int                  `json:"activeVariant"`
	Variants  []variant.Descriptor `json:"variants"`
	Metadata  metadata.Stream      `json:"metadata"`
	Manifest  string               `json:"-"`
}

type setSourceMsg struct{ locator string }

type setVariantMsg struct{ index int }

// flushMsg is closed once every message queued before it was handled.
type flushMsg chan struct{}

type engineEventMsg struct {
	gen uint64
	ev  engine.Event
}

type probeResultMsg struct {
	gen   uint64
	level int
	meta  metadata.Stream
	err   error
}

// Controller is the playback session state machine. All state is owned by
// the Run goroutine; the exported methods only enqueue work.
type Controller struct {
	id       string
	cfg      Config
	deps     Deps
	observer Observer
	logger   zerolog.Logger
	inbox    *mailbox

	// Owned by Run.
	state      State
	desc       *source.Descriptor
	selection  int
	registry   *variant.Registry
	reconciler *metadata.Reconciler
	latch      probe.Latch
	eng        engine.Engine
	gen        uint64
	activeRef  int
	manifest   string
	probeStop  context.CancelFunc
	probes     sync.WaitGroup

	// levelsFinal is set once the current source can publish no more levels.
	levelsFinal bool

	mu   sync.RWMutex
	snap Snapshot
}

// New builds a controller. Nothing happens until Run is called.
func New(cfg Config, deps Deps) *Controller {
	id := uuid.NewString()
	observer := deps.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	c := &Controller{
		id:         id,
		cfg:        cfg,
		deps:       deps,
		observer:   observer,
		logger:     deps.Logger.With().Str(log.FieldSessionID, id).Logger(),
		inbox:      newMailbox(),
		state:      StateIdle,
		selection:  variant.Auto,
		registry:   variant.Empty(),
		reconciler: metadata.NewReconciler(),
		activeRef:  engine.AutoLevel,
	}
	if cfg.InitialVariant >= 0 {
		c.selection = cfg.InitialVariant
	}
	c.publish()
	return c
}

// ID identifies the session.
func (c *Controller) ID() string { return c.id }

// SetSource replaces the current source. Safe from any goroutine.
func (c *Controller) SetSource(locator string) {
	c.inbox.post(setSourceMsg{locator: locator})
}

// SetVariant pins registry index, or returns to automatic with -1. Indices
// outside the registry select automatic. Safe from any goroutine.
func (c *Controller) SetVariant(index int) {
	c.inbox.post(setVariantMsg{index: index})
}

// Snapshot returns the state published after the last processed message.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.snap
	s.Variants = append([]variant.Descriptor(nil), c.snap.Variants...)
	s.Metadata = c.snap.Metadata.Clone()
	if c.snap.Source != nil {
		d := *c.snap.Source
		s.Source = &d
	}
	return s
}

// Run processes messages until ctx is done, then tears the engine down.
func (c *Controller) Run(ctx context.Context) error {
	if c.cfg.Sources.Initial != "" {
		c.SetSource(c.cfg.Sources.Initial)
	}
	c.logger.Info().Msg("session started")

	for {
		select {
		case <-ctx.Done():
			c.teardown("shutdown")
			c.probes.Wait()
			c.publish()
			c.logger.Info().Msg("session stopped")
			return nil
		case <-c.inbox.notify:
			for _, msg := range c.inbox.drain() {
				c.handle(ctx, msg)
			}
			c.publish()
		}
	}
}

func (c *Controller) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case setSourceMsg:
		c.handleSetSource(ctx, m.locator)
	case setVariantMsg:
		c.handleSetVariant(ctx, m.index)
	case engineEventMsg:
		if m.gen != c.gen || c.eng == nil {
			c.dropStale("engine", m.ev.Type)
			return
		}
		c.handleEngineEvent(ctx, m.ev)
	case probeResultMsg:
		if m.gen != c.gen || c.eng == nil || m.level != c.activeRef {
			c.dropStale("probe", "probe_result")
			return
		}
		c.handleProbeResult(m)
	case flushMsg:
		c.publish()
		close(m)
	}
}

func (c *Controller) handleSetSource(ctx context.Context, locator string) {
	c.teardown("source_change")

	desc, err := c.deps.Classifier.Classify(locator)
	c.adopt(desc)
	if err != nil {
		c.toTornDown()
		kind := KindSourceLoadFailure
		if errors.Is(err, source.ErrUnsupported) {
			kind = KindUnsupportedEnvironment
		}
		c.fail(kind, err)
		return
	}
	c.attach(ctx, c.registry.EngineSelection(c.registry.Clamp(c.selection)))
}

// adopt makes desc current and publishes the reset registry and metadata
// before any engine of the new source can report.
func (c *Controller) adopt(desc source.Descriptor) {
	c.desc = &desc
	c.registry = variant.Empty()
	c.manifest = ""
	c.activeRef = engine.AutoLevel
	c.levelsFinal = false
	meta := c.reconciler.Reset()

	c.logger.Info().Str(log.FieldLocator, desc.Locator).Str(log.FieldKind, string(desc.Kind)).Msg("source adopted")
	c.observer.OnSourceAdopted(desc)
	c.observer.OnVariantsChanged(c.registry.List())
	c.observer.OnMetadataChanged(meta)
	c.diag("source %s", desc)
}

func (c *Controller) handleSetVariant(ctx context.Context, index int) {
	effective := c.registry.Clamp(index)
	if c.registry.Len() == 0 && index >= 0 && c.levelsPending() {
		// Nothing to validate against yet; keep the request until levels load.
		effective = index
	}
	mode := "auto"
	if effective >= 0 {
		mode = "pinned"
	}
	metrics.IncVariantSelection(mode)
	if effective != index {
		c.logger.Debug().Int(log.FieldSelection, index).Msg("selection out of range, using automatic")
	}
	c.selection = effective
	c.diag("selection %d", effective)

	if c.eng == nil || c.registry.Len() == 0 {
		return
	}
	c.applySelection(ctx)
}

// applySelection pushes the current selection into the engine, rebuilding it
// when the engine cannot switch ABR mode at runtime.
func (c *Controller) applySelection(ctx context.Context) {
	c.selection = c.registry.Clamp(c.selection)
	sel := c.registry.EngineSelection(c.selection)

	err := c.eng.ApplySelection(sel)
	switch {
	case err == nil:
		c.logger.Debug().Int(log.FieldSelection, c.selection).Int(log.FieldLevel, sel.Level).Msg("selection applied")
	case errors.Is(err, engine.ErrRestartRequired):
		c.logger.Info().Int(log.FieldSelection, c.selection).Msg("rebuilding engine for selection")
		c.teardown("reconfigure")
		c.attach(ctx, sel)
	default:
		c.logger.Warn().Err(err).Int(log.FieldSelection, c.selection).Msg("selection rejected by engine")
	}
}

func (c *Controller) attach(ctx context.Context, sel engine.Selection) {
	if c.eng != nil {
		c.teardown("reattach")
	}
	c.gen++
	gen := c.gen
	listener := func(ev engine.Event) {
		c.inbox.post(engineEventMsg{gen: gen, ev: ev})
	}

	eng, err := c.deps.Factory.New(*c.desc, sel, listener)
	if err != nil {
		metrics.IncEngineAttach(string(c.desc.Kind), false)
		kind := KindSourceLoadFailure
		if errors.Is(err, source.ErrUnsupported) {
			kind = KindUnsupportedEnvironment
		}
		c.toTornDown()
		c.fail(kind, err)
		return
	}

	c.transition(TriggerAttach)
	c.latch.Reset()
	c.activeRef = engine.AutoLevel
	if err := eng.Attach(ctx, c.deps.Sink); err != nil {
		metrics.IncEngineAttach(string(c.desc.Kind), false)
		eng.Destroy()
		c.toTornDown()
		c.fail(KindSourceLoadFailure, err)
		return
	}
	metrics.IncEngineAttach(string(c.desc.Kind), true)
	c.eng = eng
	c.logger.Info().Str(log.FieldEngineID, eng.ID()).Int(log.FieldLevel, sel.Level).Msg("engine attached")
}

// teardown releases the engine synchronously. Events it queued before
// stopping are dropped by the generation check.
func (c *Controller) teardown(cause string) {
	if c.probeStop != nil {
		c.probeStop()
		c.probeStop = nil
	}
	if c.eng == nil {
		if c.state != StateIdle {
			c.toTornDown()
		}
		return
	}
	eng := c.eng
	c.eng = nil
	eng.Destroy()
	metrics.IncEngineTeardown(string(eng.Kind()), cause)
	c.logger.Info().Str(log.FieldEngineID, eng.ID()).Str("cause", cause).Msg("engine torn down")
	c.toTornDown()
}

func (c *Controller) toTornDown() {
	if c.state != StateTornDown {
		c.transition(TriggerTeardown)
	}
}

func (c *Controller) transition(trig Trigger) {
	tr, ok := TransitionFor(c.state, trig)
	if !ok {
		c.logger.Warn().
			Str(log.FieldOldState, string(c.state)).
			Str("trigger", string(trig)).
			Err(ErrIllegalTransition).
			Msg("transition rejected")
		return
	}
	c.logger.Debug().Str(log.FieldOldState, string(tr.From)).Str(log.FieldNewState, string(tr.To)).Msg("state changed")
	c.state = tr.To
	c.diag("state %s -> %s", tr.From, tr.To)
}

func (c *Controller) handleEngineEvent(ctx context.Context, ev engine.Event) {
	c.observer.OnDiagnosticEvent(ev.Describe())

	switch ev.Type {
	case engine.EventManifestLoaded:
		if ev.Manifest != "" {
			c.manifest = ev.Manifest
			c.observer.OnManifestCaptured(ev.Manifest)
		}
		if c.state == StateAttaching {
			c.transition(TriggerManifestLoaded)
		}
		if len(ev.Levels) > 0 {
			c.setRegistry(ctx, ev.Levels)
		}
		// DASH reports its representations with stream_initialized.
		if len(ev.Levels) > 0 || c.desc.Kind != source.KindDASH {
			c.finalizeLevels()
		}

	case engine.EventStreamInitialized:
		c.setRegistry(ctx, ev.Levels)
		c.finalizeLevels()
		if c.eng == nil {
			return
		}
		c.activate(ev.Level)
		c.applyEngineMetadata(ev.Active, ev.DurationSec)

	case engine.EventQualityRendered, engine.EventBufferLoaded:
		c.activate(ev.Level)
		c.applyEngineMetadata(ev.Active, 0)

	case engine.EventLevelSwitched:
		c.activate(ev.Level)

	case engine.EventLevelLoaded:
		c.activate(ev.Level)
		d, ok := c.registry.ByRef(ev.Level)
		if !ok {
			return
		}
		meta := d.Metadata()
		meta.DurationSec = metadata.Float(ev.DurationSec)
		c.emitMetadata(metadata.ProvenanceEngine, meta)

	case engine.EventFragmentLoaded:
		c.maybeProbe(ev.Level, ev.FragmentURL)

	case engine.EventError:
		if !ev.Fatal {
			c.logger.Warn().Err(ev.Err).Str(log.FieldFragmentURL, ev.FragmentURL).Msg("engine reported recoverable error")
			return
		}
		c.teardown("load_failure")
		c.fail(KindSourceLoadFailure, ev.Err)
	}
}

// setRegistry replaces the registry and re-validates a pending pin.
func (c *Controller) setRegistry(ctx context.Context, levels []engine.Level) {
	c.registry = variant.FromLevels(levels)
	c.observer.OnVariantsChanged(c.registry.List())
	c.diag("variants %d", c.registry.Len())

	if c.selection >= 0 {
		c.applySelection(ctx)
	}
}

// levelsPending reports whether a level list may still arrive, either because
// no source was set yet or because the current one is still loading.
func (c *Controller) levelsPending() bool {
	if c.desc == nil {
		return true
	}
	return (c.state == StateAttaching || c.state == StateReady) && !c.levelsFinal
}

// finalizeLevels closes the level list of the current source. A pin held for
// a source that ended up without levels falls back to automatic.
func (c *Controller) finalizeLevels() {
	c.levelsFinal = true
	if c.registry.Len() > 0 || c.selection < 0 {
		return
	}
	c.logger.Debug().Int(log.FieldSelection, c.selection).Msg("source has no variants, using automatic")
	metrics.IncVariantSelection("clamped")
	c.selection = variant.Auto
	c.diag("selection %d", c.selection)
}

// activate records the engine level now rendering and arms the probe latch
// when it changed.
func (c *Controller) activate(ref int) {
	if ref < 0 {
		return
	}
	c.activeRef = ref
	if c.latch.Arm(ref) {
		c.logger.Debug().Int(log.FieldLevel, ref).Msg("level activated")
	}
}

func (c *Controller) applyEngineMetadata(active *engine.Level, durationSec float64) {
	if active == nil && durationSec <= 0 {
		return
	}
	var meta metadata.Stream
	if active != nil {
		meta = metadata.Stream{
			BitrateKbps:  metadata.Float(active.BitrateKbps),
			WidthPx:      metadata.Int(active.Width),
			HeightPx:     metadata.Int(active.Height),
			ScanType:     metadata.ParseScanType(active.ScanType),
			FrameRateFps: metadata.Float(active.FrameRate),
			Codec:        metadata.String(active.Codec),
		}
	}
	meta.DurationSec = metadata.Float(durationSec)
	c.emitMetadata(metadata.ProvenanceEngine, meta)
}

func (c *Controller) emitMetadata(from metadata.Provenance, fragment metadata.Stream) {
	snap := c.reconciler.Apply(from, fragment)
	ev := c.logger.Debug().Str("provenance", string(from))
	if r := snap.Resolution(); r != "" {
		ev = ev.Str(log.FieldResolution, r)
	}
	if snap.Codec != nil {
		ev = ev.Str(log.FieldCodec, *snap.Codec)
	}
	ev.Msg("metadata updated")
	c.observer.OnMetadataChanged(snap)
}

// maybeProbe inspects the first fragment of each level activation.
func (c *Controller) maybeProbe(ref int, fragmentURL string) {
	if c.deps.Prober == nil || fragmentURL == "" {
		return
	}
	if !c.latch.TryFire(ref) {
		return
	}
	declared := metadata.Stream{}
	if d, ok := c.registry.ByRef(ref); ok {
		declared = d.Metadata()
	}
	declared = c.reconciler.Current().Merge(declared)

	if c.probeStop != nil {
		c.probeStop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.probeStop = cancel
	gen := c.gen

	c.diag("probe level %d %s", ref, fragmentURL)
	c.probes.Add(1)
	go func() {
		defer c.probes.Done()
		defer cancel()
		meta, err := c.deps.Prober.Run(ctx, fragmentURL, declared)
		c.inbox.post(probeResultMsg{gen: gen, level: ref, meta: meta, err: err})
	}()
}

func (c *Controller) handleProbeResult(m probeResultMsg) {
	if m.err != nil {
		perr := &Error{Kind: KindProbeFailure, Locator: c.locator(), Err: m.err}
		c.logger.Warn().Err(perr).Int(log.FieldLevel, m.level).Msg("fragment probe failed")
		c.diag("probe failed: %v", m.err)
		return
	}
	c.diag("probe level %d complete", m.level)
	c.emitMetadata(metadata.ProvenanceProbe, m.meta)
}

func (c *Controller) dropStale(origin string, what engine.EventType) {
	metrics.IncStaleEvent(origin)
	c.logger.Debug().
		Str(log.FieldEvent, string(what)).
		Str(log.FieldKind, string(KindStaleEvent)).
		Msg("dropped event from released engine")
}

func (c *Controller) fail(kind ErrorKind, err error) {
	e := &Error{Kind: kind, Locator: c.locator(), Err: err}
	c.logger.Error().Err(err).Str(log.FieldKind, string(kind)).Str(log.FieldLocator, e.Locator).Msg("source failed")
	c.diag("failure %s", e)
	if kind.Surfaced() {
		c.observer.OnFailure(e)
	}
}

func (c *Controller) diag(format string, args ...any) {
	c.observer.OnDiagnosticEvent(fmt.Sprintf(format, args...))
}

func (c *Controller) locator() string {
	if c.desc == nil {
		return ""
	}
	return c.desc.Locator
}

func (c *Controller) publish() {
	s := Snapshot{
		SessionID: c.id,
		State:     c.state,
		Selection: c.selection,
		Active:    variant.Auto,
		Variants:  c.registry.List(),
		Metadata:  c.reconciler.Current(),
		Manifest:  c.manifest,
	}
	if c.desc != nil {
		d := *c.desc
		s.Source = &d
	}
	if c.eng != nil {
		s.EngineID = c.eng.ID()
	}
	if d, ok := c.registry.ByRef(c.activeRef); ok {
		s.Active = d.Index
	}
	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}
