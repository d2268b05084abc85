// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EngineAttachTotal tracks engine attach attempts by protocol kind and result.
	EngineAttachTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamnorm_engine_attach_total",
		Help: "Total number of protocol engine attach attempts by kind and result",
	}, []string{"kind", "result"})

	// EngineTeardownTotal tracks engine teardowns by protocol kind and cause.
	EngineTeardownTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamnorm_engine_teardown_total",
		Help: "Total number of protocol engine teardowns by kind and cause",
	}, []string{"kind", "cause"})

	// StaleEventsTotal counts engine events and probe results discarded because
	// their engine instance was already disposed.
	StaleEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamnorm_stale_events_total",
		Help: "Engine events or probe results dropped after their engine was disposed",
	}, []string{"origin"})

	// VariantSelectionTotal counts variant selection changes by mode.
	VariantSelectionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamnorm_variant_selection_total",
		Help: "Total number of variant selection changes by mode (auto, pinned, clamped)",
	}, []string{"mode"})

	// MetadataSnapshotsTotal counts metadata merges by provenance.
	MetadataSnapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamnorm_metadata_snapshots_total",
		Help: "Total number of metadata snapshots produced by provenance",
	}, []string{"provenance"})

	// ProbeRunsTotal counts fragment probe invocations by result.
	ProbeRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamnorm_probe_runs_total",
		Help: "Total number of fragment probe runs by result",
	}, []string{"result"})

	// ProbeDuration tracks the wall time of a fragment probe run.
	ProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamnorm_probe_duration_seconds",
		Help:    "Duration of fragment fetch and inspection",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	// SinkBytesTotal counts media bytes appended to the sink by protocol kind.
	SinkBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamnorm_sink_bytes_total",
		Help: "Total media bytes appended to the media sink",
	}, []string{"kind"})
)

// IncEngineAttach records an attach attempt outcome.
func IncEngineAttach(kind string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	EngineAttachTotal.WithLabelValues(kind, result).Inc()
}

// IncEngineTeardown records an engine teardown.
func IncEngineTeardown(kind, cause string) {
	EngineTeardownTotal.WithLabelValues(kind, cause).Inc()
}

// IncStaleEvent records a discarded late event.
func IncStaleEvent(origin string) {
	StaleEventsTotal.WithLabelValues(origin).Inc()
}

// IncVariantSelection records a selection change.
func IncVariantSelection(mode string) {
	VariantSelectionTotal.WithLabelValues(mode).Inc()
}

// IncMetadataSnapshot records a produced metadata snapshot.
func IncMetadataSnapshot(provenance string) {
	MetadataSnapshotsTotal.WithLabelValues(provenance).Inc()
}

// ObserveProbe records a probe run and its duration.
func ObserveProbe(result string, d time.Duration) {
	ProbeRunsTotal.WithLabelValues(result).Inc()
	ProbeDuration.Observe(d.Seconds())
}

// AddSinkBytes records appended media bytes.
func AddSinkBytes(kind string, n int) {
	if n <= 0 {
		return
	}
	SinkBytesTotal.WithLabelValues(kind).Add(float64(n))
}
