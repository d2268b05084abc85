// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metadata

import "github.com/ManuGH/streamnorm/internal/metrics"

// Provenance names where a metadata fragment came from.
type Provenance string

const (
	// ProvenanceEngine marks fields reported by the protocol engine.
	ProvenanceEngine Provenance = "engine"
	// ProvenanceProbe marks fields recovered by fragment inspection.
	ProvenanceProbe Provenance = "probe"
)

// Reconciler merges fragments into one record and hands out snapshots.
// It is not safe for concurrent use; the session controller owns it.
type Reconciler struct {
	current Stream
}

// NewReconciler returns a reconciler with an all-unknown record.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reset forgets everything; called when a new source is adopted.
func (r *Reconciler) Reset() Stream {
	r.current = Stream{}
	return r.current.Clone()
}

// Apply merges one fragment and returns the resulting snapshot.
func (r *Reconciler) Apply(from Provenance, fragment Stream) Stream {
	r.current = r.current.Merge(fragment)
	metrics.IncMetadataSnapshot(string(from))
	return r.current.Clone()
}

// Current returns a snapshot of the merged record.
func (r *Reconciler) Current() Stream {
	return r.current.Clone()
}
