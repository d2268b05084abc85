// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package variant normalizes engine level lists into an ordered,
// protocol-agnostic registry of selectable quality variants.
package variant

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ManuGH/streamnorm/internal/engine"
	"github.com/ManuGH/streamnorm/internal/metadata"
)

// Auto is the selection index meaning engine-driven ABR.
const Auto = -1

// Descriptor is one selectable quality tier. Index is the public position in
// the registry; Ref is the index the owning engine uses for the same level.
type Descriptor struct {
	Index       int                `json:"index"`
	Ref         int                `json:"-"`
	Height      *int               `json:"height,omitempty"`
	Width       *int               `json:"width,omitempty"`
	BitrateKbps *float64           `json:"bitrateKbps,omitempty"`
	Codec       *string            `json:"codec,omitempty"`
	FrameRate   *float64           `json:"frameRate,omitempty"`
	ScanType    *metadata.ScanType `json:"scanType,omitempty"`
	DisplayName string             `json:"displayName"`
}

// Metadata returns the manifest-declared stream facts of the variant.
func (d Descriptor) Metadata() metadata.Stream {
	return metadata.Stream{
		BitrateKbps:  d.BitrateKbps,
		WidthPx:      d.Width,
		HeightPx:     d.Height,
		ScanType:     d.ScanType,
		FrameRateFps: d.FrameRate,
		Codec:        d.Codec,
	}
}

// Registry is an immutable, ascending-by-height list of variants.
type Registry struct {
	variants []Descriptor
	byRef    map[int]int
}

// Empty returns a registry with no variants.
func Empty() *Registry {
	return &Registry{byRef: map[int]int{}}
}

// FromLevels builds a registry from engine levels. Levels with a known height
// are ordered ascending by height; ties and levels without height keep the
// engine order, the latter after all sized levels.
func FromLevels(levels []engine.Level) *Registry {
	sorted := make([]engine.Level, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool {
		hi, hj := sorted[i].Height, sorted[j].Height
		if hi <= 0 || hj <= 0 {
			return hi > 0 && hj <= 0
		}
		return hi < hj
	})

	r := &Registry{
		variants: make([]Descriptor, 0, len(sorted)),
		byRef:    make(map[int]int, len(sorted)),
	}
	for i, lvl := range sorted {
		d := Descriptor{
			Index:       i,
			Ref:         lvl.Index,
			Height:      metadata.Int(lvl.Height),
			Width:       metadata.Int(lvl.Width),
			BitrateKbps: metadata.Float(lvl.BitrateKbps),
			Codec:       metadata.String(lvl.Codec),
			FrameRate:   metadata.Float(lvl.FrameRate),
			ScanType:    metadata.ParseScanType(lvl.ScanType),
			DisplayName: DisplayName(i, lvl.Height),
		}
		r.variants = append(r.variants, d)
		r.byRef[lvl.Index] = i
	}
	return r
}

// DisplayName labels a variant by height, or by position when the height is
// unknown.
func DisplayName(index, height int) string {
	if height > 0 {
		return strconv.Itoa(height) + "p"
	}
	return fmt.Sprintf("Variant %d", index)
}

// Len returns the number of variants.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.variants)
}

// List returns a copy of the ordered variants.
func (r *Registry) List() []Descriptor {
	if r == nil {
		return []Descriptor{}
	}
	out := make([]Descriptor, len(r.variants))
	copy(out, r.variants)
	return out
}

// Get returns the variant at index.
func (r *Registry) Get(index int) (Descriptor, bool) {
	if r == nil || index < 0 || index >= len(r.variants) {
		return Descriptor{}, false
	}
	return r.variants[index], true
}

// ByRef returns the variant the engine knows as level ref.
func (r *Registry) ByRef(ref int) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	i, ok := r.byRef[ref]
	if !ok {
		return Descriptor{}, false
	}
	return r.variants[i], true
}

// Clamp maps an out-of-range selection to Auto.
func (r *Registry) Clamp(index int) int {
	if _, ok := r.Get(index); !ok {
		return Auto
	}
	return index
}

// EngineSelection translates a registry selection into the engine-native
// selection. Invalid indices select automatic mode.
func (r *Registry) EngineSelection(index int) engine.Selection {
	d, ok := r.Get(index)
	if !ok {
		return engine.Auto()
	}
	return engine.Pinned(d.Ref)
}
