// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metadata holds the normalized stream metadata record and the
// reconciler that merges engine and probe facts into it.
package metadata

import (
	"fmt"
	"strings"
)

// ScanType is the field order of the video stream.
type ScanType string

const (
	ScanProgressive ScanType = "progressive"
	ScanInterlaced  ScanType = "interlaced"
)

// ParseScanType maps engine or probe vocabulary onto a ScanType.
// Unknown values yield nil.
func ParseScanType(s string) *ScanType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "progressive":
		v := ScanProgressive
		return &v
	case "interlaced", "tt", "bb", "tb", "bt", "top first", "bottom first":
		v := ScanInterlaced
		return &v
	default:
		return nil
	}
}

// Stream is the best knowledge so far about the rendering quality level.
// Every field is optional; nil means unknown.
type Stream struct {
	DurationSec  *float64  `json:"duration"`
	BitrateKbps  *float64  `json:"bitrate"`
	WidthPx      *int      `json:"width"`
	HeightPx     *int      `json:"height"`
	ScanType     *ScanType `json:"scanType"`
	FrameRateFps *float64  `json:"frameRate"`
	Codec        *string   `json:"codec"`
}

// Merge returns s with every non-nil field of next applied on top.
// A nil field in next never clears a known value in s.
func (s Stream) Merge(next Stream) Stream {
	out := s.Clone()
	fill := next.Clone()
	if fill.DurationSec != nil {
		out.DurationSec = fill.DurationSec
	}
	if fill.BitrateKbps != nil {
		out.BitrateKbps = fill.BitrateKbps
	}
	if fill.WidthPx != nil {
		out.WidthPx = fill.WidthPx
	}
	if fill.HeightPx != nil {
		out.HeightPx = fill.HeightPx
	}
	if fill.ScanType != nil {
		out.ScanType = fill.ScanType
	}
	if fill.FrameRateFps != nil {
		out.FrameRateFps = fill.FrameRateFps
	}
	if fill.Codec != nil {
		out.Codec = fill.Codec
	}
	return out
}

// Clone deep-copies the record so snapshots never alias live state.
func (s Stream) Clone() Stream {
	var out Stream
	if s.DurationSec != nil {
		v := *s.DurationSec
		out.DurationSec = &v
	}
	if s.BitrateKbps != nil {
		v := *s.BitrateKbps
		out.BitrateKbps = &v
	}
	if s.WidthPx != nil {
		v := *s.WidthPx
		out.WidthPx = &v
	}
	if s.HeightPx != nil {
		v := *s.HeightPx
		out.HeightPx = &v
	}
	if s.ScanType != nil {
		v := *s.ScanType
		out.ScanType = &v
	}
	if s.FrameRateFps != nil {
		v := *s.FrameRateFps
		out.FrameRateFps = &v
	}
	if s.Codec != nil {
		v := *s.Codec
		out.Codec = &v
	}
	return out
}

// IsEmpty reports whether no field is known.
func (s Stream) IsEmpty() bool {
	return s.DurationSec == nil && s.BitrateKbps == nil && s.WidthPx == nil &&
		s.HeightPx == nil && s.ScanType == nil && s.FrameRateFps == nil && s.Codec == nil
}

// Resolution renders "WxH" or "" when either side is unknown.
func (s Stream) Resolution() string {
	if s.WidthPx == nil || s.HeightPx == nil {
		return ""
	}
	return fmt.Sprintf("%dx%d", *s.WidthPx, *s.HeightPx)
}

// Float returns a pointer to v, or nil when v is not a positive measurement.
func Float(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}

// Int returns a pointer to v, or nil when v is not positive.
func Int(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

// String returns a pointer to the trimmed v, or nil when it is empty.
func String(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
