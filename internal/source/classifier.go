// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package source decides which playback strategy a source locator implies.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Kind is the playback strategy implied by a locator.
type Kind string

const (
	KindProgressive Kind = "PROGRESSIVE"
	KindHLS         Kind = "HLS"
	KindDASH        Kind = "DASH"
	KindUnsupported Kind = "UNSUPPORTED"
)

// MIMETypeHLS is the MIME type probed against the native platform player.
const MIMETypeHLS = "application/vnd.apple.mpegurl"

// ErrUnsupported is returned when no engine can play a locator in this runtime.
var ErrUnsupported = errors.New("no playback engine available for source")

// Descriptor is the immutable classification of one source assignment.
type Descriptor struct {
	Locator string `json:"locator"`
	Kind    Kind   `json:"kind"`
	// NativeHLS marks the PROGRESSIVE path taken because the sink plays HLS itself.
	NativeHLS bool `json:"nativeHls,omitempty"`
}

// String implements fmt.Stringer for log output.
func (d Descriptor) String() string {
	if d.NativeHLS {
		return fmt.Sprintf("%s(native-hls) %s", d.Kind, d.Locator)
	}
	return fmt.Sprintf("%s %s", d.Kind, d.Locator)
}

// Capabilities reports what the current runtime can play.
type Capabilities interface {
	// CanPlayType reports whether the media sink plays the MIME type natively.
	CanPlayType(mime string) bool
	// SoftwareHLSSupported reports whether the software HLS engine is usable.
	SoftwareHLSSupported() bool
}

// Classifier maps locators to descriptors.
type Classifier struct {
	caps Capabilities
}

// NewClassifier creates a classifier bound to the runtime capabilities.
func NewClassifier(caps Capabilities) *Classifier {
	return &Classifier{caps: caps}
}

// Classify applies the precedence .mpd, .mp4, native HLS, software HLS.
// An UNSUPPORTED descriptor is always accompanied by ErrUnsupported.
func (c *Classifier) Classify(locator string) (Descriptor, error) {
	desc := Descriptor{Locator: locator}
	p := locatorPath(locator)

	switch {
	case strings.HasSuffix(p, ".mpd"):
		desc.Kind = KindDASH
	case strings.HasSuffix(p, ".mp4"):
		desc.Kind = KindProgressive
	case c.caps != nil && c.caps.CanPlayType(MIMETypeHLS):
		desc.Kind = KindProgressive
		desc.NativeHLS = true
	case c.caps != nil && c.caps.SoftwareHLSSupported():
		desc.Kind = KindHLS
	default:
		desc.Kind = KindUnsupported
		return desc, fmt.Errorf("%w: %s", ErrUnsupported, locator)
	}
	return desc, nil
}

// locatorPath returns the lower-cased path component so query strings and
// fragments do not hide the suffix.
func locatorPath(locator string) string {
	trimmed := strings.TrimSpace(locator)
	if u, err := url.Parse(trimmed); err == nil && u.Path != "" {
		return strings.ToLower(u.Path)
	}
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return strings.ToLower(trimmed)
}
