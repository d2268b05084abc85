// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"errors"
	"fmt"
)

// ErrorKind classifies session failures.
type ErrorKind string

const (
	// KindUnsupportedEnvironment: no engine can play the source here. No retry.
	KindUnsupportedEnvironment ErrorKind = "UNSUPPORTED_ENVIRONMENT"
	// KindSourceLoadFailure: network or parse failure attaching an engine. The
	// caller may retry by assigning the source again.
	KindSourceLoadFailure ErrorKind = "SOURCE_LOAD_FAILURE"
	// KindProbeFailure: fragment inspection failed; playback continues.
	KindProbeFailure ErrorKind = "PROBE_FAILURE"
	// KindStaleEvent: an event outlived its engine and was dropped.
	KindStaleEvent ErrorKind = "STALE_EVENT"
)

// Surfaced reports whether failures of this kind reach Observer.OnFailure.
func (k ErrorKind) Surfaced() bool {
	return k == KindUnsupportedEnvironment || k == KindSourceLoadFailure
}

// ErrIllegalTransition is returned when the state machine rejects a trigger.
var ErrIllegalTransition = errors.New("illegal session transition")

// Error is a classified session failure for one source.
type Error struct {
	Kind    ErrorKind
	Locator string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Locator)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Locator, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
