// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuGH/streamnorm/internal/metadata"
	"github.com/ManuGH/streamnorm/internal/source"
	"github.com/ManuGH/streamnorm/internal/variant"
)

func TestErrorKind_Surfaced(t *testing.T) {
	assert.True(t, KindUnsupportedEnvironment.Surfaced())
	assert.True(t, KindSourceLoadFailure.Surfaced())
	assert.False(t, KindProbeFailure.Surfaced())
	assert.False(t, KindStaleEvent.Surfaced())
}

func TestError_Format(t *testing.T) {
	cause := errors.New("connection refused")
	err := &Error{Kind: KindSourceLoadFailure, Locator: "http://a/x.mpd", Err: cause}
	assert.Equal(t, "SOURCE_LOAD_FAILURE: http://a/x.mpd: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	var target *Error
	assert.True(t, errors.As(error(err), &target))
	assert.Equal(t, KindSourceLoadFailure, target.Kind)

	bare := &Error{Kind: KindUnsupportedEnvironment, Locator: "x.m3u8"}
	assert.Equal(t, "UNSUPPORTED_ENVIRONMENT: x.m3u8", bare.Error())
	assert.NoError(t, bare.Unwrap())
}

func TestObservers_FanOutInOrder(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	obs := Observers{a, NopObserver{}, b}

	obs.OnSourceAdopted(source.Descriptor{Locator: "x.mpd", Kind: source.KindDASH})
	obs.OnVariantsChanged([]variant.Descriptor{{Index: 0}})
	obs.OnMetadataChanged(metadata.Stream{})
	obs.OnManifestCaptured("<MPD/>")
	obs.OnDiagnosticEvent("hello")
	obs.OnFailure(&Error{Kind: KindSourceLoadFailure})

	for _, r := range []*recorder{a, b} {
		assert.Equal(t, []string{"source x.mpd", "variants 1", "metadata", "failure SOURCE_LOAD_FAILURE"}, r.callList())
		assert.Equal(t, []string{"<MPD/>"}, r.manifests)
		assert.True(t, r.hasDiag("hello"))
	}
}
