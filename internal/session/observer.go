// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"github.com/ManuGH/streamnorm/internal/metadata"
	"github.com/ManuGH/streamnorm/internal/source"
	"github.com/ManuGH/streamnorm/internal/variant"
)

// Observer receives the normalized outputs of a session. Calls are made from
// the controller goroutine in the order the changes happened; implementations
// must not call back into the controller synchronously.
type Observer interface {
	OnSourceAdopted(desc source.Descriptor)
	OnVariantsChanged(variants []variant.Descriptor)
	OnMetadataChanged(meta metadata.Stream)
	OnManifestCaptured(manifest string)
	OnDiagnosticEvent(line string)
	OnFailure(err *Error)
}

// NopObserver ignores everything. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnSourceAdopted(source.Descriptor)      {}
func (NopObserver) OnVariantsChanged([]variant.Descriptor) {}
func (NopObserver) OnMetadataChanged(metadata.Stream)      {}
func (NopObserver) OnManifestCaptured(string)              {}
func (NopObserver) OnDiagnosticEvent(string)               {}
func (NopObserver) OnFailure(*Error)                       {}

// Observers fans every notification out to each member in order.
type Observers []Observer

func (o Observers) OnSourceAdopted(desc source.Descriptor) {
	for _, ob := range o {
		ob.OnSourceAdopted(desc)
	}
}

func (o Observers) OnVariantsChanged(variants []variant.Descriptor) {
	for _, ob := range o {
		ob.OnVariantsChanged(variants)
	}
}

func (o Observers) OnMetadataChanged(meta metadata.Stream) {
	for _, ob := range o {
		ob.OnMetadataChanged(meta)
	}
}

func (o Observers) OnManifestCaptured(manifest string) {
	for _, ob := range o {
		ob.OnManifestCaptured(manifest)
	}
}

func (o Observers) OnDiagnosticEvent(line string) {
	for _, ob := range o {
		ob.OnDiagnosticEvent(line)
	}
}

func (o Observers) OnFailure(err *Error) {
	for _, ob := range o {
		ob.OnFailure(err)
	}
}
