// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ExporterType: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)
	require.NoError(t, provider.Shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording(), "noop tracer spans do not record")
	span.End()
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "streamnorm", ExporterType: "invalid"})
	require.EqualError(t, err, "unsupported exporter type: invalid (supported: grpc, http)")
}

func TestNewProvider_HTTPExporter(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "streamnorm",
		ServiceVersion: "test",
		ExporterType:   "http",
		Endpoint:       "127.0.0.1:4318",
		SamplingRate:   1,
	})
	require.NoError(t, err)
	require.NotNil(t, provider.tp)
	t.Cleanup(func() { _, _ = NewProvider(context.Background(), Config{}) })

	_, span := Tracer("test").Start(context.Background(), "recorded")
	assert.True(t, span.IsRecording())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// The collector is absent; shutdown must still return.
	_ = provider.Shutdown(ctx)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(2).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), Sampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), Sampler(0.25).Description())
}

func TestAttributes(t *testing.T) {
	attrs := HTTPAttributes("PUT", "/api/v1/source", "/api/v1/source", 202)
	assert.Contains(t, attrs, attribute.Int(HTTPStatusCodeKey, 202))
	assert.Contains(t, attrs, attribute.String(HTTPRouteKey, "/api/v1/source"))

	assert.Len(t, SourceAttributes("http://cdn/a.mpd", ""), 1)
	assert.Contains(t, SourceAttributes("http://cdn/a.mpd", "dash"), attribute.String(SourcePresetKey, "dash"))
	assert.Equal(t, []attribute.KeyValue{attribute.Int(VariantIndexKey, 2)}, VariantAttributes(2))
}
