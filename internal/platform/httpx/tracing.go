// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// WithTracing returns a shallow copy of client that records a client span
// per outbound request and injects the trace context into its headers.
func WithTracing(client *http.Client) *http.Client {
	if client == nil {
		return nil
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c := *client
	c.Transport = otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
		otelhttp.WithSpanNameFormatter(fetchSpanName),
	)
	return &c
}

// fetchSpanName keeps span names low-cardinality: segment paths vary per
// request, hosts do not.
func fetchSpanName(_ string, r *http.Request) string {
	return "fetch " + r.Method + " " + r.URL.Host
}
