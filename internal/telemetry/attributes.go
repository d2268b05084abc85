// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by every span the daemon creates.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	SourceLocatorKey = "source.locator"
	SourcePresetKey  = "source.preset"
	VariantIndexKey  = "variant.index"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SourceAttributes describes a requested source change. preset is empty for
// explicit locators.
func SourceAttributes(locator, preset string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(SourceLocatorKey, locator)}
	if preset != "" {
		attrs = append(attrs, attribute.String(SourcePresetKey, preset))
	}
	return attrs
}

// VariantAttributes describes a requested variant selection.
func VariantAttributes(index int) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int(VariantIndexKey, index)}
}
