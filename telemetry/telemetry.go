// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package telemetry implements a [pva.TelemetryClient] backed by
// OpenTelemetry tracing, recording exceptions against whatever span the
// caller has already attached to the context ahead of the turn (for
// example via otelhttp middleware further up the call chain). It does not
// start or own any spans itself: a pva.Engine has no server-side request
// boundary of its own to instrument, only turns dispatched by a caller who
// is better placed to decide where a trace begins and ends.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OtelClient implements pva.TelemetryClient. If the context passed to
// TrackException carries no recording span, the call is a no-op, matching
// the behavior of an uninstrumented call site.
type OtelClient struct{}

// New returns an OtelClient.
func New() *OtelClient {
	return &OtelClient{}
}

// TrackException implements pva.TelemetryClient.
func (c *OtelClient) TrackException(ctx context.Context, err error, tags map[string]string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}
