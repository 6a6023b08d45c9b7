// Package otel holds the span helpers and attribute keys shared by update runs.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys of update run spans
const (
	AttrComponent      = attribute.Key("component.name")
	AttrResourceID     = attribute.Key("component.resource_id")
	AttrRunID          = attribute.Key("update.run_id")
	AttrFlags          = attribute.Key("update.flags")
	AttrStatus         = attribute.Key("update.status")
	AttrCurrentVersion = attribute.Key("release.current_version")
	AttrReleaseVersion = attribute.Key("release.version")
	AttrFilesWritten   = attribute.Key("artifact.files_written")
)

// StartSpan starts a span on tracer. A nil tracer yields the span already in
// ctx, which is a no-op span when tracing is off.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError adds err as an event and marks the span failed. The status
// description stays generic; the event carries the error text.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}

// SetOutcome records the final status code of an update run. Failed runs are
// marked as errors so they stand out in trace search.
func SetOutcome(span trace.Span, status string, failed bool) {
	if span == nil {
		return
	}
	span.SetAttributes(AttrStatus.String(status))
	if failed {
		span.SetStatus(codes.Error, status)
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
