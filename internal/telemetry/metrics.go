package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// UpdateMetricsMeterName is the name used for the update metrics meter
const UpdateMetricsMeterName = "github.com/stacklok/plugin-updater/update"

// UpdateMetrics holds the OpenTelemetry instruments for update runs and submissions
type UpdateMetrics struct {
	runDuration     metric.Float64Histogram
	submissions     metric.Int64Counter
	downloadedBytes metric.Int64Counter
}

// NewUpdateMetrics creates a new UpdateMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewUpdateMetrics(provider metric.MeterProvider) (*UpdateMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(UpdateMetricsMeterName)

	runDuration, err := meter.Float64Histogram(
		"plugin_updater_run_duration_seconds",
		metric.WithDescription("Duration of update runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, err
	}

	submissions, err := meter.Int64Counter(
		"plugin_updater_submissions_total",
		metric.WithDescription("Number of update submissions by outcome"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, err
	}

	downloadedBytes, err := meter.Int64Counter(
		"plugin_updater_downloaded_bytes_total",
		metric.WithDescription("Number of artifact bytes downloaded"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &UpdateMetrics{
		runDuration:     runDuration,
		submissions:     submissions,
		downloadedBytes: downloadedBytes,
	}, nil
}

// RecordRun records the duration and final status of an update run
func (m *UpdateMetrics) RecordRun(ctx context.Context, component, status string, duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("component", component),
		attribute.String("status", status),
	}

	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSubmission counts a submission and its outcome
func (m *UpdateMetrics) RecordSubmission(ctx context.Context, component, outcome string) {
	if m == nil || m.submissions == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("component", component),
		attribute.String("outcome", outcome),
	}

	m.submissions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDownloadedBytes adds to the downloaded byte count of a component
func (m *UpdateMetrics) RecordDownloadedBytes(ctx context.Context, component string, n int64) {
	if m == nil || m.downloadedBytes == nil || n <= 0 {
		return
	}

	m.downloadedBytes.Add(ctx, n, metric.WithAttributes(attribute.String("component", component)))
}
