package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectUpdateMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != UpdateMetricsMeterName {
			continue
		}
		for _, m := range scope.Metrics {
			found[m.Name] = m
		}
	}
	return found
}

func TestNewUpdateMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewUpdateMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("creates metrics with SDK provider", func(t *testing.T) {
		t.Parallel()

		mp := sdkmetric.NewMeterProvider()
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewUpdateMetrics(mp)
		require.NoError(t, err)
		require.NotNil(t, metrics)
		assert.NotNil(t, metrics.runDuration)
		assert.NotNil(t, metrics.submissions)
		assert.NotNil(t, metrics.downloadedBytes)
	})
}

func TestUpdateMetrics_NilIsNoOp(t *testing.T) {
	t.Parallel()

	var metrics *UpdateMetrics
	// Should not panic
	metrics.RecordRun(context.Background(), "myplugin", "NO_UPDATE", time.Second)
	metrics.RecordSubmission(context.Background(), "myplugin", "SUCCESS_STARTED")
	metrics.RecordDownloadedBytes(context.Background(), "myplugin", 10)
}

func TestUpdateMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewUpdateMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordRun(ctx, "myplugin", "UPDATE_DOWNLOADED", 3*time.Second)
	metrics.RecordSubmission(ctx, "myplugin", "SUCCESS_STARTED")
	metrics.RecordSubmission(ctx, "myplugin", "SUCCESS_STARTED")
	metrics.RecordSubmission(ctx, "myplugin", "FAIL_BUSY")
	metrics.RecordDownloadedBytes(ctx, "myplugin", 1024)
	metrics.RecordDownloadedBytes(ctx, "myplugin", 0)

	found := collectUpdateMetrics(t, reader)

	runs, ok := found["plugin_updater_run_duration_seconds"]
	require.True(t, ok)
	histogram, ok := runs.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
	assert.InDelta(t, 3.0, histogram.DataPoints[0].Sum, 0.001)
	status, _ := histogram.DataPoints[0].Attributes.Value(attribute.Key("status"))
	assert.Equal(t, "UPDATE_DOWNLOADED", status.AsString())

	subs, ok := found["plugin_updater_submissions_total"]
	require.True(t, ok)
	sum, ok := subs.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	byOutcome := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		byOutcome[outcome.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"SUCCESS_STARTED": 2, "FAIL_BUSY": 1}, byOutcome)

	bytes, ok := found["plugin_updater_downloaded_bytes_total"]
	require.True(t, ok)
	byteSum, ok := bytes.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, byteSum.DataPoints, 1)
	assert.Equal(t, int64(1024), byteSum.DataPoints[0].Value)
}
