package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/dilly/tablebot/internal/domain/table"
	"github.com/dilly/tablebot/internal/infrastructure/telemetry"
)

func newManualProvider(t *testing.T) (*telemetry.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp, err := telemetry.NewMeterProviderWithReader(telemetry.MetricsConfig{ServiceName: "tablebot-test"}, reader, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestRenderMetrics_RecordRender(t *testing.T) {
	mp, reader := newManualProvider(t)
	rm, err := telemetry.NewRenderMetrics(mp.Meter("tablebot/rendering"))
	require.NoError(t, err)

	ctx := context.Background()
	rm.RecordRender(ctx, table.RenderTargetRaster, "success", 1200*time.Millisecond)
	rm.RecordRender(ctx, table.RenderTargetRaster, "success", 800*time.Millisecond)
	rm.RecordRender(ctx, table.RenderTargetDocument, "CAPTURE_FAILED", 3*time.Second)

	metrics := collect(t, reader)

	total, ok := metrics["table_render_total"]
	require.True(t, ok)
	assert.Equal(t, int64(2), sumFor(t, total,
		telemetry.AttrTarget.String("raster"), telemetry.AttrOutcome.String("success")))
	assert.Equal(t, int64(1), sumFor(t, total,
		telemetry.AttrTarget.String("document"), telemetry.AttrOutcome.String("CAPTURE_FAILED")))

	duration, ok := metrics["table_render_duration_seconds"]
	require.True(t, ok)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestMessageMetrics_RecordMessage(t *testing.T) {
	mp, reader := newManualProvider(t)
	mm, err := telemetry.NewMessageMetrics(mp.Meter("tablebot/bot"))
	require.NoError(t, err)

	ctx := context.Background()
	mm.RecordMessage(ctx, "table", "success", time.Second)
	mm.RecordMessage(ctx, "echo", "success", 10*time.Millisecond)
	mm.RecordMessage(ctx, "table", "failed", 2*time.Second)

	metrics := collect(t, reader)
	total, ok := metrics["bot_messages_total"]
	require.True(t, ok)
	assert.Equal(t, int64(1), sumFor(t, total,
		telemetry.AttrKind.String("table"), telemetry.AttrOutcome.String("success")))
	assert.Equal(t, int64(1), sumFor(t, total,
		telemetry.AttrKind.String("echo"), telemetry.AttrOutcome.String("success")))
	assert.Equal(t, int64(1), sumFor(t, total,
		telemetry.AttrKind.String("table"), telemetry.AttrOutcome.String("failed")))
}
