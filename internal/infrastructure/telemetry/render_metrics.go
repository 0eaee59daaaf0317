package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/dilly/tablebot/internal/domain/table"
	"github.com/dilly/tablebot/internal/infrastructure/rendering"
)

// RenderMetrics records table renders.
type RenderMetrics struct {
	total    *Counter
	duration *Histogram
}

// NewRenderMetrics creates the render instruments on the given meter.
func NewRenderMetrics(meter metric.Meter) (*RenderMetrics, error) {
	total, err := NewCounter(meter, "table_render_total", "Table render attempts by target and outcome", "{render}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "table_render_duration_seconds",
		Description: "Table render duration",
		Unit:        "s",
		Boundaries:  RenderDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &RenderMetrics{total: total, duration: duration}, nil
}

// RecordRender implements rendering.Recorder
func (m *RenderMetrics) RecordRender(ctx context.Context, target table.RenderTarget, outcome string, d time.Duration) {
	m.total.Inc(ctx, AttrTarget.String(target.String()), AttrOutcome.String(outcome))
	m.duration.RecordDuration(ctx, d, AttrTarget.String(target.String()))
}

var _ rendering.Recorder = (*RenderMetrics)(nil)

// MessageMetrics records handled chat messages.
type MessageMetrics struct {
	total    *Counter
	duration *Histogram
}

// NewMessageMetrics creates the bot message instruments on the given meter.
func NewMessageMetrics(meter metric.Meter) (*MessageMetrics, error) {
	total, err := NewCounter(meter, "bot_messages_total", "Handled chat messages by kind and outcome", "{message}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "bot_message_duration_seconds",
		Description: "Time spent handling one chat message",
		Unit:        "s",
		Boundaries:  MessageDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &MessageMetrics{total: total, duration: duration}, nil
}

// RecordMessage counts one handled message.
func (m *MessageMetrics) RecordMessage(ctx context.Context, kind, outcome string, d time.Duration) {
	m.total.Inc(ctx, AttrKind.String(kind), AttrOutcome.String(outcome))
	m.duration.RecordDuration(ctx, d, AttrKind.String(kind))
}
