package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/clawr-ai/gate/core"
	"github.com/clawr-ai/gate/ports"
)

// TelemetryTopic is the stream telemetry events are published to.
const TelemetryTopic = "clawr.payments.telemetry"

// WatermillSink publishes telemetry events to a Watermill stream so other
// instances and consumers can observe payment outcomes. Publish failures are
// logged, never surfaced to the request path.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

// NewWatermillSink creates a telemetry sink over a Watermill publisher.
func NewWatermillSink(publisher message.Publisher, logger *slog.Logger) *WatermillSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatermillSink{
		publisher: publisher,
		topic:     TelemetryTopic,
		logger:    logger,
	}
}

// Emit publishes the event as a JSON message keyed by request id.
func (s *WatermillSink) Emit(ctx context.Context, event core.TelemetryEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal telemetry event", "error", err)
		return
	}

	msg := message.NewMessage(event.RequestID, payload)
	if err := s.publisher.Publish(s.topic, msg); err != nil {
		s.logger.Warn("failed to publish telemetry event",
			"topic", s.topic, "eventType", string(event.EventType), "error", err)
	}
}

// FanoutSink forwards each event to every configured sink in order.
type FanoutSink struct {
	sinks []ports.TelemetrySink
}

// NewFanoutSink combines sinks into one. Nil entries are skipped.
func NewFanoutSink(sinks ...ports.TelemetrySink) *FanoutSink {
	out := &FanoutSink{}
	for _, sink := range sinks {
		if sink != nil {
			out.sinks = append(out.sinks, sink)
		}
	}
	return out
}

// Emit forwards the event to all sinks.
func (s *FanoutSink) Emit(ctx context.Context, event core.TelemetryEvent) {
	for _, sink := range s.sinks {
		sink.Emit(ctx, event)
	}
}

var (
	_ ports.TelemetrySink = (*WatermillSink)(nil)
	_ ports.TelemetrySink = (*FanoutSink)(nil)
)
