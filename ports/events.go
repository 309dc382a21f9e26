package ports

import (
	"context"

	"github.com/clawr-ai/gate/core"
)

// TelemetrySink receives protocol events as they happen. Implementations
// must not block request handling on slow consumers.
type TelemetrySink interface {
	Emit(ctx context.Context, event core.TelemetryEvent)
}

// TelemetryLedger is an append-only, bounded record of protocol events,
// queryable by request id for correlation.
type TelemetryLedger interface {
	TelemetrySink

	// ByRequest returns all retained events for one request, in append order.
	ByRequest(requestID string) []core.TelemetryEvent

	// Recent returns up to limit of the most recent events, oldest first.
	Recent(limit int) []core.TelemetryEvent

	// Len is the number of currently retained events.
	Len() int
}
