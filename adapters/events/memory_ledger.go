package events

import (
	"context"
	"sync"

	"github.com/clawr-ai/gate/core"
	"github.com/clawr-ai/gate/ports"
)

const (
	// DefaultMaxEvents bounds the ledger when no explicit size is given.
	DefaultMaxEvents = 200

	// MaxEventsCeiling is the hard upper bound on ledger size.
	MaxEventsCeiling = 2000
)

// MemoryLedger is a bounded, append-only in-memory telemetry ledger. When the
// bound is reached the oldest events are discarded.
type MemoryLedger struct {
	mu     sync.Mutex
	events []core.TelemetryEvent
	max    int
}

// ClampLimit normalizes a requested event count into [1, MaxEventsCeiling],
// substituting fallback for non-positive values.
func ClampLimit(limit, fallback int) int {
	if limit < 1 {
		return fallback
	}
	if limit > MaxEventsCeiling {
		return MaxEventsCeiling
	}
	return limit
}

// NewMemoryLedger creates a ledger retaining at most maxEvents entries.
func NewMemoryLedger(maxEvents int) *MemoryLedger {
	return &MemoryLedger{max: ClampLimit(maxEvents, DefaultMaxEvents)}
}

// Emit appends an event, evicting the oldest entries past the bound.
func (l *MemoryLedger) Emit(ctx context.Context, event core.TelemetryEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
	if len(l.events) > l.max {
		l.events = l.events[len(l.events)-l.max:]
	}
}

// ByRequest returns all retained events for one request id, in append order.
func (l *MemoryLedger) ByRequest(requestID string) []core.TelemetryEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []core.TelemetryEvent
	for _, event := range l.events {
		if event.RequestID == requestID {
			out = append(out, event)
		}
	}
	return out
}

// Recent returns up to limit of the newest events, oldest first.
func (l *MemoryLedger) Recent(limit int) []core.TelemetryEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit < 1 || limit > len(l.events) {
		limit = len(l.events)
	}

	out := make([]core.TelemetryEvent, limit)
	copy(out, l.events[len(l.events)-limit:])
	return out
}

// Len is the number of currently retained events.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

var _ ports.TelemetryLedger = (*MemoryLedger)(nil)
