package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clawr-ai/gate/core"
)

func event(requestID string, eventType core.TelemetryEventType) core.TelemetryEvent {
	return core.TelemetryEvent{
		RequestID: requestID,
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func TestLedgerBounded(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(5)

	for i := 0; i < 20; i++ {
		ledger.Emit(ctx, event(fmt.Sprintf("req-%d", i), core.EventVerifyAttempt))
	}

	require.Equal(t, 5, ledger.Len())

	recent := ledger.Recent(5)
	require.Len(t, recent, 5)
	require.Equal(t, "req-15", recent[0].RequestID)
	require.Equal(t, "req-19", recent[4].RequestID)
}

func TestLedgerByRequestCorrelation(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(100)

	ledger.Emit(ctx, event("req-a", core.EventChallengeIssued))
	ledger.Emit(ctx, event("req-b", core.EventVerifyAttempt))
	ledger.Emit(ctx, event("req-a", core.EventVerifyAttempt))
	ledger.Emit(ctx, event("req-a", core.EventPaymentSettled))

	got := ledger.ByRequest("req-a")
	require.Len(t, got, 3)
	require.Equal(t, core.EventChallengeIssued, got[0].EventType)
	require.Equal(t, core.EventVerifyAttempt, got[1].EventType)
	require.Equal(t, core.EventPaymentSettled, got[2].EventType)

	require.Empty(t, ledger.ByRequest("req-missing"))
}

func TestLedgerRecentClamped(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(10)

	ledger.Emit(ctx, event("req-a", core.EventChallengeIssued))
	ledger.Emit(ctx, event("req-b", core.EventChallengeIssued))

	require.Len(t, ledger.Recent(50), 2)
	require.Len(t, ledger.Recent(1), 1)
	require.Equal(t, "req-b", ledger.Recent(1)[0].RequestID)
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, DefaultMaxEvents, ClampLimit(0, DefaultMaxEvents))
	require.Equal(t, DefaultMaxEvents, ClampLimit(-3, DefaultMaxEvents))
	require.Equal(t, 7, ClampLimit(7, DefaultMaxEvents))
	require.Equal(t, MaxEventsCeiling, ClampLimit(999999, DefaultMaxEvents))
}
