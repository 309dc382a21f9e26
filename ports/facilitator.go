package ports

import (
	"context"

	"github.com/clawr-ai/gate/core"
)

// Facilitator verifies and settles payment proofs against external
// facilitator services.
type Facilitator interface {
	// Verify walks the configured facilitator endpoints in priority order
	// and returns the aggregate result. Unreachable endpoints trigger
	// failover; a rejection from a reachable endpoint is authoritative and
	// ends the walk.
	Verify(ctx context.Context, proof *core.PaymentProof, requirement *core.PaymentRequirement) (*core.VerificationResult, error)

	// Settle executes the payment on the facilitator that verified it.
	Settle(ctx context.Context, proof *core.PaymentProof, facilitatorURL string) (*core.SettlementReceipt, error)
}
