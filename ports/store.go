package ports

import (
	"context"
	"time"

	"github.com/clawr-ai/gate/core"
)

// ChallengeStore owns outstanding wallet challenges. Implementations must be
// safe for concurrent use; MarkUsed is the single-use gate and must let
// exactly one caller win for a given challenge id.
type ChallengeStore interface {
	// Put stores a freshly issued challenge.
	Put(ctx context.Context, challenge *core.WalletChallenge) error

	// Get returns the challenge by id, or core.ErrChallengeNotFound.
	Get(ctx context.Context, challengeID string) (*core.WalletChallenge, error)

	// MarkUsed stamps the challenge as consumed. It returns true if this
	// call performed the transition, false if the challenge was already
	// used or absent.
	MarkUsed(ctx context.Context, challengeID string) (bool, error)

	// Delete evicts a challenge.
	Delete(ctx context.Context, challengeID string) error

	// Prune removes expired and consumed entries.
	Prune(ctx context.Context, now time.Time) error

	// Close releases any backing resources.
	Close() error
}
