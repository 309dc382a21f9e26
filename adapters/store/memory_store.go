package store

import (
	"context"
	"sync"
	"time"

	"github.com/clawr-ai/gate/core"
	"github.com/clawr-ai/gate/ports"
)

// MemoryStore is an in-memory implementation of the ChallengeStore interface.
// Suitable for single-process deployments and tests.
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[string]*core.WalletChallenge
	now        func() time.Time
}

// NewMemoryStore creates a new in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]*core.WalletChallenge),
		now:        time.Now,
	}
}

// Put stores a challenge, pruning stale entries first.
func (s *MemoryStore) Put(ctx context.Context, challenge *core.WalletChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	stored := *challenge
	s.challenges[challenge.ID] = &stored
	return nil
}

// Get returns a copy of the stored challenge.
func (s *MemoryStore) Get(ctx context.Context, challengeID string) (*core.WalletChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	challenge, ok := s.challenges[challengeID]
	if !ok {
		return nil, core.ErrChallengeNotFound
	}

	out := *challenge
	return &out, nil
}

// MarkUsed performs the single-use transition. Exactly one concurrent caller
// observes true for a given id.
func (s *MemoryStore) MarkUsed(ctx context.Context, challengeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[challengeID]
	if !ok || challenge.UsedAt != nil {
		return false, nil
	}

	usedAt := s.now()
	challenge.UsedAt = &usedAt
	return true, nil
}

// Delete evicts a challenge.
func (s *MemoryStore) Delete(ctx context.Context, challengeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, challengeID)
	return nil
}

// Prune removes expired and consumed entries.
func (s *MemoryStore) Prune(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	for id, challenge := range s.challenges {
		if challenge.Used() || challenge.Expired(now) {
			delete(s.challenges, id)
		}
	}
}

var _ ports.ChallengeStore = (*MemoryStore)(nil)
