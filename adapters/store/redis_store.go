package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clawr-ai/gate/core"
	"github.com/clawr-ai/gate/ports"
)

const (
	challengeKeyPrefix = "clawr:challenge:"
	usedKeyPrefix      = "clawr:challenge:used:"
)

// RedisStore is a Redis-backed ChallengeStore for multi-instance deployments.
// Expiry pruning is delegated to Redis key TTLs; the single-use transition is
// a SETNX on a companion key, so exactly one instance can win it.
type RedisStore struct {
	client *redis.Client
}

type storedChallenge struct {
	ID            string `json:"id"`
	WalletAddress string `json:"walletAddress"`
	Nonce         string `json:"nonce"`
	Message       string `json:"message"`
	IssuedAt      int64  `json:"issuedAt"`
	ExpiresAt     int64  `json:"expiresAt"`
}

// NewRedisStore creates a new Redis challenge store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Put stores a challenge with a TTL matching its expiry.
func (s *RedisStore) Put(ctx context.Context, challenge *core.WalletChallenge) error {
	payload, err := json.Marshal(storedChallenge{
		ID:            challenge.ID,
		WalletAddress: challenge.WalletAddress,
		Nonce:         challenge.Nonce,
		Message:       challenge.Message,
		IssuedAt:      challenge.IssuedAt.Unix(),
		ExpiresAt:     challenge.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}

	ttl := time.Until(challenge.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, challengeKeyPrefix+challenge.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// Get returns the challenge by id. Expired entries have already been dropped
// by Redis; a consumed entry is reported via its UsedAt field.
func (s *RedisStore) Get(ctx context.Context, challengeID string) (*core.WalletChallenge, error) {
	raw, err := s.client.Get(ctx, challengeKeyPrefix+challengeID).Result()
	if err == redis.Nil {
		return nil, core.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}

	var stored storedChallenge
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}

	challenge := &core.WalletChallenge{
		ID:            stored.ID,
		WalletAddress: stored.WalletAddress,
		Nonce:         stored.Nonce,
		Message:       stored.Message,
		IssuedAt:      time.Unix(stored.IssuedAt, 0),
		ExpiresAt:     time.Unix(stored.ExpiresAt, 0),
	}

	usedAtRaw, err := s.client.Get(ctx, usedKeyPrefix+challengeID).Result()
	if err == nil {
		var usedAt time.Time
		if ts, parseErr := time.Parse(time.RFC3339, usedAtRaw); parseErr == nil {
			usedAt = ts
		}
		challenge.UsedAt = &usedAt
	} else if err != redis.Nil {
		return nil, fmt.Errorf("failed to check challenge use: %w", err)
	}

	return challenge, nil
}

// MarkUsed claims the single-use marker with SETNX.
func (s *RedisStore) MarkUsed(ctx context.Context, challengeID string) (bool, error) {
	exists, err := s.client.Exists(ctx, challengeKeyPrefix+challengeID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check challenge: %w", err)
	}
	if exists == 0 {
		return false, nil
	}

	ttl, err := s.client.TTL(ctx, challengeKeyPrefix+challengeID).Result()
	if err != nil || ttl <= 0 {
		ttl = core.ChallengeTTL
	}

	won, err := s.client.SetNX(ctx, usedKeyPrefix+challengeID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark challenge used: %w", err)
	}
	return won, nil
}

// Delete evicts a challenge and its use marker.
func (s *RedisStore) Delete(ctx context.Context, challengeID string) error {
	if err := s.client.Del(ctx, challengeKeyPrefix+challengeID, usedKeyPrefix+challengeID).Err(); err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	return nil
}

// Prune is a no-op: Redis TTLs evict expired and consumed entries.
func (s *RedisStore) Prune(ctx context.Context, now time.Time) error {
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ ports.ChallengeStore = (*RedisStore)(nil)
