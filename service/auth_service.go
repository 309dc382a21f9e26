package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clawr-ai/gate/core"
	"github.com/clawr-ai/gate/internal/eth"
	"github.com/clawr-ai/gate/ports"
)

// AuthService implements the wallet sign-in protocol: challenge issuance,
// signature verification with single-use enforcement, and session tokens.
type AuthService struct {
	store     ports.ChallengeStore
	tokenizer ports.SessionTokenizer

	challengeTTL time.Duration
	sessionTTL   time.Duration
	now          func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(store ports.ChallengeStore, tokenizer ports.SessionTokenizer) *AuthService {
	return &AuthService{
		store:        store,
		tokenizer:    tokenizer,
		challengeTTL: core.ChallengeTTL,
		sessionTTL:   core.DefaultSessionTTL,
		now:          time.Now,
	}
}

func randomHex(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateChallenge validates and normalizes the wallet address, then issues a
// fresh challenge bound to the request origin.
func (s *AuthService) CreateChallenge(ctx context.Context, walletAddress, origin string) (*core.WalletChallenge, error) {
	normalized, err := core.NormalizeWalletAddress(walletAddress)
	if err != nil {
		return nil, err
	}

	if err := s.store.Prune(ctx, s.now()); err != nil {
		return nil, fmt.Errorf("failed to prune challenges: %w", err)
	}

	id, err := randomHex(10)
	if err != nil {
		return nil, err
	}
	nonce, err := randomHex(12)
	if err != nil {
		return nil, err
	}

	now := s.now()
	challenge := &core.WalletChallenge{
		ID:            "chl_" + id,
		WalletAddress: normalized,
		Nonce:         nonce,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.challengeTTL),
	}
	challenge.Message = core.BuildChallengeMessage(challenge, origin)

	if err := s.store.Put(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}
	return challenge, nil
}

// ConsumeChallenge loads a challenge and checks it is live and owned by the
// given wallet. It does not mark the challenge used: a failed signature
// leaves it retryable until expiry.
func (s *AuthService) ConsumeChallenge(ctx context.Context, challengeID, walletAddress string) (*core.WalletChallenge, error) {
	challenge, err := s.store.Get(ctx, strings.TrimSpace(challengeID))
	if err != nil {
		return nil, err
	}
	if challenge.Used() {
		return nil, core.ErrChallengeUsed
	}

	normalized, err := core.NormalizeWalletAddress(walletAddress)
	if err != nil {
		return nil, err
	}
	if challenge.WalletAddress != normalized {
		return nil, core.ErrChallengeWalletMismatch
	}

	if challenge.Expired(s.now()) {
		if delErr := s.store.Delete(ctx, challenge.ID); delErr != nil {
			return nil, fmt.Errorf("failed to evict expired challenge: %w", delErr)
		}
		return nil, core.ErrChallengeExpired
	}

	return challenge, nil
}

// MarkUsed is idempotent; already-used and absent challenges are no-ops.
func (s *AuthService) MarkUsed(ctx context.Context, challengeID string) error {
	_, err := s.store.MarkUsed(ctx, challengeID)
	return err
}

// Login verifies a signature over an outstanding challenge and, on success,
// consumes the challenge and issues a session token. Exactly one of several
// concurrent logins for the same challenge can succeed.
func (s *AuthService) Login(ctx context.Context, walletAddress, challengeID, signature string) (string, *core.SessionClaims, error) {
	challenge, err := s.ConsumeChallenge(ctx, challengeID, walletAddress)
	if err != nil {
		return "", nil, err
	}

	ok, err := eth.VerifyPersonalSignature(challenge.Message, strings.TrimSpace(signature), common.HexToAddress(challenge.WalletAddress))
	if err != nil {
		return "", nil, core.ErrSignatureInvalid
	}
	if !ok {
		return "", nil, core.ErrSignatureMismatch
	}

	// Single-use gate: the store lets exactly one winner through.
	won, err := s.store.MarkUsed(ctx, challenge.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to mark challenge used: %w", err)
	}
	if !won {
		return "", nil, core.ErrChallengeUsed
	}

	return s.IssueSession(challenge.WalletAddress, "")
}

// IssueSession builds session claims for a wallet and signs them. The subject
// defaults to the lowercased wallet address.
func (s *AuthService) IssueSession(walletAddress, subject string) (string, *core.SessionClaims, error) {
	if subject == "" {
		subject = strings.ToLower(walletAddress)
	}

	now := s.now()
	claims := &core.SessionClaims{
		Issuer:        core.SessionIssuer,
		Audience:      core.SessionAudience,
		Subject:       subject,
		WalletAddress: walletAddress,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.sessionTTL),
	}

	token, err := s.tokenizer.SessionToToken(claims)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return token, claims, nil
}

// Session verifies a session token and returns its claims, or
// core.ErrSessionInvalid for any kind of failure.
func (s *AuthService) Session(token string) (*core.SessionClaims, error) {
	return s.tokenizer.TokenToSession(token)
}

// SessionTTL is the lifetime applied to newly issued sessions.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}
