package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/clawr-ai/gate/adapters/store"
	"github.com/clawr-ai/gate/adapters/tokenizer"
	"github.com/clawr-ai/gate/core"
	"github.com/clawr-ai/gate/internal/eth"
)

const testOrigin = "https://clawr.ai"

func newAuthService() *AuthService {
	return NewAuthService(store.NewMemoryStore(), tokenizer.NewJWTTokenizer([]byte("test-secret")))
}

type testWallet struct {
	address string
	sign    func(message string) string
}

func newTestWallet(t *testing.T) *testWallet {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &testWallet{
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		sign: func(message string) string {
			sig, err := crypto.Sign(eth.TextHash(message), key)
			require.NoError(t, err)
			return hexutil.Encode(sig)
		},
	}
}

func TestCreateChallengeValidation(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()

	_, err := svc.CreateChallenge(ctx, "", testOrigin)
	require.ErrorIs(t, err, core.ErrWalletAddressRequired)

	_, err = svc.CreateChallenge(ctx, "not-an-address", testOrigin)
	require.ErrorIs(t, err, core.ErrWalletAddressInvalid)
}

func TestCreateChallengeNormalizesAndBindsOrigin(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()
	wallet := newTestWallet(t)

	challenge, err := svc.CreateChallenge(ctx, strings.ToLower(wallet.address), testOrigin)
	require.NoError(t, err)
	require.Equal(t, wallet.address, challenge.WalletAddress)
	require.True(t, strings.HasPrefix(challenge.ID, "chl_"))
	require.NotEmpty(t, challenge.Nonce)
	require.Contains(t, challenge.Message, "Sign in to clawr.ai")
	require.Contains(t, challenge.Message, "Wallet: "+wallet.address)
	require.Contains(t, challenge.Message, "Challenge: "+challenge.ID)
	require.Contains(t, challenge.Message, "Origin: "+testOrigin)
	require.Equal(t, core.ChallengeTTL, challenge.ExpiresAt.Sub(challenge.IssuedAt))
}

func TestConsumeChallengeWalletMismatch(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()
	wallet := newTestWallet(t)
	other := newTestWallet(t)

	challenge, err := svc.CreateChallenge(ctx, wallet.address, testOrigin)
	require.NoError(t, err)

	_, err = svc.ConsumeChallenge(ctx, challenge.ID, other.address)
	require.ErrorIs(t, err, core.ErrChallengeWalletMismatch)
}

func TestConsumeChallengeNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()
	wallet := newTestWallet(t)

	_, err := svc.ConsumeChallenge(ctx, "chl_missing", wallet.address)
	require.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestConsumeChallengeExpired(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()
	wallet := newTestWallet(t)

	past := time.Now().Add(-2 * core.ChallengeTTL)
	svc.now = func() time.Time { return past }
	challenge, err := svc.CreateChallenge(ctx, wallet.address, testOrigin)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ConsumeChallenge(ctx, challenge.ID, wallet.address)
	// Expired entries may already be swept by the store's prune-on-access.
	require.True(t, err == core.ErrChallengeExpired || err == core.ErrChallengeNotFound)

	// Either way the challenge is gone.
	_, err = svc.ConsumeChallenge(ctx, challenge.ID, wallet.address)
	require.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestLoginFullFlow(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()
	wallet := newTestWallet(t)

	challenge, err := svc.CreateChallenge(ctx, wallet.address, testOrigin)
	require.NoError(t, err)

	token, claims, err := svc.Login(ctx, wallet.address, challenge.ID, wallet.sign(challenge.Message))
	require.NoError(t, err)
	require.Equal(t, wallet.address, claims.WalletAddress)
	require.Equal(t, strings.ToLower(wallet.address), claims.Subject)

	verified, err := svc.Session(token)
	require.NoError(t, err)
	require.Equal(t, wallet.address, verified.WalletAddress)
}

func TestLoginBadSignatureLeavesChallengeRetryable(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()
	wallet := newTestWallet(t)
	stranger := newTestWallet(t)

	challenge, err := svc.CreateChallenge(ctx, wallet.address, testOrigin)
	require.NoError(t, err)

	// A signature from the wrong key does not consume the challenge.
	_, _, err = svc.Login(ctx, wallet.address, challenge.ID, stranger.sign(challenge.Message))
	require.ErrorIs(t, err, core.ErrSignatureMismatch)

	_, _, err = svc.Login(ctx, wallet.address, challenge.ID, "0xnothex")
	require.ErrorIs(t, err, core.ErrSignatureInvalid)

	// The correct signature still works afterwards.
	_, _, err = svc.Login(ctx, wallet.address, challenge.ID, wallet.sign(challenge.Message))
	require.NoError(t, err)
}

func TestLoginSingleUse(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()
	wallet := newTestWallet(t)

	challenge, err := svc.CreateChallenge(ctx, wallet.address, testOrigin)
	require.NoError(t, err)
	signature := wallet.sign(challenge.Message)

	_, _, err = svc.Login(ctx, wallet.address, challenge.ID, signature)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, wallet.address, challenge.ID, signature)
	require.True(t, err == core.ErrChallengeUsed || err == core.ErrChallengeNotFound)
}

func TestLoginConcurrentExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()
	wallet := newTestWallet(t)

	challenge, err := svc.CreateChallenge(ctx, wallet.address, testOrigin)
	require.NoError(t, err)
	signature := wallet.sign(challenge.Message)

	const callers = 8
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Login(ctx, wallet.address, challenge.ID, signature)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			require.True(t, err == core.ErrChallengeUsed || err == core.ErrChallengeNotFound)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
}

func TestMarkUsedIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()
	wallet := newTestWallet(t)

	challenge, err := svc.CreateChallenge(ctx, wallet.address, testOrigin)
	require.NoError(t, err)

	require.NoError(t, svc.MarkUsed(ctx, challenge.ID))
	require.NoError(t, svc.MarkUsed(ctx, challenge.ID))
	require.NoError(t, svc.MarkUsed(ctx, "chl_missing"))
}
