package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChallengeTTL is how long a wallet challenge stays signable.
const ChallengeTTL = 5 * time.Minute

// WalletChallenge is a short-lived, single-use message a wallet must sign
// to prove control of an address.
type WalletChallenge struct {
	ID            string     // Unique identifier, "chl_" prefixed
	WalletAddress string     // EIP-55 checksummed address
	Nonce         string     // Random hex nonce embedded in the message
	Message       string     // Human-readable text the wallet signs
	IssuedAt      time.Time  // When the challenge was created
	ExpiresAt     time.Time  // IssuedAt + ChallengeTTL
	UsedAt        *time.Time // Set exactly once, on successful verification
}

// Used reports whether the challenge has already been consumed.
func (c *WalletChallenge) Used() bool {
	return c.UsedAt != nil
}

// Expired reports whether the challenge is past its TTL at the given instant.
func (c *WalletChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// NormalizeWalletAddress validates a wallet address and returns its EIP-55
// checksummed form. Empty input maps to ErrWalletAddressRequired, anything
// that is not a hex address to ErrWalletAddressInvalid.
func NormalizeWalletAddress(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", ErrWalletAddressRequired
	}
	if !common.IsHexAddress(value) {
		return "", ErrWalletAddressInvalid
	}
	return common.HexToAddress(value).Hex(), nil
}

// BuildChallengeMessage renders the deterministic sign-in text for a challenge.
// Every field of the challenge plus the request origin is embedded, so a
// signature binds the wallet to this exact challenge at this exact site.
func BuildChallengeMessage(c *WalletChallenge, origin string) string {
	return strings.Join([]string{
		"Sign in to clawr.ai",
		"",
		"This request will not trigger a blockchain transaction.",
		fmt.Sprintf("Wallet: %s", c.WalletAddress),
		fmt.Sprintf("Challenge: %s", c.ID),
		fmt.Sprintf("Nonce: %s", c.Nonce),
		fmt.Sprintf("Issued At: %s", c.IssuedAt.UTC().Format(time.RFC3339)),
		fmt.Sprintf("Expires At: %s", c.ExpiresAt.UTC().Format(time.RFC3339)),
		fmt.Sprintf("Origin: %s", origin),
	}, "\n")
}
