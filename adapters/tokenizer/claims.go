package tokenizer

import "github.com/golang-jwt/jwt/v5"

// sessionClaims is the wire shape of a session token's claims segment.
type sessionClaims struct {
	jwt.RegisteredClaims
	WalletAddress string `json:"walletAddress"`
}
