package tokenizer

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clawr-ai/gate/core"
	"github.com/clawr-ai/gate/ports"
)

// JWTTokenizer implements the SessionTokenizer interface with HS256 JWTs:
// base64url(header).base64url(claims).base64url(hmac-sha256). The library
// compares signatures in constant time.
//
// Verification deliberately collapses every failure mode (bad structure, bad
// JSON, wrong algorithm, bad signature, expiry, issuer/audience mismatch)
// into core.ErrSessionInvalid so callers cannot distinguish tampering from
// expiry.
type JWTTokenizer struct {
	secret []byte
}

// NewJWTTokenizer creates a tokenizer signing with the given HMAC secret.
func NewJWTTokenizer(secret []byte) ports.SessionTokenizer {
	return &JWTTokenizer{secret: secret}
}

// SessionToToken signs the claims into a compact token.
func (j *JWTTokenizer) SessionToToken(claims *core.SessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    claims.Issuer,
			Audience:  jwt.ClaimStrings{claims.Audience},
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
		WalletAddress: claims.WalletAddress,
	})

	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// TokenToSession verifies a token and reconstructs its claims.
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithIssuer(core.SessionIssuer),
		jwt.WithAudience(core.SessionAudience),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return nil, core.ErrSessionInvalid
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || claims.WalletAddress == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, core.ErrSessionInvalid
	}

	audience := ""
	if len(claims.Audience) > 0 {
		audience = claims.Audience[0]
	}

	return &core.SessionClaims{
		Issuer:        claims.Issuer,
		Audience:      audience,
		Subject:       claims.Subject,
		WalletAddress: claims.WalletAddress,
		IssuedAt:      claims.IssuedAt.Time,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}
