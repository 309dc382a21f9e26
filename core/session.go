package core

import "time"

const (
	// SessionIssuer is the fixed iss claim on every session token.
	SessionIssuer = "clawr.ai"

	// SessionAudience is the fixed aud claim on every session token.
	SessionAudience = "clawr_dashboard"

	// DefaultSessionTTL is how long an issued session stays valid.
	DefaultSessionTTL = 7 * 24 * time.Hour

	// DefaultSessionCookieName carries the signed session token.
	DefaultSessionCookieName = "clawr_session"
)

// SessionClaims is the identity carried by a signed session token.
// Claims are immutable once issued; validity is re-derived from the token
// signature and expiry on every request, with no server-side lookup.
type SessionClaims struct {
	Issuer        string
	Audience      string
	Subject       string // lowercased wallet address, or a custom subject
	WalletAddress string // checksummed wallet address
	IssuedAt      time.Time
	ExpiresAt     time.Time
}
