package ports

import "github.com/clawr-ai/gate/core"

// SessionTokenizer converts between session claims and compact signed tokens.
// TokenToSession must never panic on malformed input; every cryptographic or
// structural failure collapses to core.ErrSessionInvalid.
type SessionTokenizer interface {
	SessionToToken(claims *core.SessionClaims) (string, error)
	TokenToSession(token string) (*core.SessionClaims, error)
}
