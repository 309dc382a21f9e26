package core

import "errors"

// Error messages double as the stable machine-readable codes returned to
// clients, so handlers can serialize err.Error() directly.
var (
	ErrWalletAddressRequired = errors.New("wallet_address_required")
	ErrWalletAddressInvalid  = errors.New("wallet_address_invalid")

	ErrChallengeNotFound       = errors.New("wallet_challenge_not_found")
	ErrChallengeUsed           = errors.New("wallet_challenge_used")
	ErrChallengeWalletMismatch = errors.New("wallet_challenge_wallet_mismatch")
	ErrChallengeExpired        = errors.New("wallet_challenge_expired")

	ErrSignatureInvalid  = errors.New("wallet_signature_invalid")
	ErrSignatureMismatch = errors.New("wallet_signature_mismatch")

	// ErrSessionInvalid collapses every structural, cryptographic and expiry
	// failure of a session token into one opaque outcome.
	ErrSessionInvalid = errors.New("session_invalid")

	ErrInvalidPrice = errors.New("invalid_price")

	ErrPaymentInvalidSignature = errors.New("invalid_signature")
	ErrPaymentInvalidPayload   = errors.New("invalid_payload")

	ErrFacilitatorUnreachable = errors.New("facilitator_unreachable")
	ErrSettlementFailed       = errors.New("settlement_failed")
)
