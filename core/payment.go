package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// X402Version is the protocol version advertised in 402 challenges.
	X402Version = 2

	// SchemeExact is the only payment scheme currently issued.
	SchemeExact = "exact"

	// NetworkBaseSepolia is the CAIP-2 test network identifier.
	NetworkBaseSepolia = "eip155:84532"

	// NetworkBaseMainnet is the CAIP-2 production network identifier.
	NetworkBaseMainnet = "eip155:8453"

	// DefaultAsset is the settlement asset symbol.
	DefaultAsset = "USDC"

	// DefaultAssetDecimals is the base-unit decimal count for USDC.
	DefaultAssetDecimals = 6
)

// PaymentRequirement describes one acceptable way to pay for a resource.
// It is an element of the "accepts" array in the 402 response body.
type PaymentRequirement struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxAmountRequired string `json:"maxAmountRequired"` // integer base units
	Resource          string `json:"resource"`
	Description       string `json:"description,omitempty"`
	MimeType          string `json:"mimeType,omitempty"`
}

// PaymentChallenge is the 402 response body. The same JSON is mirrored into
// the payment-required response header so clients can parse either.
type PaymentChallenge struct {
	X402Version int                  `json:"x402Version"`
	Error       string               `json:"error,omitempty"`
	Accepts     []PaymentRequirement `json:"accepts"`
}

// PaymentProof is the client-supplied payment payload decoded from the
// payment header. It must bind a payer, an amount, a recipient and the
// resource being bought to the requirement it answers.
type PaymentProof struct {
	PaymentID string `json:"paymentId"`
	Scheme    string `json:"scheme"`
	Network   string `json:"network"`
	Resource  string `json:"resource"`
	PayTo     string `json:"payTo"`
	Amount    string `json:"amount"`
	Payer     string `json:"payer"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// Complete reports whether the decoded proof carries every field the
// facilitator needs. An incomplete proof is rejected without a network call.
func (p *PaymentProof) Complete() bool {
	return p.Signature != "" && p.Payer != "" && p.Amount != "" && p.PayTo != "" && p.Resource != ""
}

// AttemptOutcome classifies a single facilitator contact.
type AttemptOutcome string

const (
	AttemptOK          AttemptOutcome = "ok"
	AttemptUnreachable AttemptOutcome = "unreachable"
	AttemptRejected    AttemptOutcome = "rejected"
)

// VerificationAttempt records one facilitator contact during verification.
type VerificationAttempt struct {
	FacilitatorURL string         `json:"facilitatorUrl"`
	Outcome        AttemptOutcome `json:"outcome"`
	Latency        time.Duration  `json:"latencyNs"`
	ErrorDetail    string         `json:"errorDetail,omitempty"`
}

// VerificationResult is the outcome of walking the ordered facilitator list.
// Attempts preserve contact order; FacilitatorURL names the endpoint that
// verified the proof and is the only endpoint settlement may use.
type VerificationResult struct {
	Verified       bool
	FacilitatorURL string
	Reason         string // rejection reason or last unreachable detail
	Attempts       []VerificationAttempt
}

// Unreachable reports whether no configured facilitator could be contacted.
func (r *VerificationResult) Unreachable() bool {
	if r.Verified {
		return false
	}
	for _, a := range r.Attempts {
		if a.Outcome == AttemptRejected {
			return false
		}
	}
	return true
}

// SettlementReceipt is the facilitator's record of a settled payment.
type SettlementReceipt struct {
	SettlementID   string `json:"settlementId"`
	TxHash         string `json:"txHash"`
	Status         string `json:"status"`
	Amount         string `json:"amount"`
	PayTo          string `json:"payTo"`
	SettledAt      int64  `json:"settledAt"`
	FacilitatorURL string `json:"facilitatorUrl,omitempty"`
}

// PriceToBaseUnits converts a decimal price string (e.g. "0.001") to an exact
// integer amount in the asset's smallest unit. Conversion is pure decimal
// arithmetic; fractional digits beyond the asset's precision are an error
// rather than silently rounded.
func PriceToBaseUnits(price string, assetDecimals int32) (string, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return "", ErrInvalidPrice
	}
	if d.IsNegative() {
		return "", ErrInvalidPrice
	}
	scaled := d.Shift(assetDecimals)
	if !scaled.IsInteger() {
		return "", ErrInvalidPrice
	}
	return scaled.BigInt().String(), nil
}
