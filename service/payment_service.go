package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/clawr-ai/gate/core"
	"github.com/clawr-ai/gate/ports"
)

// RoutePolicy is the price policy for one payment-gated route.
type RoutePolicy struct {
	Resource    string // resource path advertised in the challenge
	Price       string // decimal price string, e.g. "0.001"
	Description string
	MimeType    string
}

// ChallengeBuilder constructs 402 payment requirements from route policies.
type ChallengeBuilder struct {
	network       string
	payTo         string
	asset         string
	assetDecimals int32
}

// NewChallengeBuilder creates a builder for the given network and recipient.
func NewChallengeBuilder(network, payTo string) *ChallengeBuilder {
	return &ChallengeBuilder{
		network:       network,
		payTo:         payTo,
		asset:         core.DefaultAsset,
		assetDecimals: core.DefaultAssetDecimals,
	}
}

// WithAsset overrides the settlement asset and its decimal count.
func (b *ChallengeBuilder) WithAsset(asset string, decimals int32) *ChallengeBuilder {
	b.asset = asset
	b.assetDecimals = decimals
	return b
}

// Requirement converts a route policy into a payment requirement. The price
// is converted to exact integer base units.
func (b *ChallengeBuilder) Requirement(policy RoutePolicy) (*core.PaymentRequirement, error) {
	amount, err := core.PriceToBaseUnits(policy.Price, b.assetDecimals)
	if err != nil {
		return nil, err
	}

	return &core.PaymentRequirement{
		Scheme:            core.SchemeExact,
		Network:           b.network,
		Asset:             b.asset,
		PayTo:             b.payTo,
		MaxAmountRequired: amount,
		Resource:          policy.Resource,
		Description:       policy.Description,
		MimeType:          policy.MimeType,
	}, nil
}

// Challenge wraps a requirement into the 402 response body.
func (b *ChallengeBuilder) Challenge(requirement *core.PaymentRequirement, errCode string) *core.PaymentChallenge {
	return &core.PaymentChallenge{
		X402Version: core.X402Version,
		Error:       errCode,
		Accepts:     []core.PaymentRequirement{*requirement},
	}
}

// Decision is the gateway's verdict on one request.
type Decision struct {
	Allowed   bool
	Status    int                     // HTTP status when not allowed
	Challenge *core.PaymentChallenge  // 402 body when not allowed
	Receipt   *core.SettlementReceipt // set when allowed
}

// PaymentGateway orchestrates the x402 handshake for a single request:
// inspect the payment header, issue a challenge or verify and settle the
// proof, and leave a telemetry trail correlated by request id.
type PaymentGateway struct {
	builder     *ChallengeBuilder
	facilitator ports.Facilitator
	sink        ports.TelemetrySink
	logger      *slog.Logger
	now         func() time.Time
}

// NewPaymentGateway creates a gateway over a challenge builder, a
// facilitator client and a telemetry sink.
func NewPaymentGateway(builder *ChallengeBuilder, facilitator ports.Facilitator, sink ports.TelemetrySink, logger *slog.Logger) *PaymentGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentGateway{
		builder:     builder,
		facilitator: facilitator,
		sink:        sink,
		logger:      logger,
		now:         time.Now,
	}
}

// Builder exposes the gateway's challenge builder.
func (g *PaymentGateway) Builder() *ChallengeBuilder {
	return g.builder
}

// DecodeProof decodes a payment header value. A value that does not decode
// as base64url(JSON) maps to core.ErrPaymentInvalidSignature; one that
// decodes but lacks required fields maps to core.ErrPaymentInvalidPayload.
func DecodeProof(headerValue string) (*core.PaymentProof, error) {
	raw, err := base64.RawURLEncoding.DecodeString(headerValue)
	if err != nil {
		if raw, err = base64.StdEncoding.DecodeString(headerValue); err != nil {
			return nil, core.ErrPaymentInvalidSignature
		}
	}

	var proof core.PaymentProof
	if err := json.Unmarshal(raw, &proof); err != nil {
		return nil, core.ErrPaymentInvalidSignature
	}
	if !proof.Complete() {
		return nil, core.ErrPaymentInvalidPayload
	}
	return &proof, nil
}

func (g *PaymentGateway) emit(ctx context.Context, requestID string, eventType core.TelemetryEventType, payload map[string]interface{}) {
	if g.sink == nil {
		return
	}
	g.sink.Emit(ctx, core.TelemetryEvent{
		RequestID: requestID,
		EventType: eventType,
		Timestamp: g.now(),
		Payload:   payload,
	})
}

// Process runs the payment state machine for one request. headerValue is the
// raw payment header ("" when absent).
func (g *PaymentGateway) Process(ctx context.Context, requestID string, policy RoutePolicy, headerValue string) Decision {
	requirement, err := g.builder.Requirement(policy)
	if err != nil {
		// A route priced with an unconvertible amount is a configuration
		// defect surfaced at startup; fail closed if it slips through.
		g.logger.Error("invalid route price", "resource", policy.Resource, "error", err)
		return Decision{Status: http.StatusInternalServerError}
	}

	if headerValue == "" {
		g.emit(ctx, requestID, core.EventChallengeIssued, map[string]interface{}{
			"resource": requirement.Resource,
			"network":  requirement.Network,
			"amount":   requirement.MaxAmountRequired,
		})
		return Decision{
			Status:    http.StatusPaymentRequired,
			Challenge: g.builder.Challenge(requirement, "payment_required"),
		}
	}

	proof, err := DecodeProof(headerValue)
	if err != nil {
		reason := err.Error()
		g.emit(ctx, requestID, core.EventPaymentRejected, map[string]interface{}{
			"resource": requirement.Resource,
			"reason":   reason,
		})
		g.logger.Warn("malformed payment proof", "requestId", requestID, "reason", reason)
		return Decision{
			Status:    http.StatusPaymentRequired,
			Challenge: g.builder.Challenge(requirement, reason),
		}
	}

	result, err := g.facilitator.Verify(ctx, proof, requirement)
	if err != nil {
		g.emit(ctx, requestID, core.EventPaymentRejected, map[string]interface{}{
			"resource": requirement.Resource,
			"reason":   core.ErrFacilitatorUnreachable.Error(),
		})
		g.logger.Error("facilitator verify failed", "requestId", requestID, "error", err)
		return Decision{
			Status:    http.StatusBadGateway,
			Challenge: g.builder.Challenge(requirement, core.ErrFacilitatorUnreachable.Error()),
		}
	}

	for _, attempt := range result.Attempts {
		g.emit(ctx, requestID, core.EventVerifyAttempt, map[string]interface{}{
			"facilitatorUrl": attempt.FacilitatorURL,
			"outcome":        string(attempt.Outcome),
			"latencyMs":      attempt.Latency.Milliseconds(),
			"errorDetail":    attempt.ErrorDetail,
		})
	}

	if !result.Verified {
		reason := result.Reason
		status := http.StatusPaymentRequired
		if result.Unreachable() {
			// Every facilitator was unreachable: the payment is
			// unverifiable and the request fails closed.
			reason = core.ErrFacilitatorUnreachable.Error()
			status = http.StatusBadGateway
		}
		g.emit(ctx, requestID, core.EventPaymentRejected, map[string]interface{}{
			"resource": requirement.Resource,
			"reason":   reason,
			"attempts": len(result.Attempts),
		})
		g.logger.Warn("payment rejected", "requestId", requestID, "reason", reason)
		return Decision{
			Status:    status,
			Challenge: g.builder.Challenge(requirement, reason),
		}
	}

	receipt, err := g.facilitator.Settle(ctx, proof, result.FacilitatorURL)
	if err != nil {
		g.emit(ctx, requestID, core.EventPaymentRejected, map[string]interface{}{
			"resource":       requirement.Resource,
			"reason":         core.ErrSettlementFailed.Error(),
			"facilitatorUrl": result.FacilitatorURL,
		})
		g.logger.Error("settlement failed", "requestId", requestID, "error", err)
		return Decision{
			Status:    http.StatusBadGateway,
			Challenge: g.builder.Challenge(requirement, core.ErrSettlementFailed.Error()),
		}
	}

	g.emit(ctx, requestID, core.EventPaymentSettled, map[string]interface{}{
		"resource":       requirement.Resource,
		"facilitatorUrl": result.FacilitatorURL,
		"settlementId":   receipt.SettlementID,
		"txHash":         receipt.TxHash,
		"amount":         receipt.Amount,
	})
	g.logger.Info("payment settled", "requestId", requestID,
		"resource", requirement.Resource, "settlementId", receipt.SettlementID)

	return Decision{Allowed: true, Receipt: receipt}
}

// EncodeReceipt renders a settlement receipt for the payment response header.
func EncodeReceipt(receipt *core.SettlementReceipt) (string, error) {
	raw, err := json.Marshal(receipt)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
