// Package facilitator implements the HTTP client side of the facilitator
// verify/settle API, with ordered failover across configured endpoints.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clawr-ai/gate/core"
	"github.com/clawr-ai/gate/ports"
)

// DefaultAttemptTimeout bounds each individual facilitator call.
const DefaultAttemptTimeout = 10 * time.Second

// HTTPClient talks to an ordered list of facilitator endpoints. Verification
// walks the list: unreachable endpoints (transport error, timeout, non-200
// status) trigger failover to the next one, while an explicit rejection from
// a reachable endpoint is authoritative and ends the walk. Settlement always
// targets the single endpoint that verified the proof.
type HTTPClient struct {
	urls           []string
	apiKey         string
	attemptTimeout time.Duration
	client         *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithAPIKey sets the bearer token sent to every facilitator.
func WithAPIKey(key string) Option {
	return func(c *HTTPClient) { c.apiKey = key }
}

// WithAttemptTimeout overrides the per-attempt timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.client = client
		}
	}
}

// NewHTTPClient creates a facilitator client over the given endpoint list,
// in priority order.
func NewHTTPClient(urls []string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		urls:           urls,
		attemptTimeout: DefaultAttemptTimeout,
		client:         &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type verifyRequest struct {
	Payment     *core.PaymentProof       `json:"payment"`
	Requirement *core.PaymentRequirement `json:"requirement"`
}

type verifyResponse struct {
	OK             bool   `json:"ok"`
	IsValid        bool   `json:"isValid"`
	Reason         string `json:"reason,omitempty"`
	VerificationID string `json:"verificationId,omitempty"`
}

type settleRequest struct {
	Payment *core.PaymentProof `json:"payment"`
}

type settleResponse struct {
	OK      bool                    `json:"ok"`
	Settled bool                    `json:"settled"`
	Reason  string                  `json:"reason,omitempty"`
	Receipt *core.SettlementReceipt `json:"receipt,omitempty"`
}

// Verify walks the configured endpoints in order and returns the aggregate
// result. The attempts list records every contact in order.
func (c *HTTPClient) Verify(ctx context.Context, proof *core.PaymentProof, requirement *core.PaymentRequirement) (*core.VerificationResult, error) {
	body, err := json.Marshal(verifyRequest{Payment: proof, Requirement: requirement})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	result := &core.VerificationResult{}

	for _, url := range c.urls {
		started := time.Now()

		var resp verifyResponse
		err := c.post(ctx, url+"/verify", body, &resp)
		latency := time.Since(started)

		if err != nil {
			result.Attempts = append(result.Attempts, core.VerificationAttempt{
				FacilitatorURL: url,
				Outcome:        core.AttemptUnreachable,
				Latency:        latency,
				ErrorDetail:    err.Error(),
			})
			result.Reason = core.ErrFacilitatorUnreachable.Error()
			continue
		}

		if resp.IsValid {
			result.Attempts = append(result.Attempts, core.VerificationAttempt{
				FacilitatorURL: url,
				Outcome:        core.AttemptOK,
				Latency:        latency,
			})
			result.Verified = true
			result.FacilitatorURL = url
			result.Reason = ""
			return result, nil
		}

		// A reachable facilitator rejected the proof. That verdict is
		// authoritative: retrying it elsewhere risks double-settlement.
		reason := resp.Reason
		if reason == "" {
			reason = "invalid_payment"
		}
		result.Attempts = append(result.Attempts, core.VerificationAttempt{
			FacilitatorURL: url,
			Outcome:        core.AttemptRejected,
			Latency:        latency,
			ErrorDetail:    reason,
		})
		result.Reason = reason
		return result, nil
	}

	return result, nil
}

// Settle executes the payment on the facilitator that verified it, never a
// different one. An unsettled outcome is not retried.
func (c *HTTPClient) Settle(ctx context.Context, proof *core.PaymentProof, facilitatorURL string) (*core.SettlementReceipt, error) {
	body, err := json.Marshal(settleRequest{Payment: proof})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settle request: %w", err)
	}

	var resp settleResponse
	if err := c.post(ctx, facilitatorURL+"/settle", body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSettlementFailed, err)
	}

	if !resp.Settled || resp.Receipt == nil {
		reason := resp.Reason
		if reason == "" {
			reason = "settle_not_confirmed"
		}
		return nil, fmt.Errorf("%w: %s", core.ErrSettlementFailed, reason)
	}

	receipt := *resp.Receipt
	receipt.FacilitatorURL = facilitatorURL
	return &receipt, nil
}

// post performs one bounded facilitator call. Any transport failure, timeout
// or non-200 status is returned as an error so the caller can classify the
// endpoint as unreachable.
func (c *HTTPClient) post(ctx context.Context, url string, body []byte, out interface{}) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.apiKey))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var _ ports.Facilitator = (*HTTPClient)(nil)
