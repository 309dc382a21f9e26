package facilitator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clawr-ai/gate/core"
)

func testProof() *core.PaymentProof {
	return &core.PaymentProof{
		PaymentID: "pay_1",
		Scheme:    core.SchemeExact,
		Network:   core.NetworkBaseSepolia,
		Resource:  "/v1/records",
		PayTo:     "0x5C78C7E37f3cCB01059167BaE3b4622b44f97D0F",
		Amount:    "1000",
		Payer:     "0x1111111111111111111111111111111111111111",
		Timestamp: time.Now().UnixMilli(),
		Signature: "0xsig",
	}
}

func testRequirement() *core.PaymentRequirement {
	return &core.PaymentRequirement{
		Scheme:            core.SchemeExact,
		Network:           core.NetworkBaseSepolia,
		Asset:             core.DefaultAsset,
		PayTo:             "0x5C78C7E37f3cCB01059167BaE3b4622b44f97D0F",
		MaxAmountRequired: "1000",
		Resource:          "/v1/records",
	}
}

func verifyHandler(t *testing.T, calls *int32, isValid bool, reason string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		require.Equal(t, "/verify", r.URL.Path)

		var req verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Payment)
		require.NotNil(t, req.Requirement)

		json.NewEncoder(w).Encode(verifyResponse{OK: true, IsValid: isValid, Reason: reason, VerificationID: "ver_1"})
	}
}

func TestVerifyFirstFacilitatorWins(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(verifyHandler(t, &calls, true, ""))
	defer srv.Close()

	client := NewHTTPClient([]string{srv.URL})
	result, err := client.Verify(context.Background(), testProof(), testRequirement())
	require.NoError(t, err)
	require.True(t, result.Verified)
	require.Equal(t, srv.URL, result.FacilitatorURL)
	require.Len(t, result.Attempts, 1)
	require.Equal(t, core.AttemptOK, result.Attempts[0].Outcome)
}

func TestVerifyFailoverOnUnreachable(t *testing.T) {
	var calls int32
	good := httptest.NewServer(verifyHandler(t, &calls, true, ""))
	defer good.Close()

	// A closed server: connection refused.
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	client := NewHTTPClient([]string{deadURL, good.URL})
	result, err := client.Verify(context.Background(), testProof(), testRequirement())
	require.NoError(t, err)
	require.True(t, result.Verified)
	require.Equal(t, good.URL, result.FacilitatorURL)

	require.Len(t, result.Attempts, 2)
	require.Equal(t, deadURL, result.Attempts[0].FacilitatorURL)
	require.Equal(t, core.AttemptUnreachable, result.Attempts[0].Outcome)
	require.Equal(t, core.AttemptOK, result.Attempts[1].Outcome)
}

func TestVerifyNon200IsUnreachable(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	var calls int32
	good := httptest.NewServer(verifyHandler(t, &calls, true, ""))
	defer good.Close()

	client := NewHTTPClient([]string{bad.URL, good.URL})
	result, err := client.Verify(context.Background(), testProof(), testRequirement())
	require.NoError(t, err)
	require.True(t, result.Verified)
	require.Equal(t, core.AttemptUnreachable, result.Attempts[0].Outcome)
}

func TestVerifyRejectionIsAuthoritative(t *testing.T) {
	var firstCalls, secondCalls int32
	rejecting := httptest.NewServer(verifyHandler(t, &firstCalls, false, "amount_mismatch"))
	defer rejecting.Close()
	second := httptest.NewServer(verifyHandler(t, &secondCalls, true, ""))
	defer second.Close()

	client := NewHTTPClient([]string{rejecting.URL, second.URL})
	result, err := client.Verify(context.Background(), testProof(), testRequirement())
	require.NoError(t, err)
	require.False(t, result.Verified)
	require.Equal(t, "amount_mismatch", result.Reason)
	require.False(t, result.Unreachable())

	// The rejection must not trigger failover.
	require.EqualValues(t, 0, atomic.LoadInt32(&secondCalls))
	require.Len(t, result.Attempts, 1)
	require.Equal(t, core.AttemptRejected, result.Attempts[0].Outcome)
}

func TestVerifyAllUnreachable(t *testing.T) {
	dead1 := httptest.NewServer(http.NotFoundHandler())
	url1 := dead1.URL
	dead1.Close()
	dead2 := httptest.NewServer(http.NotFoundHandler())
	url2 := dead2.URL
	dead2.Close()

	client := NewHTTPClient([]string{url1, url2})
	result, err := client.Verify(context.Background(), testProof(), testRequirement())
	require.NoError(t, err)
	require.False(t, result.Verified)
	require.True(t, result.Unreachable())
	require.Len(t, result.Attempts, 2)
}

func TestVerifyTimeoutIsUnreachable(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(verifyResponse{OK: true, IsValid: true})
	}))
	defer slow.Close()

	client := NewHTTPClient([]string{slow.URL}, WithAttemptTimeout(20*time.Millisecond))
	result, err := client.Verify(context.Background(), testProof(), testRequirement())
	require.NoError(t, err)
	require.False(t, result.Verified)
	require.True(t, result.Unreachable())
}

func TestSettleOnVerifiedFacilitator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/settle", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(settleResponse{
			OK:      true,
			Settled: true,
			Receipt: &core.SettlementReceipt{
				SettlementID: "set_1",
				TxHash:       "0xabc",
				Status:       "confirmed",
				Amount:       "1000",
				SettledAt:    time.Now().UnixMilli(),
			},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient([]string{"http://ignored.invalid", srv.URL}, WithAPIKey("test-key"))
	receipt, err := client.Settle(context.Background(), testProof(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "set_1", receipt.SettlementID)
	require.Equal(t, srv.URL, receipt.FacilitatorURL)
}

func TestSettleFailureNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(settleResponse{OK: true, Settled: false, Reason: "not_verified"})
	}))
	defer srv.Close()

	client := NewHTTPClient([]string{srv.URL})
	_, err := client.Settle(context.Background(), testProof(), srv.URL)
	require.ErrorIs(t, err, core.ErrSettlementFailed)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
