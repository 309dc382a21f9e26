package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPriceToBaseUnits(t *testing.T) {
	cases := []struct {
		price    string
		decimals int32
		want     string
	}{
		{"0.001", 6, "1000"},
		{"1", 6, "1000000"},
		{"1.5", 6, "1500000"},
		{"0.000001", 6, "1"},
		{"0.25", 18, "250000000000000000"},
		{"10", 0, "10"},
	}
	for _, tc := range cases {
		got, err := PriceToBaseUnits(tc.price, tc.decimals)
		require.NoError(t, err, tc.price)
		require.Equal(t, tc.want, got, tc.price)
	}
}

func TestPriceToBaseUnitsRejectsBadInput(t *testing.T) {
	for _, price := range []string{"", "abc", "1.2.3", "0.0000001"} {
		_, err := PriceToBaseUnits(price, 6)
		require.ErrorIs(t, err, ErrInvalidPrice, price)
	}
}

func TestProofComplete(t *testing.T) {
	proof := PaymentProof{
		Scheme:    SchemeExact,
		Network:   NetworkBaseSepolia,
		Resource:  "/v1/data",
		PayTo:     "0x1111111111111111111111111111111111111111",
		Amount:    "1000",
		Payer:     "0x2222222222222222222222222222222222222222",
		Signature: "0xsigned",
	}
	require.True(t, proof.Complete())

	for _, mutate := range []func(*PaymentProof){
		func(p *PaymentProof) { p.Signature = "" },
		func(p *PaymentProof) { p.Payer = "" },
		func(p *PaymentProof) { p.Amount = "" },
		func(p *PaymentProof) { p.PayTo = "" },
		func(p *PaymentProof) { p.Resource = "" },
	} {
		broken := proof
		mutate(&broken)
		require.False(t, broken.Complete())
	}
}

func TestVerificationResultUnreachable(t *testing.T) {
	allDown := VerificationResult{
		Attempts: []VerificationAttempt{
			{Outcome: AttemptUnreachable},
			{Outcome: AttemptUnreachable},
		},
	}
	require.True(t, allDown.Unreachable())

	rejected := VerificationResult{
		Attempts: []VerificationAttempt{
			{Outcome: AttemptUnreachable},
			{Outcome: AttemptRejected},
		},
	}
	require.False(t, rejected.Unreachable())

	verified := VerificationResult{
		Verified: true,
		Attempts: []VerificationAttempt{{Outcome: AttemptOK}},
	}
	require.False(t, verified.Unreachable())
}
