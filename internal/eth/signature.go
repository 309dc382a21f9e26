// Package eth wraps the go-ethereum signature primitives used for wallet
// sign-in. Signatures follow EIP-191 personal_sign, the scheme browser
// wallets use for plain-text messages.
package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// TextHash computes the EIP-191 digest of a personal_sign message.
func TextHash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}

// RecoverAddress returns the address that produced a personal_sign signature
// over message. The 65-byte signature may carry its recovery id as 0/1 or as
// the legacy 27/28.
func RecoverAddress(message string, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(signature))
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)

	v := sig[crypto.RecoveryIDOffset]
	if v == 27 || v == 28 {
		v -= 27
	}
	if v != 0 && v != 1 {
		return common.Address{}, fmt.Errorf("invalid signature recovery id: %d", sig[crypto.RecoveryIDOffset])
	}
	sig[crypto.RecoveryIDOffset] = v

	pub, err := crypto.SigToPub(TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyPersonalSignature checks that sigHex is a valid personal_sign
// signature over message by expected.
func VerifyPersonalSignature(message, sigHex string, expected common.Address) (bool, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", err)
	}

	recovered, err := RecoverAddress(message, sig)
	if err != nil {
		return false, err
	}
	return recovered == expected, nil
}
