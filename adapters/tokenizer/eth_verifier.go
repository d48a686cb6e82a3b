package tokenizer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/ports"
)

// EthVerifier checks EIP-191 personal_sign signatures
type EthVerifier struct{}

// NewEthVerifier creates a verifier for personal_sign signatures
func NewEthVerifier() ports.SignatureVerifier {
	return EthVerifier{}
}

// VerifySignature recovers the signer of message and compares it to address
func (EthVerifier) VerifySignature(message, signature, address string) error {
	if !common.IsHexAddress(address) {
		return core.ErrInvalidAddress
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("signature must be %d bytes: %w", crypto.SignatureLength, core.ErrInvalidSignature)
	}

	// Wallets emit V as 27/28; recovery wants 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", core.ErrInvalidSignature)
	}

	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(address) {
		return core.ErrInvalidSignature
	}
	return nil
}
