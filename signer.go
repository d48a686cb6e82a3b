package walletauth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/otcping/walletauth/core"
)

// KeyWallet is a Wallet backed by a local secp256k1 key, for headless agents
// and tests
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeyWallet wraps an existing private key
func NewKeyWallet(key *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// KeyWalletFromHex loads a wallet from a hex private key, with or without 0x
func KeyWalletFromHex(hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid wallet key: %w", err)
	}
	return NewKeyWallet(key), nil
}

// Address returns the checksummed wallet address
func (w *KeyWallet) Address() string {
	return w.address.Hex()
}

// Identity returns the connected identity of this wallet
func (w *KeyWallet) Identity() core.WalletIdentity {
	return core.WalletIdentity{Address: w.Address(), IsConnected: true}
}

// Client returns the wallet itself when it controls account
func (w *KeyWallet) Client(ctx context.Context, account string) (MessageSigner, error) {
	if !strings.EqualFold(account, w.address.Hex()) {
		return nil, fmt.Errorf("%w: %s", ErrAccountMismatch, account)
	}
	return w, nil
}

// SignMessage produces an EIP-191 personal_sign signature with V in {27, 28}
func (w *KeyWallet) SignMessage(ctx context.Context, message, account string) (string, error) {
	if !strings.EqualFold(account, w.address.Hex()) {
		return "", fmt.Errorf("%w: %s", ErrAccountMismatch, account)
	}

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return hexutil.Encode(sig), nil
}

var rejectionPhrases = []string{"reject", "denied", "cancel"}

// IsUserRejection reports whether an error returned by a wallet or signer
// means the user declined to sign, as opposed to a wallet fault. Backend
// errors must not be passed to it.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range rejectionPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
