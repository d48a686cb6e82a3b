package walletauth

import (
	"crypto/sha256"
	"encoding/hex"
)

// WalletEmailDomain completes the email derived from a wallet address
const WalletEmailDomain = "@wallet.local"

// Credential is the email and password an application account is keyed by
type Credential struct {
	Email    string
	Password string
}

// DeriveCredential maps a wallet address to its application credential. The
// address is used exactly as given; changing the hash orphans every account.
func DeriveCredential(address string) Credential {
	sum := sha256.Sum256([]byte(address))
	return Credential{
		Email:    address + WalletEmailDomain,
		Password: hex.EncodeToString(sum[:]),
	}
}

// DisplayName shortens an address to 0xABCD...1234
func DisplayName(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
