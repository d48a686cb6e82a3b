package core

import (
	"strings"
	"time"
)

// WalletChallenge is the message/nonce pair a wallet signs to prove control
// of its address. A challenge is single use.
type WalletChallenge struct {
	Message string `json:"message"`
	Nonce   string `json:"nonce"`
}

// Challenge is the server-side record behind a WalletChallenge
type Challenge struct {
	Address   string    // Ethereum address the challenge was issued to
	Nonce     string    // Random nonce embedded in the message
	Message   string    // Exact text the wallet must sign
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// WalletIdentity is the connection state reported by a wallet connector
type WalletIdentity struct {
	Address     string `json:"address"`
	IsConnected bool   `json:"is_connected"`
}

// Ready reports whether the wallet can be asked for a signature
func (w WalletIdentity) Ready() bool {
	return w.IsConnected && strings.TrimSpace(w.Address) != ""
}

// User metadata keys seeded at sign-up
const (
	MetadataWalletAddress = "wallet_address"
	MetadataDisplayName   = "display_name"
)

// User is an application account
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Metadata  map[string]any `json:"user_metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// WalletAddress returns the wallet address the account was created for
func (u *User) WalletAddress() string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	addr, _ := u.Metadata[MetadataWalletAddress].(string)
	return addr
}

// AuthSession is an application session as handed to clients
type AuthSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// Session represents an authenticated user session
type Session struct {
	ID            string    // Unique session identifier
	UserID        string    // Account the session belongs to
	Email         string    // Account email
	Address       string    // Wallet address of the user
	IssuedAt      time.Time // When the session was created
	RefreshExpiry time.Time // When the refresh capability expires
	AccessExpiry  time.Time // When the access capability expires
	RefreshID     string    // Unique identifier for the refresh token
}

// Role is an authorization role assigned to a user
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

// BetaSettings is the global beta-gating switch
type BetaSettings struct {
	IsBetaActive bool `json:"is_beta_active"`
}

// Chat is a conversation between platform users
type Chat struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedBy    string    `json:"created_by"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasParticipant reports whether userID takes part in the chat
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
