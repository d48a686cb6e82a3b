package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with access-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	RefreshID string `json:"rid"` // ID of the refresh token
	Email     string `json:"email,omitempty"`
	Wallet    string `json:"wallet,omitempty"`
}

// RefreshClaims carry enough to mint the next access token
type RefreshClaims struct {
	jwt.RegisteredClaims
	Email  string `json:"email,omitempty"`
	Wallet string `json:"wallet,omitempty"`
}
