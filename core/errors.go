package core

import "errors"

var (
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalidated   = errors.New("token has been invalidated")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidChallenge   = errors.New("invalid challenge")
	ErrInvalidAddress     = errors.New("invalid ethereum address")
	ErrWalletNotVerified  = errors.New("wallet has not been verified")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrUserExists         = errors.New("user already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrChatNotFound       = errors.New("chat not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidArgument    = errors.New("invalid argument")
)
