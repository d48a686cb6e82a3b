package ports

import "github.com/otcping/walletauth/core"

// Tokenizer converts between sessions and tokens
type Tokenizer interface {
	SessionToAccessToken(session *core.Session) (string, error)
	AccessTokenToSession(token string) (*core.Session, error)
	SessionToRefreshToken(session *core.Session) (string, error)
	RefreshTokenToSession(token string) (*core.Session, error)
}

// SignatureVerifier checks that a wallet signed a message
type SignatureVerifier interface {
	VerifySignature(message, signature, address string) error
}
