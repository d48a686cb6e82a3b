package ports

import (
	"context"
	"time"

	"github.com/otcping/walletauth/core"
)

// Store interface for token invalidation
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}

// ChallengeStore keeps the outstanding challenge per wallet and the
// short-lived marker left by a successful signature verification
type ChallengeStore interface {
	// PutChallenge replaces any challenge previously issued to the address
	PutChallenge(ctx context.Context, challenge *core.Challenge) error
	// GetChallenge returns core.ErrInvalidChallenge when nothing is outstanding
	GetChallenge(ctx context.Context, address string) (*core.Challenge, error)
	DeleteChallenge(ctx context.Context, address string) error

	MarkWalletVerified(ctx context.Context, address string, ttl time.Duration) error
	IsWalletVerified(ctx context.Context, address string) (bool, error)
	ClearWalletVerified(ctx context.Context, address string) error
}

// UserStore persists accounts and their password hashes
type UserStore interface {
	// CreateUser returns core.ErrUserExists when the email is taken
	CreateUser(ctx context.Context, user *core.User, passwordHash []byte) error
	GetUserByEmail(ctx context.Context, email string) (*core.User, []byte, error)
	GetUser(ctx context.Context, id string) (*core.User, error)
}

// AccessStore holds roles and beta gating state
type AccessStore interface {
	SetRole(ctx context.Context, userID string, role core.Role) error
	// GetRole returns an empty role when none is assigned
	GetRole(ctx context.Context, userID string) (core.Role, error)
	SetBetaSettings(ctx context.Context, settings core.BetaSettings) error
	GetBetaSettings(ctx context.Context) (core.BetaSettings, error)
	GrantBetaAccess(ctx context.Context, userID string) error
	HasBetaGrant(ctx context.Context, userID string) (bool, error)
}

// ChatStore holds chats and per-participant unread counters
type ChatStore interface {
	CreateChat(ctx context.Context, chat *core.Chat) error
	GetChat(ctx context.Context, id string) (*core.Chat, error)
	IncrementUnread(ctx context.Context, chatID, userID string) error
	UnreadCounts(ctx context.Context, userID string) (map[string]int64, error)
}

// Backend bundles every store the service needs
type Backend interface {
	Store
	ChallengeStore
	UserStore
	AccessStore
	ChatStore
}
