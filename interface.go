// Package walletauth is the client side of OTCping's wallet sign-in. It turns a
// connected wallet into an application session and keeps that session honest
// against the backend's own view of who is calling.
package walletauth

import (
	"context"

	"github.com/otcping/walletauth/core"
)

// AuthBackend is the hosted auth surface the Provider drives
type AuthBackend interface {
	// CreateWalletChallenge issues a single-use message and nonce for the wallet
	CreateWalletChallenge(ctx context.Context, address string) (*core.WalletChallenge, error)

	// AuthenticateWallet submits a signed challenge for verification
	AuthenticateWallet(ctx context.Context, address, message, signature, nonce string) error

	// SignInWithPassword exchanges a derived credential for a session
	SignInWithPassword(ctx context.Context, email, password string) (*core.AuthSession, error)

	// SignUp creates an account for the derived credential
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*core.AuthSession, error)

	// RefreshSession rotates the refresh token
	RefreshSession(ctx context.Context, refreshToken string) (*core.AuthSession, error)

	// SignOut revokes the session behind an access token
	SignOut(ctx context.Context, accessToken string) error

	// AuthUID asks the data layer who the token belongs to; "" means anonymous
	AuthUID(ctx context.Context, accessToken string) (string, error)
}

// DataBackend is the authenticated data surface used by Guard and Chats
type DataBackend interface {
	HasRole(ctx context.Context, accessToken, userID string, role core.Role) (bool, error)
	GetUserRole(ctx context.Context, accessToken, userID string) (core.Role, error)
	GetBetaSettings(ctx context.Context, accessToken string) (core.BetaSettings, error)
	HasBetaAccess(ctx context.Context, accessToken, userID string) (bool, error)
	CreateChat(ctx context.Context, accessToken, name string, participants []string) (*core.Chat, error)
	IncrementUnreadCount(ctx context.Context, accessToken, chatID, senderID string) error
	UnreadCounts(ctx context.Context, accessToken string) (map[string]int64, error)
}

// Wallet hands out signing clients for a connected account
type Wallet interface {
	Client(ctx context.Context, account string) (MessageSigner, error)
}

// MessageSigner produces personal_sign signatures
type MessageSigner interface {
	SignMessage(ctx context.Context, message, account string) (string, error)
}

// SessionStorage persists a session across process restarts
type SessionStorage interface {
	// Load returns the stored session, or nil when nothing is stored
	Load(ctx context.Context) (*core.AuthSession, error)
	Save(ctx context.Context, session *core.AuthSession) error
	Clear(ctx context.Context) error
}

// NotificationLevel classifies a user-facing notification
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

// Notification is a toast shown to the user
type Notification struct {
	Level   NotificationLevel
	Title   string
	Message string
}

// Notifier surfaces notifications to the user
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(n Notification)

// Notify calls f(n)
func (f NotifierFunc) Notify(n Notification) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}
