package walletauth

import (
	"context"

	"github.com/otcping/walletauth/core"
)

// Chats creates chats and reports sent messages. Every call waits until the
// Provider holds a validated session, so a just-refreshed token is never
// raced.
type Chats struct {
	provider *Provider
	data     DataBackend
}

// NewChats creates a chat client
func NewChats(provider *Provider, data DataBackend) *Chats {
	return &Chats{provider: provider, data: data}
}

// Create creates a chat with the current user as owner
func (c *Chats) Create(ctx context.Context, name string, participants []string) (*core.Chat, error) {
	session, err := c.provider.WaitReady(ctx)
	if err != nil {
		return nil, err
	}
	return c.data.CreateChat(ctx, session.AccessToken, name, participants)
}

// NotifySent bumps the other participants' unread counters for a message the
// current user sent
func (c *Chats) NotifySent(ctx context.Context, chatID string) error {
	session, err := c.provider.WaitReady(ctx)
	if err != nil {
		return err
	}
	return c.data.IncrementUnreadCount(ctx, session.AccessToken, chatID, session.User.ID)
}

// Unread returns the current user's unread counters keyed by chat id
func (c *Chats) Unread(ctx context.Context) (map[string]int64, error) {
	session, err := c.provider.WaitReady(ctx)
	if err != nil {
		return nil, err
	}
	return c.data.UnreadCounts(ctx, session.AccessToken)
}
