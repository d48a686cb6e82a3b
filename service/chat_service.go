package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/ports"
)

type chatStore interface {
	ports.ChatStore
	GetUser(ctx context.Context, id string) (*core.User, error)
}

// ChatService creates chats and maintains unread counters
type ChatService struct {
	store chatStore
	now   func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(store chatStore) *ChatService {
	return &ChatService{store: store, now: time.Now}
}

// CreateChat creates a chat owned by creatorID. The creator is always a
// participant and every participant must be a known user.
func (s *ChatService) CreateChat(ctx context.Context, creatorID, name string, participants []string) (*core.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: chat name is required", core.ErrInvalidArgument)
	}

	seen := map[string]bool{creatorID: true}
	members := []string{creatorID}
	for _, p := range participants {
		if p == "" || seen[p] {
			continue
		}
		if _, err := s.store.GetUser(ctx, p); err != nil {
			return nil, fmt.Errorf("participant %s: %w", p, err)
		}
		seen[p] = true
		members = append(members, p)
	}

	chat := &core.Chat{
		ID:           uuid.New().String(),
		Name:         name,
		CreatedBy:    creatorID,
		Participants: members,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// IncrementUnreadCount bumps the unread counter of every participant except
// the sender. Callers may only report their own messages.
func (s *ChatService) IncrementUnreadCount(ctx context.Context, callerID, chatID, senderID string) error {
	if callerID != senderID {
		return core.ErrForbidden
	}

	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(senderID) {
		return core.ErrForbidden
	}

	for _, p := range chat.Participants {
		if p == senderID {
			continue
		}
		if err := s.store.IncrementUnread(ctx, chatID, p); err != nil {
			return err
		}
	}
	return nil
}

// UnreadCounts returns the caller's unread counters keyed by chat id
func (s *ChatService) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	return s.store.UnreadCounts(ctx, userID)
}
