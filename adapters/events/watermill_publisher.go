package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/otcping/walletauth/ports"
)

const (
	// LogoutTopic carries LogoutEvent payloads
	LogoutTopic = "walletauth.logout"
	// SignInTopic carries SignInEvent payloads
	SignInTopic = "walletauth.signin"
)

// LogoutEvent represents a logout event
type LogoutEvent struct {
	UserID  string    `json:"user_id"`
	Address string    `json:"address"`
	TokenID string    `json:"token_id"`
	At      time.Time `json:"at"`
}

// SignInEvent is emitted whenever a session is issued from a verified wallet
type SignInEvent struct {
	UserID    string    `json:"user_id"`
	Address   string    `json:"address"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, userID, address, tokenID string) error {
	return p.publish(ctx, LogoutTopic, LogoutEvent{
		UserID:  userID,
		Address: address,
		TokenID: tokenID,
		At:      time.Now().UTC(),
	})
}

// PublishSignIn publishes a sign-in event
func (p *WatermillPublisher) PublishSignIn(ctx context.Context, userID, address, sessionID string) error {
	return p.publish(ctx, SignInTopic, SignInEvent{
		UserID:    userID,
		Address:   address,
		SessionID: sessionID,
		At:        time.Now().UTC(),
	})
}
