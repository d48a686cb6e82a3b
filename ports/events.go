package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, userID, address, tokenID string) error
	PublishSignIn(ctx context.Context, userID, address, sessionID string) error
}
