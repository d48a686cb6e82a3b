package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillPublisher_PublishLogout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(ctx, LogoutTopic)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub)
	require.NoError(t, pub.PublishLogout(ctx, "user-1", "0xabc", "rid-1"))

	select {
	case msg := <-messages:
		var event LogoutEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		msg.Ack()
		assert.Equal(t, "user-1", event.UserID)
		assert.Equal(t, "0xabc", event.Address)
		assert.Equal(t, "rid-1", event.TokenID)
	case <-ctx.Done():
		t.Fatal("logout event was not delivered")
	}
}

func TestWatermillPublisher_PublishSignIn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(ctx, SignInTopic)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub)
	require.NoError(t, pub.PublishSignIn(ctx, "user-1", "0xabc", "sess-1"))

	select {
	case msg := <-messages:
		var event SignInEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		msg.Ack()
		assert.Equal(t, "sess-1", event.SessionID)
		assert.False(t, event.At.IsZero())
	case <-ctx.Done():
		t.Fatal("sign-in event was not delivered")
	}
}
