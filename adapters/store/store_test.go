package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]ports.Backend {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]ports.Backend{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client),
	}
}

func TestStore_TokenInvalidation(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			invalidated, err := s.IsTokenInvalidated(ctx, "rid-1")
			require.NoError(t, err)
			assert.False(t, invalidated)

			require.NoError(t, s.InvalidateToken(ctx, "rid-1", time.Hour))

			invalidated, err = s.IsTokenInvalidated(ctx, "rid-1")
			require.NoError(t, err)
			assert.True(t, invalidated)
		})
	}
}

func TestStore_ChallengeReplacedOnReissue(t *testing.T) {
	ctx := context.Background()
	addr := "0xAbCdEf0000000000000000000000000000001234"

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetChallenge(ctx, addr)
			assert.ErrorIs(t, err, core.ErrInvalidChallenge)

			now := time.Now()
			first := &core.Challenge{Address: addr, Nonce: "n1", Message: "m1", IssuedAt: now, ExpiresAt: now.Add(time.Minute)}
			second := &core.Challenge{Address: addr, Nonce: "n2", Message: "m2", IssuedAt: now, ExpiresAt: now.Add(time.Minute)}
			require.NoError(t, s.PutChallenge(ctx, first))
			require.NoError(t, s.PutChallenge(ctx, second))

			// Lookups are case-insensitive on the address.
			got, err := s.GetChallenge(ctx, "0xabcdef0000000000000000000000000000001234")
			require.NoError(t, err)
			assert.Equal(t, "n2", got.Nonce)
			assert.Equal(t, "m2", got.Message)

			require.NoError(t, s.DeleteChallenge(ctx, addr))
			_, err = s.GetChallenge(ctx, addr)
			assert.ErrorIs(t, err, core.ErrInvalidChallenge)
		})
	}
}

func TestStore_WalletVerification(t *testing.T) {
	ctx := context.Background()
	addr := "0x1111111111111111111111111111111111111111"

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := s.IsWalletVerified(ctx, addr)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.MarkWalletVerified(ctx, addr, time.Minute))
			ok, err = s.IsWalletVerified(ctx, addr)
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, s.ClearWalletVerified(ctx, addr))
			ok, err = s.IsWalletVerified(ctx, addr)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			user := &core.User{
				ID:       "user-1",
				Email:    "0xABC@wallet.local",
				Metadata: map[string]any{core.MetadataWalletAddress: "0xABC"},
			}
			require.NoError(t, s.CreateUser(ctx, user, []byte("hash")))

			err := s.CreateUser(ctx, &core.User{ID: "user-2", Email: "0xabc@wallet.local"}, []byte("other"))
			assert.ErrorIs(t, err, core.ErrUserExists)

			got, hash, err := s.GetUserByEmail(ctx, "0xabc@wallet.local")
			require.NoError(t, err)
			assert.Equal(t, "user-1", got.ID)
			assert.Equal(t, []byte("hash"), hash)
			assert.Equal(t, "0xABC", got.WalletAddress())

			byID, err := s.GetUser(ctx, "user-1")
			require.NoError(t, err)
			assert.Equal(t, user.Email, byID.Email)

			_, err = s.GetUser(ctx, "missing")
			assert.ErrorIs(t, err, core.ErrUserNotFound)
			_, _, err = s.GetUserByEmail(ctx, "missing@wallet.local")
			assert.ErrorIs(t, err, core.ErrUserNotFound)
		})
	}
}

func TestStore_Access(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			role, err := s.GetRole(ctx, "u1")
			require.NoError(t, err)
			assert.Empty(t, role)

			require.NoError(t, s.SetRole(ctx, "u1", core.RoleAdmin))
			role, err = s.GetRole(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, core.RoleAdmin, role)

			settings, err := s.GetBetaSettings(ctx)
			require.NoError(t, err)
			assert.False(t, settings.IsBetaActive)

			require.NoError(t, s.SetBetaSettings(ctx, core.BetaSettings{IsBetaActive: true}))
			settings, err = s.GetBetaSettings(ctx)
			require.NoError(t, err)
			assert.True(t, settings.IsBetaActive)

			granted, err := s.HasBetaGrant(ctx, "u2")
			require.NoError(t, err)
			assert.False(t, granted)
			require.NoError(t, s.GrantBetaAccess(ctx, "u2"))
			granted, err = s.HasBetaGrant(ctx, "u2")
			require.NoError(t, err)
			assert.True(t, granted)
		})
	}
}

func TestStore_ChatsAndUnread(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			chat := &core.Chat{ID: "c1", Name: "desk", CreatedBy: "u1", Participants: []string{"u1", "u2"}}
			require.NoError(t, s.CreateChat(ctx, chat))

			got, err := s.GetChat(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, []string{"u1", "u2"}, got.Participants)

			_, err = s.GetChat(ctx, "nope")
			assert.ErrorIs(t, err, core.ErrChatNotFound)

			require.NoError(t, s.IncrementUnread(ctx, "c1", "u2"))
			require.NoError(t, s.IncrementUnread(ctx, "c1", "u2"))

			counts, err := s.UnreadCounts(ctx, "u2")
			require.NoError(t, err)
			assert.Equal(t, map[string]int64{"c1": 2}, counts)

			counts, err = s.UnreadCounts(ctx, "u1")
			require.NoError(t, err)
			assert.Empty(t, counts)
		})
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.PutChallenge(ctx, &core.Challenge{Address: "0x1", Nonce: "n", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, s.MarkWalletVerified(ctx, "0x1", time.Minute))
	require.NoError(t, s.InvalidateToken(ctx, "rid", time.Minute))

	now = now.Add(2 * time.Minute)

	_, err := s.GetChallenge(ctx, "0x1")
	assert.ErrorIs(t, err, core.ErrInvalidChallenge)

	ok, err := s.IsWalletVerified(ctx, "0x1")
	require.NoError(t, err)
	assert.False(t, ok)

	invalidated, err := s.IsTokenInvalidated(ctx, "rid")
	require.NoError(t, err)
	assert.False(t, invalidated)
}
