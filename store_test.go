package walletauth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/otcping/walletauth/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	redisStore := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "walletauth:agent:session", 0)
	t.Cleanup(func() { _ = redisStore.Close() })

	storages := map[string]SessionStorage{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}

	for name, storage := range storages {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := storage.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, got)

			session := &core.AuthSession{
				AccessToken:  "access",
				RefreshToken: "refresh",
				TokenType:    "bearer",
				ExpiresIn:    3600,
				User: core.User{
					ID:       "user-1",
					Email:    testAddress + WalletEmailDomain,
					Metadata: map[string]any{core.MetadataWalletAddress: testAddress},
				},
			}
			require.NoError(t, storage.Save(ctx, session))

			got, err = storage.Load(ctx)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "refresh", got.RefreshToken)
			assert.Equal(t, testAddress, got.User.WalletAddress())

			require.NoError(t, storage.Clear(ctx))
			got, err = storage.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(ctx, "redis://"+mr.Addr(), "session", time.Minute)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, &core.AuthSession{AccessToken: "a"}))
	mr.FastForward(2 * time.Minute)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
