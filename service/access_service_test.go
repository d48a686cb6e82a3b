package service

import (
	"context"
	"testing"

	"github.com/otcping/walletauth/adapters/store"
	"github.com/otcping/walletauth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessService_Roles(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewAccessService(st)

	require.NoError(t, st.SetRole(ctx, "admin-1", core.RoleAdmin))

	ok, err := svc.HasRole(ctx, "admin-1", core.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasRole(ctx, "nobody", core.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	role, err := svc.GetUserRole(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, role)

	err = svc.SetUserRole(ctx, "nobody", "user-2", core.RoleModerator)
	assert.ErrorIs(t, err, core.ErrForbidden)

	err = svc.SetUserRole(ctx, "admin-1", "user-2", core.Role("root"))
	assert.ErrorIs(t, err, core.ErrInvalidRole)

	require.NoError(t, svc.SetUserRole(ctx, "admin-1", "user-2", core.RoleModerator))
	role, err = svc.GetUserRole(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, core.RoleModerator, role)
}

func TestAccessService_BetaAccess(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewAccessService(st)
	require.NoError(t, st.SetRole(ctx, "admin-1", core.RoleAdmin))

	// Beta off: everyone is let in.
	ok, err := svc.HasBetaAccess(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, svc.SetBetaSettings(ctx, "user-1", core.BetaSettings{IsBetaActive: true}), core.ErrForbidden)
	require.NoError(t, svc.SetBetaSettings(ctx, "admin-1", core.BetaSettings{IsBetaActive: true}))

	settings, err := svc.GetBetaSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.IsBetaActive)

	ok, err = svc.HasBetaAccess(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.HasBetaAccess(ctx, "admin-1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.GrantBetaAccess(ctx, "admin-1", "user-1"))
	ok, err = svc.HasBetaAccess(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
