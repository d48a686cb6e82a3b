package service

import (
	"context"
	"fmt"

	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/ports"
)

// AccessService answers role and beta-gating questions
type AccessService struct {
	store ports.AccessStore
}

// NewAccessService creates a new access service
func NewAccessService(store ports.AccessStore) *AccessService {
	return &AccessService{store: store}
}

// HasRole reports whether the user holds exactly the given role
func (s *AccessService) HasRole(ctx context.Context, userID string, role core.Role) (bool, error) {
	current, err := s.store.GetRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return current != "" && current == role, nil
}

// GetUserRole returns the user's role, or "" when none is assigned
func (s *AccessService) GetUserRole(ctx context.Context, userID string) (core.Role, error) {
	return s.store.GetRole(ctx, userID)
}

// GetBetaSettings returns the global beta switch
func (s *AccessService) GetBetaSettings(ctx context.Context) (core.BetaSettings, error) {
	return s.store.GetBetaSettings(ctx)
}

// HasBetaAccess is true when the beta is off, or the user is an admin or on
// the allow-list
func (s *AccessService) HasBetaAccess(ctx context.Context, userID string) (bool, error) {
	settings, err := s.store.GetBetaSettings(ctx)
	if err != nil {
		return false, err
	}
	if !settings.IsBetaActive {
		return true, nil
	}

	isAdmin, err := s.HasRole(ctx, userID, core.RoleAdmin)
	if err != nil {
		return false, err
	}
	if isAdmin {
		return true, nil
	}

	return s.store.HasBetaGrant(ctx, userID)
}

func (s *AccessService) requireAdmin(ctx context.Context, actorID string) error {
	isAdmin, err := s.HasRole(ctx, actorID, core.RoleAdmin)
	if err != nil {
		return err
	}
	if !isAdmin {
		return core.ErrForbidden
	}
	return nil
}

// SetUserRole assigns a role on behalf of an admin
func (s *AccessService) SetUserRole(ctx context.Context, actorID, userID string, role core.Role) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidRole, role)
	}
	return s.store.SetRole(ctx, userID, role)
}

// SetBetaSettings flips the beta switch on behalf of an admin
func (s *AccessService) SetBetaSettings(ctx context.Context, actorID string, settings core.BetaSettings) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	return s.store.SetBetaSettings(ctx, settings)
}

// GrantBetaAccess adds a user to the beta allow-list on behalf of an admin
func (s *AccessService) GrantBetaAccess(ctx context.Context, actorID, userID string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	return s.store.GrantBetaAccess(ctx, userID)
}
