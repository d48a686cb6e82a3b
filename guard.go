package walletauth

import (
	"context"

	"github.com/otcping/walletauth/core"
)

// Reasons a Guard denies access
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonMissingRole     = "missing_role"
	ReasonBetaClosed      = "beta_closed"
	ReasonCheckFailed     = "check_failed"
)

// Requirement describes what a protected operation needs
type Requirement struct {
	// Role, when set, must be held exactly
	Role core.Role
	// Beta applies beta gating
	Beta bool
}

// Decision is the outcome of Guard.Check
type Decision struct {
	Allowed bool
	Reason  string
}

// Guard decides whether the signed-in user may reach a protected operation.
// Backend errors deny access.
type Guard struct {
	provider *Provider
	data     DataBackend
}

// NewGuard creates a Guard
func NewGuard(provider *Provider, data DataBackend) *Guard {
	return &Guard{provider: provider, data: data}
}

// Check evaluates req for the current user
func (g *Guard) Check(ctx context.Context, req Requirement) Decision {
	session := g.provider.Session()
	if session == nil {
		return Decision{Reason: ReasonUnauthenticated}
	}
	token, userID := session.AccessToken, session.User.ID

	if req.Role != "" {
		ok, err := g.data.HasRole(ctx, token, userID, req.Role)
		if err != nil {
			g.provider.log.Warn("role check failed", "role", req.Role, "error", err)
			return Decision{Reason: ReasonCheckFailed}
		}
		if !ok {
			return Decision{Reason: ReasonMissingRole}
		}
	}

	if req.Beta {
		settings, err := g.data.GetBetaSettings(ctx, token)
		if err != nil {
			g.provider.log.Warn("beta settings check failed", "error", err)
			return Decision{Reason: ReasonCheckFailed}
		}
		if settings.IsBetaActive {
			ok, err := g.data.HasBetaAccess(ctx, token, userID)
			if err != nil {
				g.provider.log.Warn("beta access check failed", "error", err)
				return Decision{Reason: ReasonCheckFailed}
			}
			if !ok {
				return Decision{Reason: ReasonBetaClosed}
			}
		}
	}

	return Decision{Allowed: true}
}
