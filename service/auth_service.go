package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/internal/logger"
	"github.com/otcping/walletauth/internal/metrics"
	"github.com/otcping/walletauth/ports"
	"golang.org/x/crypto/bcrypt"
)

const (
	// ChallengeMessagePrefix starts every message a wallet is asked to sign
	ChallengeMessagePrefix = "Sign in to OTCping: nonce="

	// WalletEmailDomain is the domain of the email derived from a wallet address
	WalletEmailDomain = "@wallet.local"
)

// Options tunes token lifetimes and bootstrap access
type Options struct {
	Issuer          string
	ChallengeTTL    time.Duration
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration // how long a verified signature may be exchanged for a session
	AdminWallets    []string
}

// DefaultOptions returns the lifetimes used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Issuer:          "walletauth",
		ChallengeTTL:    5 * time.Minute,
		AccessTTL:       time.Hour,
		RefreshTTL:      5 * 24 * time.Hour, // 5 days
		VerificationTTL: 5 * time.Minute,
	}
}

// AuthService handles authentication business logic
type AuthService struct {
	tokenizer ports.Tokenizer
	verifier  ports.SignatureVerifier
	store     ports.Backend
	eventPub  ports.EventPublisher
	metrics   *metrics.Metrics

	opts   Options
	admins map[string]bool
	now    func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	verifier ports.SignatureVerifier,
	store ports.Backend,
	eventPub ports.EventPublisher,
	m *metrics.Metrics,
	opts Options,
) *AuthService {
	admins := make(map[string]bool, len(opts.AdminWallets))
	for _, w := range opts.AdminWallets {
		admins[strings.ToLower(w)] = true
	}

	return &AuthService{
		tokenizer: tokenizer,
		verifier:  verifier,
		store:     store,
		eventPub:  eventPub,
		metrics:   m,
		opts:      opts,
		admins:    admins,
		now:       time.Now,
	}
}

// WalletFromEmail extracts the wallet address from a derived email
func WalletFromEmail(email string) (string, bool) {
	if !strings.HasSuffix(strings.ToLower(email), WalletEmailDomain) {
		return "", false
	}
	addr := email[:len(email)-len(WalletEmailDomain)]
	if !common.IsHexAddress(addr) {
		return "", false
	}
	return addr, true
}

// CreateChallenge issues a fresh challenge for the wallet, replacing any
// challenge issued before
func (s *AuthService) CreateChallenge(ctx context.Context, address string) (*core.WalletChallenge, error) {
	if !common.IsHexAddress(address) {
		return nil, core.ErrInvalidAddress
	}

	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(nonceBytes)

	now := s.now()
	challenge := &core.Challenge{
		Address:   address,
		Nonce:     nonce,
		Message:   ChallengeMessagePrefix + nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.opts.ChallengeTTL),
	}

	if err := s.store.PutChallenge(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	s.metrics.ChallengesIssued.Inc()
	return &core.WalletChallenge{Message: challenge.Message, Nonce: challenge.Nonce}, nil
}

// AuthenticateWallet verifies a signed challenge. On success the wallet may
// be exchanged for a session for VerificationTTL.
func (s *AuthService) AuthenticateWallet(ctx context.Context, address, message, signature, nonce string) error {
	err := s.authenticateWallet(ctx, address, message, signature, nonce)
	result := "success"
	if err != nil {
		result = "failure"
	}
	s.metrics.WalletVerifications.WithLabelValues(result).Inc()
	return err
}

func (s *AuthService) authenticateWallet(ctx context.Context, address, message, signature, nonce string) error {
	if !common.IsHexAddress(address) {
		return core.ErrInvalidAddress
	}

	challenge, err := s.store.GetChallenge(ctx, address)
	if err != nil {
		return err
	}
	if challenge.Nonce != nonce {
		return fmt.Errorf("nonce mismatch: %w", core.ErrInvalidChallenge)
	}

	// The nonce is spent whatever the signature turns out to be.
	if err := s.store.DeleteChallenge(ctx, address); err != nil {
		return fmt.Errorf("failed to consume challenge: %w", err)
	}

	if message != challenge.Message {
		return fmt.Errorf("message does not match challenge: %w", core.ErrInvalidChallenge)
	}

	if err := s.verifier.VerifySignature(message, signature, address); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}

	if err := s.store.MarkWalletVerified(ctx, address, s.opts.VerificationTTL); err != nil {
		return fmt.Errorf("failed to record verification: %w", err)
	}

	logger.FromContext(ctx).Info("wallet verified", "address", address)
	return nil
}

func (s *AuthService) requireVerifiedWallet(ctx context.Context, email string) (string, error) {
	address, ok := WalletFromEmail(email)
	if !ok {
		return "", core.ErrInvalidCredentials
	}

	verified, err := s.store.IsWalletVerified(ctx, address)
	if err != nil {
		return "", fmt.Errorf("failed to check wallet verification: %w", err)
	}
	if !verified {
		return "", core.ErrWalletNotVerified
	}
	return address, nil
}

// SignInWithPassword exchanges a verified wallet's derived credential for a session
func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (*core.AuthSession, error) {
	address, err := s.requireVerifiedWallet(ctx, email)
	if err != nil {
		return nil, err
	}

	user, hash, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrUserNotFound) {
		return nil, core.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, core.ErrInvalidCredentials
	}

	if err := s.store.ClearWalletVerified(ctx, address); err != nil {
		return nil, fmt.Errorf("failed to consume verification: %w", err)
	}

	return s.issueSession(ctx, user, address, "password")
}

// SignUp creates an account for a verified wallet and returns its first session
func (s *AuthService) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*core.AuthSession, error) {
	address, err := s.requireVerifiedWallet(ctx, email)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[core.MetadataWalletAddress] = address

	user := &core.User{
		ID:        uuid.New().String(),
		Email:     email,
		Metadata:  meta,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user, hash); err != nil {
		return nil, err
	}

	role := core.RoleUser
	if s.admins[strings.ToLower(address)] {
		role = core.RoleAdmin
	}
	if err := s.store.SetRole(ctx, user.ID, role); err != nil {
		return nil, fmt.Errorf("failed to assign role: %w", err)
	}

	if err := s.store.ClearWalletVerified(ctx, address); err != nil {
		return nil, fmt.Errorf("failed to consume verification: %w", err)
	}

	logger.FromContext(ctx).Info("user signed up", "user_id", user.ID, "address", address, "role", role)
	return s.issueSession(ctx, user, address, "signup")
}

func (s *AuthService) issueSession(ctx context.Context, user *core.User, address, grant string) (*core.AuthSession, error) {
	now := s.now()
	session := &core.Session{
		ID:            uuid.New().String(),
		UserID:        user.ID,
		Email:         user.Email,
		Address:       address,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.opts.RefreshTTL),
		AccessExpiry:  now.Add(s.opts.AccessTTL),
		RefreshID:     uuid.New().String(),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	s.metrics.SessionsIssued.WithLabelValues(grant).Inc()

	if err := s.eventPub.PublishSignIn(ctx, user.ID, address, session.ID); err != nil {
		logger.FromContext(ctx).Warn("failed to publish sign-in event", "error", err)
	}

	return &core.AuthSession{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.opts.AccessTTL / time.Second),
		ExpiresAt:    session.AccessExpiry.Unix(),
		User:         *user,
	}, nil
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (*core.AuthSession, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return nil, err
	}

	if s.now().After(session.RefreshExpiry) {
		return nil, core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}

	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	// The old refresh token stays revoked for as long as it would have lived.
	remaining := session.RefreshExpiry.Sub(s.now())
	if err := s.store.InvalidateToken(ctx, session.RefreshID, remaining); err != nil {
		return nil, fmt.Errorf("failed to invalidate old token: %w", err)
	}

	return s.issueSession(ctx, user, session.Address, "refresh_token")
}

// Logout revokes the refresh token bound to an access token. Access tokens
// minted from it stop validating immediately.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	session, err := s.ValidateAccessToken(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := s.store.InvalidateToken(ctx, session.RefreshID, s.opts.RefreshTTL); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	s.metrics.SessionsRevoked.Inc()

	// The token is already invalidated, which is the part that matters.
	if err := s.eventPub.PublishLogout(ctx, session.UserID, session.Address, session.RefreshID); err != nil {
		logger.FromContext(ctx).Warn("failed to publish logout event", "error", err)
	}

	return nil
}

// ValidateAccessToken parses an access token and checks it was not revoked
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, err
	}

	if s.now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	if session.RefreshID != "" {
		invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

// AuthUID is the data layer's view of who is calling: the user id behind a
// live access token whose account still exists, or "" otherwise.
func (s *AuthService) AuthUID(ctx context.Context, accessToken string) string {
	session, err := s.ValidateAccessToken(ctx, accessToken)
	if err != nil {
		s.metrics.IdentityProbes.WithLabelValues("anonymous").Inc()
		return ""
	}

	if _, err := s.store.GetUser(ctx, session.UserID); err != nil {
		s.metrics.IdentityProbes.WithLabelValues("unknown_user").Inc()
		return ""
	}

	s.metrics.IdentityProbes.WithLabelValues("recognized").Inc()
	return session.UserID
}
