package walletauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/otcping/walletauth/core"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultPropagationDelay is the pause between a refresh and the identity probe
	DefaultPropagationDelay = 500 * time.Millisecond

	// DefaultGracePeriod is how long after mount wallet changes are not acted on
	DefaultGracePeriod = 2 * time.Second
)

// AuthState is a snapshot of the Provider's state
type AuthState struct {
	User    *core.User
	Session *core.AuthSession
	Loading bool
}

// AuthResult reports the outcome of AuthenticateWallet
type AuthResult struct {
	Success bool
	Error   string
}

// ProviderOptions configures a Provider. Zero values select the defaults.
type ProviderOptions struct {
	Storage          SessionStorage
	Notifier         Notifier
	Logger           *slog.Logger
	PropagationDelay time.Duration
	GracePeriod      time.Duration
}

// Provider owns the process-wide session. It is the only writer of
// AuthState; everything else reads snapshots or subscribes.
type Provider struct {
	backend          AuthBackend
	storage          SessionStorage
	notifier         Notifier
	log              *slog.Logger
	propagationDelay time.Duration
	validating       singleflight.Group

	mu           sync.RWMutex
	state        AuthState
	wallet       core.WalletIdentity
	observed     bool
	inGrace      bool
	graceTimer   *time.Timer
	ready        chan struct{}
	readyPending bool
	subs         map[int]chan AuthState
	nextSub      int
	closed       bool
}

// NewProvider mounts a Provider. A persisted session is restored only if the
// backend still recognizes it. Wallet changes are held back for the grace
// period, after which the latest observed identity is reconciled once.
func NewProvider(ctx context.Context, backend AuthBackend, opts ProviderOptions) *Provider {
	if opts.Storage == nil {
		opts.Storage = NewMemoryStore()
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PropagationDelay == 0 {
		opts.PropagationDelay = DefaultPropagationDelay
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = DefaultGracePeriod
	}

	p := &Provider{
		backend:          backend,
		storage:          opts.Storage,
		notifier:         opts.Notifier,
		log:              opts.Logger.With("component", "auth_provider"),
		propagationDelay: opts.PropagationDelay,
		state:            AuthState{Loading: true},
		inGrace:          true,
		ready:            make(chan struct{}),
		readyPending:     true,
		subs:             make(map[int]chan AuthState),
	}

	p.restore(ctx)

	p.mu.Lock()
	p.state.Loading = false
	p.graceTimer = time.AfterFunc(opts.GracePeriod, p.endGrace)
	p.broadcastLocked()
	p.mu.Unlock()

	return p
}

func (p *Provider) restore(ctx context.Context) {
	stored, err := p.storage.Load(ctx)
	if err != nil {
		p.log.Warn("failed to load stored session", "error", err)
		return
	}
	if stored == nil {
		return
	}

	refreshed, ok := p.validate(ctx, stored)
	if !ok {
		p.log.Info("stored session is no longer valid")
		if err := p.storage.Clear(ctx); err != nil {
			p.log.Warn("failed to clear stored session", "error", err)
		}
		return
	}

	p.commit(ctx, refreshed)
	p.log.Info("session restored", "user_id", refreshed.User.ID)
}

func (p *Provider) endGrace() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.inGrace = false
	identity, observed := p.wallet, p.observed
	p.mu.Unlock()

	if observed {
		p.reconcile(context.Background(), identity)
	}
}

// Close stops the grace timer and closes every subscription
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	if p.graceTimer != nil {
		p.graceTimer.Stop()
	}
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
}

// State returns a snapshot of the current state
func (p *Provider) State() AuthState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// User returns the signed-in user or nil
func (p *Provider) User() *core.User {
	return p.State().User
}

// Session returns the current session or nil
func (p *Provider) Session() *core.AuthSession {
	return p.State().Session
}

// IsAuthenticated reports whether a validated session is held
func (p *Provider) IsAuthenticated() bool {
	return p.State().User != nil
}

// Wallet returns the last wallet identity the Provider observed
func (p *Provider) Wallet() core.WalletIdentity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.wallet
}

// Subscribe returns a channel that receives the latest state after every
// change. Slow readers only see the most recent state. Call the returned
// function to unsubscribe.
func (p *Provider) Subscribe() (<-chan AuthState, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan AuthState, 1)
	if p.closed {
		close(ch)
		return ch, func() {}
	}

	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	ch <- p.state

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			close(sub)
			delete(p.subs, id)
		}
	}
}

func (p *Provider) broadcastLocked() {
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- p.state
	}
}

// WaitReady blocks until a validated session is held and returns it
func (p *Provider) WaitReady(ctx context.Context) (*core.AuthSession, error) {
	for {
		p.mu.RLock()
		ready := p.ready
		p.mu.RUnlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		p.mu.RLock()
		session, current := p.state.Session, p.ready == ready
		p.mu.RUnlock()
		if session != nil && current {
			return session, nil
		}
	}
}

// commit installs a validated session and persists it
func (p *Provider) commit(ctx context.Context, session *core.AuthSession) {
	p.mu.Lock()
	p.commitLocked(session)
	p.mu.Unlock()

	p.persist(ctx, session)
}

// commitLocked installs a validated session and opens the ready gate
func (p *Provider) commitLocked(session *core.AuthSession) {
	user := session.User
	p.state = AuthState{User: &user, Session: session}
	if p.readyPending {
		close(p.ready)
		p.readyPending = false
	}
	p.broadcastLocked()
}

func (p *Provider) persist(ctx context.Context, session *core.AuthSession) {
	if err := p.storage.Save(ctx, session); err != nil {
		p.log.Warn("failed to persist session", "error", err)
	}
}

// clearLocked drops the session and re-arms the ready gate. It returns the
// session that was held.
func (p *Provider) clearLocked() *core.AuthSession {
	prev := p.state.Session
	p.state = AuthState{}
	if !p.readyPending {
		p.ready = make(chan struct{})
		p.readyPending = true
	}
	p.broadcastLocked()
	return prev
}

// SignOut ends the session. The backend is told at most once per session,
// and local state is cleared whether or not it acknowledges.
func (p *Provider) SignOut(ctx context.Context) {
	p.mu.Lock()
	session := p.clearLocked()
	p.mu.Unlock()

	if err := p.storage.Clear(ctx); err != nil {
		p.log.Warn("failed to clear stored session", "error", err)
	}
	if session == nil {
		return
	}

	if err := p.backend.SignOut(ctx, session.AccessToken); err != nil {
		p.log.Error("sign out failed", "user_id", session.User.ID, "error", err)
		return
	}

	p.log.Info("signed out", "user_id", session.User.ID)
	p.notifier.Notify(Notification{
		Level:   LevelInfo,
		Title:   "Signed out",
		Message: "You have been signed out.",
	})
}

// WalletChanged records the wallet's current identity. Outside the grace
// period a disconnect, or a switch to another address, ends the session.
func (p *Provider) WalletChanged(ctx context.Context, identity core.WalletIdentity) {
	p.mu.Lock()
	p.wallet = identity
	p.observed = true
	inGrace := p.inGrace
	p.mu.Unlock()

	if inGrace {
		return
	}
	p.reconcile(ctx, identity)
}

func (p *Provider) reconcile(ctx context.Context, identity core.WalletIdentity) {
	user := p.User()
	if user == nil {
		return
	}

	switch {
	case !identity.IsConnected:
		p.log.Info("wallet disconnected, signing out", "user_id", user.ID)
		p.SignOut(ctx)
	case identity.Address != "" && !strings.EqualFold(identity.Address, sessionWallet(user)):
		p.log.Info("wallet address changed, signing out", "user_id", user.ID, "address", identity.Address)
		p.SignOut(ctx)
	}
}

// sessionWallet is the address a session was established for
func sessionWallet(user *core.User) string {
	if addr := user.WalletAddress(); addr != "" {
		return addr
	}
	return strings.TrimSuffix(user.Email, WalletEmailDomain)
}

func (p *Provider) connectedAddress() (string, error) {
	identity := p.Wallet()
	if !identity.Ready() {
		return "", errors.New("wallet is not connected")
	}
	return identity.Address, nil
}

// CreateWalletChallenge asks the backend for a challenge for the connected
// wallet. Failures are logged and reported as nil.
func (p *Provider) CreateWalletChallenge(ctx context.Context) *core.WalletChallenge {
	address, err := p.connectedAddress()
	if err != nil {
		p.log.Warn("cannot create challenge", "error", err)
		return nil
	}

	challenge, err := p.backend.CreateWalletChallenge(ctx, address)
	if err != nil {
		p.log.Error("failed to create wallet challenge", "address", address, "error", err)
		return nil
	}
	if challenge == nil || challenge.Message == "" || challenge.Nonce == "" {
		p.log.Error("malformed wallet challenge", "address", address)
		return nil
	}
	return challenge
}

// AuthenticateWallet turns a signed challenge into a validated session:
// verify, sign in or sign up with the derived credential, refresh, wait for
// the token to propagate, then confirm the data layer sees the same user.
func (p *Provider) AuthenticateWallet(ctx context.Context, signature, message, nonce string) AuthResult {
	address, err := p.connectedAddress()
	if err != nil {
		p.log.Error("wallet authentication failed", "error", err)
		return AuthResult{Error: err.Error()}
	}
	if err := p.authenticateAs(ctx, address, signature, message, nonce); err != nil {
		return AuthResult{Error: err.Error()}
	}
	return AuthResult{Success: true}
}

// authenticateAs establishes a session for the address that produced
// signature. The session is committed only while that address is still the
// connected wallet; otherwise it is revoked and ErrWalletChanged returned.
func (p *Provider) authenticateAs(ctx context.Context, address, signature, message, nonce string) error {
	if !p.walletIs(address) {
		p.log.Info("wallet changed before verification", "address", address)
		return ErrWalletChanged
	}

	session, err := p.authenticateWallet(ctx, address, signature, message, nonce)
	if err != nil {
		p.log.Error("wallet authentication failed", "address", address, "error", err)
		return err
	}

	if !p.commitFor(ctx, address, session) {
		p.log.Info("wallet changed during authentication, discarding session", "address", address)
		if err := p.backend.SignOut(ctx, session.AccessToken); err != nil {
			p.log.Warn("failed to revoke discarded session", "error", err)
		}
		return ErrWalletChanged
	}

	p.log.Info("wallet authenticated", "user_id", session.User.ID)
	return nil
}

// walletIs reports whether address is the connected wallet
func (p *Provider) walletIs(address string) bool {
	w := p.Wallet()
	return w.Ready() && strings.EqualFold(w.Address, address)
}

// commitFor commits session if address is still the connected wallet
func (p *Provider) commitFor(ctx context.Context, address string, session *core.AuthSession) bool {
	p.mu.Lock()
	ok := p.wallet.Ready() && strings.EqualFold(p.wallet.Address, address)
	if ok {
		p.commitLocked(session)
	}
	p.mu.Unlock()

	if ok {
		p.persist(ctx, session)
	}
	return ok
}

func (p *Provider) authenticateWallet(ctx context.Context, address, signature, message, nonce string) (*core.AuthSession, error) {
	if err := p.backend.AuthenticateWallet(ctx, address, message, signature, nonce); err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}

	cred := DeriveCredential(address)
	session, err := p.backend.SignInWithPassword(ctx, cred.Email, cred.Password)
	if err != nil {
		p.log.Debug("sign in failed, trying sign up", "address", address, "error", err)
		session, err = p.backend.SignUp(ctx, cred.Email, cred.Password, map[string]any{
			core.MetadataWalletAddress: address,
			core.MetadataDisplayName:   DisplayName(address),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to establish session: %w", err)
		}
	}

	refreshed, err := p.backend.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	if err := sleep(ctx, p.propagationDelay); err != nil {
		return nil, err
	}

	if err := p.probe(ctx, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// probe checks that the data layer resolves the session's token to its user
func (p *Provider) probe(ctx context.Context, session *core.AuthSession) error {
	uid, err := p.backend.AuthUID(ctx, session.AccessToken)
	if err != nil {
		return fmt.Errorf("identity probe failed: %w", err)
	}
	if uid == "" || uid != session.User.ID {
		return fmt.Errorf("%w: probe returned %q for user %q", ErrSessionNotRecognized, uid, session.User.ID)
	}
	return nil
}

// validate refreshes session and probes the refreshed token
func (p *Provider) validate(ctx context.Context, session *core.AuthSession) (*core.AuthSession, bool) {
	refreshed, err := p.backend.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		p.log.Warn("session refresh failed", "error", err)
		return nil, false
	}
	if err := p.probe(ctx, refreshed); err != nil {
		p.log.Warn("session validation failed", "error", err)
		return nil, false
	}
	return refreshed, true
}

// ValidateSession re-confirms the held session against the backend. The
// rotated tokens replace the held ones when the session is still current.
// Concurrent calls share one refresh, since rotation would fail all but one.
func (p *Provider) ValidateSession(ctx context.Context) bool {
	v, _, _ := p.validating.Do("session", func() (any, error) {
		return p.validateSession(ctx), nil
	})
	return v.(bool)
}

func (p *Provider) validateSession(ctx context.Context) bool {
	session := p.Session()
	if session == nil {
		return false
	}

	refreshed, ok := p.validate(ctx, session)
	if !ok {
		return false
	}

	p.mu.Lock()
	current := p.state.Session == session
	if current {
		p.commitLocked(refreshed)
	}
	p.mu.Unlock()

	if current {
		p.persist(ctx, refreshed)
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
