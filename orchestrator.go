package walletauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/otcping/walletauth/core"
)

// DefaultDebounce lets wallet reconnection settle before an attempt
const DefaultDebounce = time.Second

// OrchestratorOptions configures an Orchestrator. Zero values select the defaults.
type OrchestratorOptions struct {
	Debounce time.Duration
	Notifier Notifier
	Logger   *slog.Logger

	// SuppressRejectionToast hides the error notification when the user
	// declines to sign. Rejections never count towards backoff either way.
	SuppressRejectionToast bool

	// Now is the clock used for backoff decisions
	Now func() time.Time
}

// Orchestrator signs a connected wallet in without user interaction beyond
// the wallet's own signature prompt
type Orchestrator struct {
	provider *Provider
	wallet   Wallet
	backoff  *Backoff

	debounce         time.Duration
	notifier         Notifier
	log              *slog.Logger
	suppressRejected bool
	now              func() time.Time

	authenticating atomic.Bool
}

// NewOrchestrator creates an Orchestrator driving provider with wallet
func NewOrchestrator(provider *Provider, wallet Wallet, opts OrchestratorOptions) *Orchestrator {
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Orchestrator{
		provider:         provider,
		wallet:           wallet,
		backoff:          &Backoff{},
		debounce:         opts.Debounce,
		notifier:         opts.Notifier,
		log:              opts.Logger.With("component", "auth_orchestrator"),
		suppressRejected: opts.SuppressRejectionToast,
		now:              opts.Now,
	}
}

// Backoff exposes the failure tracking
func (o *Orchestrator) Backoff() *Backoff {
	return o.backoff
}

// IsAuthenticating reports whether an attempt is in flight
func (o *Orchestrator) IsAuthenticating() bool {
	return o.authenticating.Load()
}

// IsAuthenticated reports whether the Provider holds a validated session
func (o *Orchestrator) IsAuthenticated() bool {
	return o.provider.IsAuthenticated()
}

// Run forwards wallet identities to the Provider and, once they settle for
// the debounce period, attempts authentication. It returns when ctx is done
// or identities is closed, after any in-flight attempt finishes.
func (o *Orchestrator) Run(ctx context.Context, identities <-chan core.WalletIdentity) error {
	var (
		wg      sync.WaitGroup
		latest  core.WalletIdentity
		timer   *time.Timer
		settled <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case identity, ok := <-identities:
			if !ok {
				return nil
			}
			latest = identity
			o.provider.WalletChanged(ctx, identity)

			if timer == nil {
				timer = time.NewTimer(o.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(o.debounce)
			}
			settled = timer.C

		case <-settled:
			settled = nil
			identity := latest
			wg.Add(1)
			go func() {
				defer wg.Done()
				o.Attempt(ctx, identity)
			}()
		}
	}
}

// Attempt runs challenge, sign and verify once for identity if every
// precondition holds. It reports whether a session was established.
func (o *Orchestrator) Attempt(ctx context.Context, identity core.WalletIdentity) bool {
	if !identity.Ready() {
		return false
	}
	if o.provider.Wallet() != identity {
		o.provider.WalletChanged(ctx, identity)
	}
	if o.provider.IsAuthenticated() {
		return false
	}

	now := o.now()
	if !o.backoff.Allow(now) {
		o.log.Debug("authentication backing off",
			"failures", o.backoff.Failures(),
			"remaining", o.backoff.Remaining(now))
		return false
	}

	if !o.authenticating.CompareAndSwap(false, true) {
		return false
	}
	defer o.authenticating.Store(false)

	o.log.Info("starting wallet authentication", "address", identity.Address)
	if err := o.authenticate(ctx, identity.Address); err != nil {
		o.fail(ctx, err)
		return false
	}

	o.backoff.Reset()
	o.notify(ctx, Notification{
		Level:   LevelSuccess,
		Title:   "Wallet connected",
		Message: "Signed in as " + DisplayName(identity.Address),
	})
	return true
}

// signError marks a failure raised by the wallet while producing a signature.
// Only these are candidates for user rejection.
type signError struct{ err error }

func (e *signError) Error() string { return e.err.Error() }
func (e *signError) Unwrap() error { return e.err }

func (o *Orchestrator) authenticate(ctx context.Context, address string) error {
	challenge := o.provider.CreateWalletChallenge(ctx)
	if challenge == nil {
		return ErrNoChallenge
	}

	signer, err := o.wallet.Client(ctx, address)
	if err != nil {
		return &signError{fmt.Errorf("wallet client unavailable: %w", err)}
	}

	signature, err := signer.SignMessage(ctx, challenge.Message, address)
	if err != nil {
		return &signError{fmt.Errorf("failed to sign challenge: %w", err)}
	}

	return o.provider.authenticateAs(ctx, address, signature, challenge.Message, challenge.Nonce)
}

// rejectedByUser reports whether the wallet refused to sign on the user's behalf
func rejectedByUser(err error) bool {
	var se *signError
	return errors.As(err, &se) && IsUserRejection(se.err)
}

func (o *Orchestrator) fail(ctx context.Context, err error) {
	// A wallet switch mid-attempt is not a failure; the new identity gets its own attempt.
	if errors.Is(err, ErrWalletChanged) {
		o.log.Info("wallet changed, attempt abandoned", "error", err)
		return
	}

	rejected := rejectedByUser(err)
	if rejected {
		o.log.Info("signature request rejected", "error", err)
	} else {
		o.backoff.RecordFailure(o.now())
		o.log.Error("wallet authentication failed", "failures", o.backoff.Failures(), "error", err)
	}

	if rejected && o.suppressRejected {
		return
	}
	o.notify(ctx, Notification{
		Level:   LevelError,
		Title:   "Authentication failed",
		Message: failureMessage(err),
	})
}

func failureMessage(err error) string {
	msg := err.Error()
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg + " Please try refreshing the page."
}

// notify drops notifications once ctx is done
func (o *Orchestrator) notify(ctx context.Context, n Notification) {
	if ctx.Err() != nil {
		return
	}
	o.notifier.Notify(n)
}
