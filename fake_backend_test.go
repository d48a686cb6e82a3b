package walletauth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/otcping/walletauth/core"
)

type verifyCall struct {
	Address, Message, Signature, Nonce string
}

// fakeBackend is an in-memory AuthBackend with switchable failures
type fakeBackend struct {
	mu sync.Mutex

	challenge    *core.WalletChallenge
	challengeErr error
	verifyErr    error
	signInErr    error
	signUpErr    error
	refreshErr   error
	signOutErr   error
	probeUID     *string
	refreshGate  chan struct{} // when set, refreshes wait for it to close

	users   map[string]*core.User // by email
	tokens  map[string]string     // access token -> user id
	refresh map[string]string     // refresh token -> user id
	nextID  int

	challenges    int
	verifications []verifyCall
	signIns       int
	signUps       int
	signUpMeta    map[string]any
	refreshes     int
	probes        int
	signOuts      int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		challenge: &core.WalletChallenge{Message: "Sign in to OTCping: nonce=abc123", Nonce: "abc123"},
		users:     map[string]*core.User{},
		tokens:    map[string]string{},
		refresh:   map[string]string{},
	}
}

func (b *fakeBackend) issueLocked(user *core.User) *core.AuthSession {
	b.nextID++
	access := fmt.Sprintf("access-%d", b.nextID)
	refresh := fmt.Sprintf("refresh-%d", b.nextID)
	b.tokens[access] = user.ID
	b.refresh[refresh] = user.ID
	return &core.AuthSession{AccessToken: access, RefreshToken: refresh, TokenType: "bearer", User: *user}
}

func (b *fakeBackend) userByIDLocked(id string) *core.User {
	for _, u := range b.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (b *fakeBackend) CreateWalletChallenge(ctx context.Context, address string) (*core.WalletChallenge, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.challenges++
	if b.challengeErr != nil {
		return nil, b.challengeErr
	}
	cp := *b.challenge
	return &cp, nil
}

func (b *fakeBackend) AuthenticateWallet(ctx context.Context, address, message, signature, nonce string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verifications = append(b.verifications, verifyCall{address, message, signature, nonce})
	return b.verifyErr
}

func (b *fakeBackend) SignInWithPassword(ctx context.Context, email, password string) (*core.AuthSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signIns++
	if b.signInErr != nil {
		return nil, b.signInErr
	}
	user, ok := b.users[email]
	if !ok {
		return nil, &BackendError{StatusCode: 400, Code: "invalid_grant", Message: "Invalid login credentials"}
	}
	return b.issueLocked(user), nil
}

func (b *fakeBackend) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*core.AuthSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signUps++
	b.signUpMeta = metadata
	if b.signUpErr != nil {
		return nil, b.signUpErr
	}
	b.nextID++
	user := &core.User{ID: fmt.Sprintf("user-%d", b.nextID), Email: email, Metadata: metadata}
	b.users[email] = user
	return b.issueLocked(user), nil
}

func (b *fakeBackend) RefreshSession(ctx context.Context, refreshToken string) (*core.AuthSession, error) {
	b.mu.Lock()
	b.refreshes++
	gate := b.refreshGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refreshErr != nil {
		return nil, b.refreshErr
	}
	userID, ok := b.refresh[refreshToken]
	if !ok {
		return nil, errors.New("invalid refresh token")
	}
	delete(b.refresh, refreshToken)
	return b.issueLocked(b.userByIDLocked(userID)), nil
}

func (b *fakeBackend) SignOut(ctx context.Context, accessToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signOuts++
	if b.signOutErr != nil {
		return b.signOutErr
	}
	delete(b.tokens, accessToken)
	return nil
}

func (b *fakeBackend) AuthUID(ctx context.Context, accessToken string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probes++
	if b.probeUID != nil {
		return *b.probeUID, nil
	}
	return b.tokens[accessToken], nil
}

// seedUser registers an account for address
func (b *fakeBackend) seedUser(address string) *core.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	cred := DeriveCredential(address)
	user := &core.User{
		ID:       fmt.Sprintf("user-%d", b.nextID),
		Email:    cred.Email,
		Metadata: map[string]any{core.MetadataWalletAddress: address},
	}
	b.users[cred.Email] = user
	return user
}

// sessionFor mints a session for an existing user
func (b *fakeBackend) sessionFor(user *core.User) *core.AuthSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(user)
}

func (b *fakeBackend) count(field *int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *field
}

// recordingNotifier captures notifications
type recordingNotifier struct {
	mu   sync.Mutex
	list []Notification
}

func (n *recordingNotifier) Notify(x Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, x)
}

func (n *recordingNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.list...)
}

func (n *recordingNotifier) titles() []string {
	var out []string
	for _, x := range n.all() {
		out = append(out, x.Title)
	}
	return out
}

func (n *recordingNotifier) levels(level NotificationLevel) int {
	count := 0
	for _, x := range n.all() {
		if x.Level == level {
			count++
		}
	}
	return count
}
