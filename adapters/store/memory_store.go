package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/ports"
)

type storedUser struct {
	user *core.User
	hash []byte
}

// MemoryStore is an in-memory implementation of ports.Backend
type MemoryStore struct {
	mu sync.RWMutex

	invalidatedTokens map[string]time.Time
	challenges        map[string]core.Challenge
	verifiedWallets   map[string]time.Time

	usersByID    map[string]*storedUser
	usersByEmail map[string]*storedUser

	roles      map[string]core.Role
	beta       core.BetaSettings
	betaGrants map[string]bool

	chats  map[string]*core.Chat
	unread map[string]map[string]int64 // userID -> chatID -> count

	now func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invalidatedTokens: make(map[string]time.Time),
		challenges:        make(map[string]core.Challenge),
		verifiedWallets:   make(map[string]time.Time),
		usersByID:         make(map[string]*storedUser),
		usersByEmail:      make(map[string]*storedUser),
		roles:             make(map[string]core.Role),
		betaGrants:        make(map[string]bool),
		chats:             make(map[string]*core.Chat),
		unread:            make(map[string]map[string]int64),
		now:               time.Now,
	}
}

var _ ports.Backend = (*MemoryStore)(nil)

func walletKey(address string) string {
	return strings.ToLower(address)
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invalidatedTokens[tokenID] = s.now().Add(expiry)
	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	// The invalidation record outlives the token itself; once it lapses the
	// token has expired anyway.
	if s.now().After(expiryTime) {
		delete(s.invalidatedTokens, tokenID)
		return false, nil
	}

	return true, nil
}

// PutChallenge stores a challenge, replacing any earlier one for the wallet
func (s *MemoryStore) PutChallenge(ctx context.Context, challenge *core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[walletKey(challenge.Address)] = *challenge
	return nil
}

// GetChallenge returns the outstanding challenge for a wallet
func (s *MemoryStore) GetChallenge(ctx context.Context, address string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := walletKey(address)
	c, ok := s.challenges[key]
	if !ok {
		return nil, core.ErrInvalidChallenge
	}
	if s.now().After(c.ExpiresAt) {
		delete(s.challenges, key)
		return nil, core.ErrInvalidChallenge
	}
	return &c, nil
}

// DeleteChallenge drops the outstanding challenge for a wallet
func (s *MemoryStore) DeleteChallenge(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, walletKey(address))
	return nil
}

// MarkWalletVerified records a successful signature verification
func (s *MemoryStore) MarkWalletVerified(ctx context.Context, address string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.verifiedWallets[walletKey(address)] = s.now().Add(ttl)
	return nil
}

// IsWalletVerified reports whether a verification marker is still live
func (s *MemoryStore) IsWalletVerified(ctx context.Context, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := walletKey(address)
	until, ok := s.verifiedWallets[key]
	if !ok {
		return false, nil
	}
	if s.now().After(until) {
		delete(s.verifiedWallets, key)
		return false, nil
	}
	return true, nil
}

// ClearWalletVerified removes the verification marker
func (s *MemoryStore) ClearWalletVerified(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.verifiedWallets, walletKey(address))
	return nil
}

// CreateUser stores a new account
func (s *MemoryStore) CreateUser(ctx context.Context, user *core.User, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.usersByEmail[email]; exists {
		return core.ErrUserExists
	}

	u := *user
	su := &storedUser{user: &u, hash: append([]byte(nil), passwordHash...)}
	s.usersByEmail[email] = su
	s.usersByID[u.ID] = su
	return nil
}

// GetUserByEmail looks an account up by email
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*core.User, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	su, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil, core.ErrUserNotFound
	}
	u := *su.user
	return &u, su.hash, nil
}

// GetUser looks an account up by id
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	su, ok := s.usersByID[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	u := *su.user
	return &u, nil
}

// SetRole assigns a role to a user
func (s *MemoryStore) SetRole(ctx context.Context, userID string, role core.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roles[userID] = role
	return nil
}

// GetRole returns the role of a user
func (s *MemoryStore) GetRole(ctx context.Context, userID string) (core.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.roles[userID], nil
}

// SetBetaSettings replaces the beta settings
func (s *MemoryStore) SetBetaSettings(ctx context.Context, settings core.BetaSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.beta = settings
	return nil
}

// GetBetaSettings returns the beta settings
func (s *MemoryStore) GetBetaSettings(ctx context.Context) (core.BetaSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.beta, nil
}

// GrantBetaAccess adds a user to the beta allow-list
func (s *MemoryStore) GrantBetaAccess(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.betaGrants[userID] = true
	return nil
}

// HasBetaGrant reports whether a user is on the beta allow-list
func (s *MemoryStore) HasBetaGrant(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.betaGrants[userID], nil
}

// CreateChat stores a chat
func (s *MemoryStore) CreateChat(ctx context.Context, chat *core.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *chat
	c.Participants = append([]string(nil), chat.Participants...)
	s.chats[c.ID] = &c
	return nil
}

// GetChat returns a chat by id
func (s *MemoryStore) GetChat(ctx context.Context, id string) (*core.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[id]
	if !ok {
		return nil, core.ErrChatNotFound
	}
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	return &out, nil
}

// IncrementUnread bumps the unread counter of one participant
func (s *MemoryStore) IncrementUnread(ctx context.Context, chatID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, ok := s.unread[userID]
	if !ok {
		counts = make(map[string]int64)
		s.unread[userID] = counts
	}
	counts[chatID]++
	return nil
}

// UnreadCounts returns the unread counters of a user keyed by chat id
func (s *MemoryStore) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(s.unread[userID]))
	for chatID, n := range s.unread[userID] {
		out[chatID] = n
	}
	return out, nil
}
