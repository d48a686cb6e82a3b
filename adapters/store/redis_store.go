package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of ports.Backend
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "walletauth:",
	}
}

var _ ports.Backend = (*RedisStore)(nil)

func (s *RedisStore) key(parts ...string) string {
	return s.prefix + strings.Join(parts, ":")
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	if err := s.client.Set(ctx, s.key("invalidated", tokenID), "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.key("invalidated", tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	return val > 0, nil
}

type challengeRecord struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PutChallenge stores a challenge with a TTL matching its expiry
func (s *RedisStore) PutChallenge(ctx context.Context, challenge *core.Challenge) error {
	payload, err := json.Marshal(challengeRecord{
		Address:   challenge.Address,
		Nonce:     challenge.Nonce,
		Message:   challenge.Message,
		IssuedAt:  challenge.IssuedAt,
		ExpiresAt: challenge.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode challenge: %w", err)
	}

	ttl := time.Until(challenge.ExpiresAt)
	if ttl <= 0 {
		return core.ErrInvalidChallenge
	}
	if err := s.client.Set(ctx, s.key("challenge", walletKey(challenge.Address)), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// GetChallenge returns the outstanding challenge for a wallet
func (s *RedisStore) GetChallenge(ctx context.Context, address string) (*core.Challenge, error) {
	raw, err := s.client.Get(ctx, s.key("challenge", walletKey(address))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrInvalidChallenge
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}

	var rec challengeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode challenge: %w", err)
	}
	return &core.Challenge{
		Address:   rec.Address,
		Nonce:     rec.Nonce,
		Message:   rec.Message,
		IssuedAt:  rec.IssuedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// DeleteChallenge drops the outstanding challenge for a wallet
func (s *RedisStore) DeleteChallenge(ctx context.Context, address string) error {
	if err := s.client.Del(ctx, s.key("challenge", walletKey(address))).Err(); err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	return nil
}

// MarkWalletVerified records a successful signature verification
func (s *RedisStore) MarkWalletVerified(ctx context.Context, address string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key("verified", walletKey(address)), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark wallet verified: %w", err)
	}
	return nil
}

// IsWalletVerified reports whether a verification marker is still live
func (s *RedisStore) IsWalletVerified(ctx context.Context, address string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key("verified", walletKey(address))).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check wallet verification: %w", err)
	}
	return n > 0, nil
}

// ClearWalletVerified removes the verification marker
func (s *RedisStore) ClearWalletVerified(ctx context.Context, address string) error {
	if err := s.client.Del(ctx, s.key("verified", walletKey(address))).Err(); err != nil {
		return fmt.Errorf("failed to clear wallet verification: %w", err)
	}
	return nil
}

type userRecord struct {
	User         core.User `json:"user"`
	PasswordHash []byte    `json:"password_hash"`
}

// CreateUser stores a new account; the email index is claimed with SETNX
func (s *RedisStore) CreateUser(ctx context.Context, user *core.User, passwordHash []byte) error {
	payload, err := json.Marshal(userRecord{User: *user, PasswordHash: passwordHash})
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	claimed, err := s.client.SetNX(ctx, s.key("user", "email", strings.ToLower(user.Email)), user.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim email: %w", err)
	}
	if !claimed {
		return core.ErrUserExists
	}

	if err := s.client.Set(ctx, s.key("user", "id", user.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

func (s *RedisStore) loadUser(ctx context.Context, id string) (*userRecord, error) {
	raw, err := s.client.Get(ctx, s.key("user", "id", id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &rec, nil
}

// GetUserByEmail looks an account up by email
func (s *RedisStore) GetUserByEmail(ctx context.Context, email string) (*core.User, []byte, error) {
	id, err := s.client.Get(ctx, s.key("user", "email", strings.ToLower(email))).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve email: %w", err)
	}

	rec, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &rec.User, rec.PasswordHash, nil
}

// GetUser looks an account up by id
func (s *RedisStore) GetUser(ctx context.Context, id string) (*core.User, error) {
	rec, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rec.User, nil
}

// SetRole assigns a role to a user
func (s *RedisStore) SetRole(ctx context.Context, userID string, role core.Role) error {
	if err := s.client.HSet(ctx, s.key("roles"), userID, string(role)).Err(); err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	return nil
}

// GetRole returns the role of a user
func (s *RedisStore) GetRole(ctx context.Context, userID string) (core.Role, error) {
	role, err := s.client.HGet(ctx, s.key("roles"), userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get role: %w", err)
	}
	return core.Role(role), nil
}

// SetBetaSettings replaces the beta settings
func (s *RedisStore) SetBetaSettings(ctx context.Context, settings core.BetaSettings) error {
	val := "0"
	if settings.IsBetaActive {
		val = "1"
	}
	if err := s.client.Set(ctx, s.key("beta", "active"), val, 0).Err(); err != nil {
		return fmt.Errorf("failed to set beta settings: %w", err)
	}
	return nil
}

// GetBetaSettings returns the beta settings
func (s *RedisStore) GetBetaSettings(ctx context.Context) (core.BetaSettings, error) {
	val, err := s.client.Get(ctx, s.key("beta", "active")).Result()
	if errors.Is(err, redis.Nil) {
		return core.BetaSettings{}, nil
	}
	if err != nil {
		return core.BetaSettings{}, fmt.Errorf("failed to get beta settings: %w", err)
	}
	return core.BetaSettings{IsBetaActive: val == "1"}, nil
}

// GrantBetaAccess adds a user to the beta allow-list
func (s *RedisStore) GrantBetaAccess(ctx context.Context, userID string) error {
	if err := s.client.SAdd(ctx, s.key("beta", "grants"), userID).Err(); err != nil {
		return fmt.Errorf("failed to grant beta access: %w", err)
	}
	return nil
}

// HasBetaGrant reports whether a user is on the beta allow-list
func (s *RedisStore) HasBetaGrant(ctx context.Context, userID string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key("beta", "grants"), userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check beta access: %w", err)
	}
	return ok, nil
}

// CreateChat stores a chat
func (s *RedisStore) CreateChat(ctx context.Context, chat *core.Chat) error {
	payload, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("failed to encode chat: %w", err)
	}
	if err := s.client.Set(ctx, s.key("chat", chat.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store chat: %w", err)
	}
	return nil
}

// GetChat returns a chat by id
func (s *RedisStore) GetChat(ctx context.Context, id string) (*core.Chat, error) {
	raw, err := s.client.Get(ctx, s.key("chat", id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}

	var chat core.Chat
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, fmt.Errorf("failed to decode chat: %w", err)
	}
	return &chat, nil
}

// IncrementUnread bumps the unread counter of one participant
func (s *RedisStore) IncrementUnread(ctx context.Context, chatID, userID string) error {
	if err := s.client.HIncrBy(ctx, s.key("unread", userID), chatID, 1).Err(); err != nil {
		return fmt.Errorf("failed to increment unread count: %w", err)
	}
	return nil
}

// UnreadCounts returns the unread counters of a user keyed by chat id
func (s *RedisStore) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.key("unread", userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load unread counts: %w", err)
	}

	out := make(map[string]int64, len(raw))
	for chatID, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt unread counter for chat %s: %w", chatID, err)
		}
		out[chatID] = n
	}
	return out, nil
}

// Ping checks connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
