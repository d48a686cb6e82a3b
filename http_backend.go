package walletauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/otcping/walletauth/core"
)

// HTTPBackend talks to the hosted backend over its JSON RPC and auth routes.
// It implements both AuthBackend and DataBackend.
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPBackendOption configures an HTTPBackend
type HTTPBackendOption func(*HTTPBackend)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c *http.Client) HTTPBackendOption {
	return func(b *HTTPBackend) {
		b.httpClient = c
	}
}

// NewHTTPBackend creates a client for the backend at baseURL
func NewHTTPBackend(baseURL string, opts ...HTTPBackendOption) (*HTTPBackend, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}

	b := &HTTPBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do sends a JSON request and decodes a JSON response into out when non-nil
func (b *HTTPBackend) do(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorBody
		if json.Unmarshal(raw, &e) != nil || e.Message == "" {
			e.Message = strings.TrimSpace(string(raw))
		}
		return &BackendError{StatusCode: resp.StatusCode, Code: e.Code, Message: e.Message}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

type rpcResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Nonce   string `json:"nonce"`
	Error   string `json:"error"`
}

// CreateWalletChallenge calls create_wallet_challenge
func (b *HTTPBackend) CreateWalletChallenge(ctx context.Context, address string) (*core.WalletChallenge, error) {
	var res rpcResult
	if err := b.do(ctx, http.MethodPost, "/rpc/create_wallet_challenge", "", map[string]string{"wallet_addr": address}, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrNoChallenge, res.Error)
	}
	if res.Message == "" || res.Nonce == "" {
		return nil, fmt.Errorf("%w: malformed response", ErrNoChallenge)
	}
	return &core.WalletChallenge{Message: res.Message, Nonce: res.Nonce}, nil
}

// AuthenticateWallet calls authenticate_wallet
func (b *HTTPBackend) AuthenticateWallet(ctx context.Context, address, message, signature, nonce string) error {
	var res rpcResult
	err := b.do(ctx, http.MethodPost, "/rpc/authenticate_wallet", "", map[string]string{
		"wallet_addr":    address,
		"signature_msg":  message,
		"user_signature": signature,
		"nonce_value":    nonce,
	}, &res)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%w: %s", ErrVerificationFailed, res.Error)
	}
	return nil
}

// SignInWithPassword uses the password grant
func (b *HTTPBackend) SignInWithPassword(ctx context.Context, email, password string) (*core.AuthSession, error) {
	var session core.AuthSession
	err := b.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SignUp creates an account and returns its first session
func (b *HTTPBackend) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*core.AuthSession, error) {
	var session core.AuthSession
	err := b.do(ctx, http.MethodPost, "/auth/v1/signup", "", map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// RefreshSession uses the refresh_token grant
func (b *HTTPBackend) RefreshSession(ctx context.Context, refreshToken string) (*core.AuthSession, error) {
	var session core.AuthSession
	err := b.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", map[string]string{
		"refresh_token": refreshToken,
	}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SignOut revokes the session
func (b *HTTPBackend) SignOut(ctx context.Context, accessToken string) error {
	return b.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

// AuthUID calls auth_uid_test
func (b *HTTPBackend) AuthUID(ctx context.Context, accessToken string) (string, error) {
	var uid *string
	if err := b.do(ctx, http.MethodPost, "/rpc/auth_uid_test", accessToken, nil, &uid); err != nil {
		return "", err
	}
	if uid == nil {
		return "", nil
	}
	return *uid, nil
}

// HasRole calls has_role
func (b *HTTPBackend) HasRole(ctx context.Context, accessToken, userID string, role core.Role) (bool, error) {
	var ok bool
	err := b.do(ctx, http.MethodPost, "/rpc/has_role", accessToken, map[string]string{
		"_user_id": userID,
		"_role":    string(role),
	}, &ok)
	return ok, err
}

// GetUserRole calls get_user_role; "" means no role
func (b *HTTPBackend) GetUserRole(ctx context.Context, accessToken, userID string) (core.Role, error) {
	var role *core.Role
	if err := b.do(ctx, http.MethodPost, "/rpc/get_user_role", accessToken, map[string]string{"_user_id": userID}, &role); err != nil {
		return "", err
	}
	if role == nil {
		return "", nil
	}
	return *role, nil
}

// GetBetaSettings calls get_beta_settings
func (b *HTTPBackend) GetBetaSettings(ctx context.Context, accessToken string) (core.BetaSettings, error) {
	var settings core.BetaSettings
	err := b.do(ctx, http.MethodPost, "/rpc/get_beta_settings", accessToken, nil, &settings)
	return settings, err
}

// HasBetaAccess calls has_beta_access
func (b *HTTPBackend) HasBetaAccess(ctx context.Context, accessToken, userID string) (bool, error) {
	var ok bool
	err := b.do(ctx, http.MethodPost, "/rpc/has_beta_access", accessToken, map[string]string{"check_user_id": userID}, &ok)
	return ok, err
}

// CreateChat creates a chat owned by the caller
func (b *HTTPBackend) CreateChat(ctx context.Context, accessToken, name string, participants []string) (*core.Chat, error) {
	var chat core.Chat
	err := b.do(ctx, http.MethodPost, "/rest/v1/chats", accessToken, map[string]any{
		"name":         name,
		"participants": participants,
	}, &chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// IncrementUnreadCount calls increment_unread_count
func (b *HTTPBackend) IncrementUnreadCount(ctx context.Context, accessToken, chatID, senderID string) error {
	return b.do(ctx, http.MethodPost, "/rpc/increment_unread_count", accessToken, map[string]string{
		"chat_id":   chatID,
		"sender_id": senderID,
	}, nil)
}

// UnreadCounts returns the caller's unread counters keyed by chat id
func (b *HTTPBackend) UnreadCounts(ctx context.Context, accessToken string) (map[string]int64, error) {
	counts := map[string]int64{}
	if err := b.do(ctx, http.MethodGet, "/rest/v1/unread", accessToken, nil, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

var (
	_ AuthBackend = (*HTTPBackend)(nil)
	_ DataBackend = (*HTTPBackend)(nil)
)
