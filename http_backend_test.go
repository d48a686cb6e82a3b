package walletauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPBackend_InvalidURL(t *testing.T) {
	_, err := NewHTTPBackend("ftp://example.com")
	assert.Error(t, err)

	_, err = NewHTTPBackend("://")
	assert.Error(t, err)
}

func TestHTTPBackend_Responses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc/create_wallet_challenge", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"Invalid wallet address"}`))
	})
	mux.HandleFunc("/rpc/authenticate_wallet", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"internal_error","message":"Internal server error"}`))
	})
	mux.HandleFunc("/rpc/auth_uid_test", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`null`))
	})
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream down`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx := context.Background()
	b, err := NewHTTPBackend(server.URL + "/")
	require.NoError(t, err)

	_, err = b.CreateWalletChallenge(ctx, "nope")
	assert.ErrorIs(t, err, ErrNoChallenge)

	err = b.AuthenticateWallet(ctx, "a", "m", "s", "n")
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusInternalServerError, backendErr.StatusCode)
	assert.Equal(t, "internal_error", backendErr.Code)

	uid, err := b.AuthUID(ctx, "token-1")
	require.NoError(t, err)
	assert.Empty(t, uid)

	err = b.SignOut(ctx, "token-1")
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "upstream down", backendErr.Message)
}
