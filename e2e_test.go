package walletauth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/otcping/walletauth/adapters/events"
	"github.com/otcping/walletauth/adapters/store"
	"github.com/otcping/walletauth/adapters/tokenizer"
	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/internal/metrics"
	"github.com/otcping/walletauth/service"
	transporthttp "github.com/otcping/walletauth/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveBackend struct {
	*HTTPBackend
	store *store.MemoryStore
}

// newLiveBackend serves the real router over httptest
func newLiveBackend(t *testing.T, admins ...string) *liveBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	st := store.NewMemoryStore()
	opts := service.DefaultOptions()
	opts.AdminWallets = admins
	auth := service.NewAuthService(
		tokenizer.NewJWTTokenizer(signKey, opts.Issuer),
		tokenizer.NewEthVerifier(),
		st,
		events.NewWatermillPublisher(pubSub),
		metrics.NewMetrics(prometheus.NewRegistry()),
		opts,
	)

	server := httptest.NewServer(transporthttp.SetupRouter(transporthttp.RouterConfig{
		Auth:   auth,
		Access: service.NewAccessService(st),
		Chats:  service.NewChatService(st),
	}))
	t.Cleanup(server.Close)

	backend, err := NewHTTPBackend(server.URL, WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return &liveBackend{HTTPBackend: backend, store: st}
}

type liveClient struct {
	wallet   *KeyWallet
	provider *Provider
	orch     *Orchestrator
}

func newLiveClient(t *testing.T, backend *liveBackend, wallet *KeyWallet) *liveClient {
	t.Helper()
	if wallet == nil {
		wallet = newKeyWallet(t)
	}
	p := newTestProvider(t, backend, ProviderOptions{})
	return &liveClient{
		wallet:   wallet,
		provider: p,
		orch:     NewOrchestrator(p, wallet, OrchestratorOptions{}),
	}
}

func (c *liveClient) signIn(t *testing.T) {
	t.Helper()
	require.True(t, c.orch.Attempt(context.Background(), c.wallet.Identity()))
}

func TestE2E_WalletSignIn(t *testing.T) {
	ctx := context.Background()
	backend := newLiveBackend(t)
	client := newLiveClient(t, backend, nil)

	client.signIn(t)
	require.True(t, client.provider.ValidateSession(ctx))

	user := client.provider.User()
	require.NotNil(t, user)
	assert.Equal(t, DeriveCredential(client.wallet.Address()).Email, user.Email)
	assert.Equal(t, DisplayName(client.wallet.Address()), user.Metadata[core.MetadataDisplayName])

	// A second process for the same wallet signs in to the same account.
	again := newLiveClient(t, backend, client.wallet)
	again.signIn(t)
	assert.Equal(t, user.ID, again.provider.User().ID)
}

func TestE2E_StaleNonceRejected(t *testing.T) {
	ctx := context.Background()
	backend := newLiveBackend(t)
	w := newKeyWallet(t)

	first, err := backend.CreateWalletChallenge(ctx, w.Address())
	require.NoError(t, err)
	second, err := backend.CreateWalletChallenge(ctx, w.Address())
	require.NoError(t, err)

	sig, err := w.SignMessage(ctx, first.Message, w.Address())
	require.NoError(t, err)
	err = backend.AuthenticateWallet(ctx, w.Address(), first.Message, sig, first.Nonce)
	assert.ErrorIs(t, err, ErrVerificationFailed)

	sig, err = w.SignMessage(ctx, second.Message, w.Address())
	require.NoError(t, err)
	assert.NoError(t, backend.AuthenticateWallet(ctx, w.Address(), second.Message, sig, second.Nonce))
}

func TestE2E_SignOutRevokes(t *testing.T) {
	ctx := context.Background()
	backend := newLiveBackend(t)
	client := newLiveClient(t, backend, nil)
	client.signIn(t)

	session := client.provider.Session()
	client.provider.SignOut(ctx)
	assert.False(t, client.provider.IsAuthenticated())

	uid, err := backend.AuthUID(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Empty(t, uid)

	_, err = backend.RefreshSession(ctx, session.RefreshToken)
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusUnauthorized, backendErr.StatusCode)
}

func TestE2E_GuardAndChats(t *testing.T) {
	ctx := context.Background()
	adminWallet := newKeyWallet(t)
	backend := newLiveBackend(t, adminWallet.Address())

	admin := newLiveClient(t, backend, adminWallet)
	admin.signIn(t)
	member := newLiveClient(t, backend, nil)
	member.signIn(t)

	adminGuard := NewGuard(admin.provider, backend)
	memberGuard := NewGuard(member.provider, backend)

	assert.Equal(t, Decision{Allowed: true}, adminGuard.Check(ctx, Requirement{Role: core.RoleAdmin}))
	assert.Equal(t, Decision{Reason: ReasonMissingRole}, memberGuard.Check(ctx, Requirement{Role: core.RoleAdmin}))
	assert.True(t, memberGuard.Check(ctx, Requirement{Beta: true}).Allowed, "beta is off")

	require.NoError(t, backend.store.SetBetaSettings(ctx, core.BetaSettings{IsBetaActive: true}))
	assert.Equal(t, Decision{Reason: ReasonBetaClosed}, memberGuard.Check(ctx, Requirement{Beta: true}))
	assert.True(t, adminGuard.Check(ctx, Requirement{Beta: true}).Allowed)

	adminChats := NewChats(admin.provider, backend)
	memberChats := NewChats(member.provider, backend)

	chat, err := adminChats.Create(ctx, "OTC desk", []string{member.provider.User().ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{admin.provider.User().ID, member.provider.User().ID}, chat.Participants)

	require.NoError(t, adminChats.NotifySent(ctx, chat.ID))
	unread, err := memberChats.Unread(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{chat.ID: 1}, unread)

	role, err := backend.GetUserRole(ctx, member.provider.Session().AccessToken, admin.provider.User().ID)
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdmin, role)
}

func TestE2E_ChatsWaitForSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	backend := newLiveBackend(t)
	client := newLiveClient(t, backend, nil)
	chats := NewChats(client.provider, backend)

	created := make(chan *core.Chat, 1)
	go func() {
		chat, err := chats.Create(ctx, "pending", nil)
		if err == nil {
			created <- chat
		}
	}()

	client.signIn(t)
	select {
	case chat := <-created:
		assert.Equal(t, client.provider.User().ID, chat.CreatedBy)
	case <-ctx.Done():
		t.Fatal("chat was not created after sign in")
	}
}
