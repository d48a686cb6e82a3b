package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/otcping/walletauth/internal/metrics"
	"github.com/otcping/walletauth/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig wires the services behind the HTTP surface
type RouterConfig struct {
	Auth    *service.AuthService
	Access  *service.AccessService
	Chats   *service.ChatService
	Metrics *metrics.Metrics

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// ChallengeLimiter throttles challenge issuance per client IP; nil disables it.
	ChallengeLimiter *RateLimiter

	// HealthCheck is consulted by /healthz; nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// SetupRouter sets up the Gin router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger())
	if cfg.Metrics != nil {
		router.Use(Instrument(cfg.Metrics))
	}

	// Create handlers
	authHandlers := NewAuthHandlers(cfg.Auth)
	dataHandlers := NewDataHandlers(cfg.Access, cfg.Chats)

	router.GET("/healthz", func(c *gin.Context) {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// Auth routes
	auth := router.Group("/auth/v1")
	{
		auth.POST("/token", authHandlers.Token)
		auth.POST("/signup", authHandlers.SignUp)
		auth.POST("/logout", authHandlers.Logout)
	}

	// Anonymous RPCs
	rpc := router.Group("/rpc")
	{
		challenge := []gin.HandlerFunc{authHandlers.CreateWalletChallenge}
		if cfg.ChallengeLimiter != nil {
			challenge = append([]gin.HandlerFunc{cfg.ChallengeLimiter.Middleware()}, challenge...)
		}
		rpc.POST("/create_wallet_challenge", challenge...)
		rpc.POST("/authenticate_wallet", authHandlers.AuthenticateWallet)
		rpc.POST("/auth_uid_test", authHandlers.AuthUID)
	}

	// Protected RPCs
	protected := router.Group("/rpc")
	protected.Use(AuthMiddleware(cfg.Auth))
	{
		protected.POST("/has_role", dataHandlers.HasRole)
		protected.POST("/get_user_role", dataHandlers.GetUserRole)
		protected.POST("/has_beta_access", dataHandlers.HasBetaAccess)
		protected.POST("/get_beta_settings", dataHandlers.GetBetaSettings)
		protected.POST("/increment_unread_count", dataHandlers.IncrementUnreadCount)
		protected.POST("/set_user_role", dataHandlers.SetUserRole)
		protected.POST("/set_beta_settings", dataHandlers.SetBetaSettings)
		protected.POST("/grant_beta_access", dataHandlers.GrantBetaAccess)
	}

	rest := router.Group("/rest/v1")
	rest.Use(AuthMiddleware(cfg.Auth))
	{
		rest.POST("/chats", dataHandlers.CreateChat)
		rest.GET("/unread", dataHandlers.Unread)
	}

	return router
}
