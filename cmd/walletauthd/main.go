package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/otcping/walletauth/adapters/events"
	"github.com/otcping/walletauth/adapters/store"
	"github.com/otcping/walletauth/adapters/tokenizer"
	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/internal/config"
	"github.com/otcping/walletauth/internal/logger"
	"github.com/otcping/walletauth/internal/metrics"
	"github.com/otcping/walletauth/ports"
	"github.com/otcping/walletauth/service"
	transporthttp "github.com/otcping/walletauth/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(os.Stdout, cfg.LogFormat, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	signKey, err := loadSigningKey(cfg.SigningKeyFile)
	if err != nil {
		slog.Error("failed to load signing key", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	wmLogger := watermill.NewSlogLogger(slog.Default())

	var (
		backend     ports.Backend
		publisher   message.Publisher
		healthCheck func(ctx context.Context) error
	)
	switch cfg.StoreBackend {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		redisStore := store.NewRedisStore(redisClient)
		if err := redisStore.Ping(ctx); err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		backend = redisStore
		healthCheck = redisStore.Ping

		publisher, err = redisstream.NewPublisher(redisstream.PublisherConfig{Client: redisClient}, wmLogger)
		if err != nil {
			slog.Error("failed to create redis stream publisher", "error", err)
			os.Exit(1)
		}
		slog.Info("using redis store", "url", opts.Addr)
	default:
		backend = store.NewMemoryStore()
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		slog.Warn("using in-memory store; state is lost on restart")
	}
	defer publisher.Close()

	if err := backend.SetBetaSettings(ctx, core.BetaSettings{IsBetaActive: cfg.BetaActive}); err != nil {
		slog.Error("failed to seed beta settings", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	opts := service.Options{
		Issuer:          cfg.Issuer,
		ChallengeTTL:    cfg.ChallengeTTL,
		AccessTTL:       cfg.AccessTTL,
		RefreshTTL:      cfg.RefreshTTL,
		VerificationTTL: service.DefaultOptions().VerificationTTL,
		AdminWallets:    cfg.AdminWallets,
	}
	authService := service.NewAuthService(
		tokenizer.NewJWTTokenizer(signKey, cfg.Issuer),
		tokenizer.NewEthVerifier(),
		backend,
		events.NewWatermillPublisher(publisher),
		m,
		opts,
	)

	limiter := transporthttp.NewRateLimiter(cfg.ChallengeRPS, cfg.ChallengeBurst)
	defer limiter.Close()

	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transporthttp.SetupRouter(transporthttp.RouterConfig{
		Auth:             authService,
		Access:           service.NewAccessService(backend),
		Chats:            service.NewChatService(backend),
		Metrics:          m,
		Gatherer:         registry,
		ChallengeLimiter: limiter,
		HealthCheck:      healthCheck,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", cfg.Port, "store", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
		slog.Info("server stopped")
	}
}

// loadSigningKey reads a PEM EC key, or generates an ephemeral one when path is empty
func loadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		slog.Warn("SIGNING_KEY_FILE not set; generating an ephemeral key, sessions will not survive a restart")
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%s: ES256 needs a P-256 key", path)
	}
	return key, nil
}
