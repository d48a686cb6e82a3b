// Command walletauth-agent keeps a key-backed wallet signed in to the backend.
// With SESSION_REDIS_URL set the session outlives the process and is resumed
// on the next start.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/otcping/walletauth"
	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/internal/config"
	"github.com/otcping/walletauth/internal/logger"
)

// validateInterval is how often the agent re-checks its session
const validateInterval = time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAgent()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(os.Stderr, cfg.LogFormat, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	wallet, err := walletauth.KeyWalletFromHex(cfg.WalletPrivateKey)
	if err != nil {
		slog.Error("failed to load wallet", "error", err)
		os.Exit(1)
	}

	backend, err := walletauth.NewHTTPBackend(cfg.BackendURL)
	if err != nil {
		slog.Error("failed to create backend client", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var storage walletauth.SessionStorage = walletauth.NewMemoryStore()
	if cfg.SessionRedisURL != "" {
		redisStore, err := walletauth.NewRedisStore(ctx, cfg.SessionRedisURL, cfg.SessionKey, 0)
		if err != nil {
			slog.Error("failed to connect to session store", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		storage = redisStore
	}

	notifier := walletauth.NotifierFunc(func(n walletauth.Notification) {
		slog.Info("notification", "level", n.Level, "title", n.Title, "message", n.Message)
	})

	provider := walletauth.NewProvider(ctx, backend, walletauth.ProviderOptions{
		Storage:  storage,
		Notifier: notifier,
	})
	defer provider.Close()

	orchestrator := walletauth.NewOrchestrator(provider, wallet, walletauth.OrchestratorOptions{
		Notifier:               notifier,
		SuppressRejectionToast: cfg.SuppressRejectionToast,
	})

	slog.Info("agent started", "address", wallet.Address(), "backend", cfg.BackendURL)

	// The key never disconnects, so the identity feed only repeats itself:
	// once at start and again whenever validation finds the session gone.
	identities := make(chan core.WalletIdentity, 1)
	identities <- wallet.Identity()

	go func() {
		ticker := time.NewTicker(validateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if provider.IsAuthenticated() && provider.ValidateSession(ctx) {
					continue
				}
				if provider.IsAuthenticated() {
					slog.Warn("session no longer recognized, signing out")
					provider.SignOut(ctx)
				}
				select {
				case identities <- wallet.Identity():
				default:
				}
			}
		}
	}()

	if err := orchestrator.Run(ctx, identities); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("agent stopped", "error", err)
		return
	}
	slog.Info("agent stopped")
}
