package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:           "9000",
		StoreBackend:   "memory",
		ChallengeTTL:   5 * time.Minute,
		AccessTTL:      time.Hour,
		RefreshTTL:     24 * time.Hour,
		ChallengeRPS:   5,
		ChallengeBurst: 10,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid memory config",
			mutate: func(c *Config) {},
		},
		{
			name: "valid redis config",
			mutate: func(c *Config) {
				c.StoreBackend = "redis"
				c.RedisURL = "redis://localhost:6379/0"
			},
		},
		{
			name:    "empty port",
			mutate:  func(c *Config) { c.Port = "" },
			wantErr: true,
			errMsg:  "PORT cannot be empty",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.StoreBackend = "postgres" },
			wantErr: true,
			errMsg:  "STORE_BACKEND must be 'memory' or 'redis'",
		},
		{
			name: "redis without url",
			mutate: func(c *Config) {
				c.StoreBackend = "redis"
				c.RedisURL = ""
			},
			wantErr: true,
			errMsg:  "REDIS_URL is required",
		},
		{
			name:    "access outlives refresh",
			mutate:  func(c *Config) { c.AccessTTL = 48 * time.Hour },
			wantErr: true,
			errMsg:  "ACCESS_TTL must not exceed REFRESH_TTL",
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.ChallengeRPS = 0 },
			wantErr: true,
			errMsg:  "CHALLENGE_RATE_LIMIT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ADMIN_WALLETS", " 0xAAA , ,0xBBB")
	t.Setenv("BETA_ACTIVE", "yes")
	t.Setenv("ACCESS_TTL", "30m")
	t.Setenv("CHALLENGE_RATE_LIMIT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, []string{"0xAAA", "0xBBB"}, cfg.AdminWallets)
	assert.True(t, cfg.BetaActive)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 5, cfg.ChallengeRPS)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
}

func TestLoadAgent(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("SESSION_REDIS_URL", "")
	t.Setenv("SESSION_KEY", "")
	t.Setenv("WALLET_PRIVATE_KEY", "")
	_, err := LoadAgent()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WALLET_PRIVATE_KEY is required")

	t.Setenv("WALLET_PRIVATE_KEY", "deadbeef")
	t.Setenv("SUPPRESS_REJECTION_TOAST", "true")
	cfg, err := LoadAgent()
	require.NoError(t, err)
	assert.True(t, cfg.SuppressRejectionToast)
	assert.Equal(t, "http://localhost:9000", cfg.BackendURL)
	assert.Equal(t, "walletauth:agent:session", cfg.SessionKey)
	assert.Empty(t, cfg.SessionRedisURL)
}
