// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the auth backend configuration
type Config struct {
	Port      string
	LogFormat string
	LogLevel  string

	// Storage
	StoreBackend string // memory or redis
	RedisURL     string

	// Tokens
	SigningKeyFile string // PEM-encoded P-256 key; empty generates an ephemeral key
	Issuer         string
	ChallengeTTL   time.Duration
	AccessTTL      time.Duration
	RefreshTTL     time.Duration

	// Access control
	AdminWallets []string
	BetaActive   bool

	// Per-IP limit on challenge issuance
	ChallengeRPS   int
	ChallengeBurst int
}

// AgentConfig holds the headless auto-auth client configuration
type AgentConfig struct {
	BackendURL             string
	WalletPrivateKey       string
	SuppressRejectionToast bool
	LogFormat              string
	LogLevel               string

	// SessionRedisURL persists the agent's session in Redis; empty keeps it in memory
	SessionRedisURL string
	SessionKey      string
}

// Load reads the backend configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "9000"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		StoreBackend:   getEnv("STORE_BACKEND", "memory"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SigningKeyFile: getEnv("SIGNING_KEY_FILE", ""),
		Issuer:         getEnv("TOKEN_ISSUER", "walletauth"),
		ChallengeTTL:   getEnvDuration("CHALLENGE_TTL", 5*time.Minute),
		AccessTTL:      getEnvDuration("ACCESS_TTL", time.Hour),
		RefreshTTL:     getEnvDuration("REFRESH_TTL", 5*24*time.Hour),
		AdminWallets:   getEnvList("ADMIN_WALLETS"),
		BetaActive:     getEnvBool("BETA_ACTIVE", false),
		ChallengeRPS:   getEnvInt("CHALLENGE_RATE_LIMIT", 5),
		ChallengeBurst: getEnvInt("CHALLENGE_RATE_BURST", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if c.StoreBackend != "memory" && c.StoreBackend != "redis" {
		return fmt.Errorf("STORE_BACKEND must be 'memory' or 'redis', got: %s", c.StoreBackend)
	}

	if c.StoreBackend == "redis" && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when STORE_BACKEND is 'redis'")
	}

	if c.ChallengeTTL <= 0 || c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("CHALLENGE_TTL, ACCESS_TTL and REFRESH_TTL must be positive")
	}

	if c.AccessTTL > c.RefreshTTL {
		return fmt.Errorf("ACCESS_TTL must not exceed REFRESH_TTL")
	}

	if c.ChallengeRPS <= 0 || c.ChallengeBurst <= 0 {
		return fmt.Errorf("CHALLENGE_RATE_LIMIT and CHALLENGE_RATE_BURST must be > 0")
	}

	return nil
}

// LoadAgent reads the agent configuration from environment variables
func LoadAgent() (*AgentConfig, error) {
	cfg := &AgentConfig{
		BackendURL:             getEnv("BACKEND_URL", "http://localhost:9000"),
		WalletPrivateKey:       getEnv("WALLET_PRIVATE_KEY", ""),
		SuppressRejectionToast: getEnvBool("SUPPRESS_REJECTION_TOAST", false),
		LogFormat:              getEnv("LOG_FORMAT", "text"),
		LogLevel:               getEnv("LOG_LEVEL", "INFO"),
		SessionRedisURL:        getEnv("SESSION_REDIS_URL", ""),
		SessionKey:             getEnv("SESSION_KEY", "walletauth:agent:session"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the agent configuration is valid
func (c *AgentConfig) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.WalletPrivateKey == "" {
		return fmt.Errorf("WALLET_PRIVATE_KEY is required")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	valueStr = strings.ToLower(valueStr)
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvList splits a comma-separated variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
