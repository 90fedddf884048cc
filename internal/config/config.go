// Package config loads server configuration from defaults, an optional YAML
// file and HD_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evcraddock/house-deals/internal/email"
)

// Config holds the server configuration.
type Config struct {
	Port         int    `yaml:"port"`
	DatabasePath string `yaml:"database_path"`
	LogLevel     string `yaml:"log_level"`
	DevMode      bool   `yaml:"dev_mode"`

	Auth     AuthConfig       `yaml:"auth"`
	Telegram TelegramConfig   `yaml:"telegram"`
	SMTP     email.SMTPConfig `yaml:"smtp"`

	// IdempotencyTTL is how long idempotency keys are kept before `hd sweep` purges them.
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// TelegramConfig holds the deal event notifier settings.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// devSecret signs tokens in dev mode when no secret is configured.
const devSecret = "house-deals-dev-secret"

// DefaultConfig returns configuration with defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:     8080,
		LogLevel: "info",
		Auth: AuthConfig{
			Issuer:   "house-deals",
			TokenTTL: 24 * time.Hour,
		},
		SMTP:           email.SMTPConfig{Port: "587"},
		IdempotencyTTL: 7 * 24 * time.Hour,
	}
}

// Load reads configuration from the YAML file at path, if it exists, and
// then applies environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.DevMode && cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = devSecret
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HD_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HD_PORT: %w", err)
		}
		c.Port = port
	}
	c.DatabasePath = envOrDefault("HD_DB_PATH", c.DatabasePath)
	c.LogLevel = envOrDefault("HD_LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("HD_DEV_MODE"); v != "" {
		c.DevMode = v == "true"
	}
	c.Auth.JWTSecret = envOrDefault("HD_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Issuer = envOrDefault("HD_JWT_ISSUER", c.Auth.Issuer)
	c.Telegram.BotToken = envOrDefault("HD_TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	if v := os.Getenv("HD_TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("HD_TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}
	c.SMTP.Host = envOrDefault("HD_SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = envOrDefault("HD_SMTP_PORT", c.SMTP.Port)
	c.SMTP.User = envOrDefault("HD_SMTP_USER", c.SMTP.User)
	c.SMTP.Pass = envOrDefault("HD_SMTP_PASS", c.SMTP.Pass)
	c.SMTP.From = envOrDefault("HD_SMTP_FROM", c.SMTP.From)
	if v := os.Getenv("HD_SMTP_TO"); v != "" {
		c.SMTP.To = nil
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				c.SMTP.To = append(c.SMTP.To, addr)
			}
		}
	}
	return nil
}

// Validate checks that the configuration can run a server.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or HD_JWT_SECRET) is required outside dev mode")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (use debug, info, warn or error)", c.LogLevel)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required when a bot token is set")
	}
	if c.SMTP.Host != "" && !c.SMTP.IsConfigured() {
		return fmt.Errorf("smtp.from and smtp.to are required when smtp.host is set")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
