package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                      int    `env:"PORT" envDefault:"8080"`
	DatabaseURL               string `env:"DATABASE_URL,required"`
	RedisURL                  string `env:"REDIS_URL"`
	JWTSecret                 string `env:"JWT_SECRET,required"`
	JWTIssuer                 string `env:"JWT_ISSUER" envDefault:"account-manager"`
	LogLevel                  string `env:"LOG_LEVEL" envDefault:"info"`
	LockTTLSeconds            int    `env:"LOCK_TTL_SECONDS" envDefault:"10"`
	LockWaitMs                int    `env:"LOCK_WAIT_MS" envDefault:"3000"`
	ExpiryScanIntervalSeconds int    `env:"EXPIRY_SCAN_INTERVAL_SECONDS" envDefault:"300"`
	TOTPRateLimitPerMin       int    `env:"TOTP_RATE_LIMIT_PER_MIN" envDefault:"30"`
	RunMigrations             bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	Environment               string `env:"APP_ENV" envDefault:"development"`
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c *Config) LockWait() time.Duration {
	return time.Duration(c.LockWaitMs) * time.Millisecond
}

// ExpiryScanInterval is zero when the sweep job is disabled.
func (c *Config) ExpiryScanInterval() time.Duration {
	return time.Duration(c.ExpiryScanIntervalSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.LockTTLSeconds <= 0 {
		return fmt.Errorf("LOCK_TTL_SECONDS must be positive")
	}
	if c.LockWaitMs <= 0 {
		return fmt.Errorf("LOCK_WAIT_MS must be positive")
	}
	if c.ExpiryScanIntervalSeconds < 0 {
		return fmt.Errorf("EXPIRY_SCAN_INTERVAL_SECONDS must not be negative")
	}
	if c.TOTPRateLimitPerMin <= 0 {
		return fmt.Errorf("TOTP_RATE_LIMIT_PER_MIN must be positive")
	}

	if isProduction {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}
		if c.RedisURL == "" {
			log.Warn().Msg("REDIS_URL is empty in production: account locks are process-local, run a single replica")
		} else if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
