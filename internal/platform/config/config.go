package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL"`
	SessionSecret string `env:"SESSION_SECRET"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	SessionMaxAge   time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`

	ForecastCacheTTL time.Duration `env:"FORECAST_CACHE_TTL" default:"10m"`

	NarratorBaseURL string        `env:"NARRATOR_BASE_URL" default:"https://api.openai.com/v1"`
	NarratorAPIKey  string        `env:"NARRATOR_API_KEY"`
	NarratorModel   string        `env:"NARRATOR_MODEL" default:"gpt-4o-mini"`
	NarratorTimeout time.Duration `env:"NARRATOR_TIMEOUT" default:"15s"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	DigestCron       string `env:"DIGEST_CRON" default:"0 8 * * *"`

	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS" default:"1"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST" default:"5"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NarratorEnabled reports whether forecast narration should call out.
func (c *Config) NarratorEnabled() bool { return c.NarratorAPIKey != "" }

// DigestEnabled reports whether the scheduled digest should run.
func (c *Config) DigestEnabled() bool { return c.TelegramBotToken != "" }

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"REDIS_URL", cfg.RedisURL},
		{"SESSION_SECRET", cfg.SessionSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if cfg.IsProduction() {
		if len(cfg.SessionSecret) < 32 {
			return errors.New("SESSION_SECRET must be at least 32 characters in production")
		}
		mode := sslMode(cfg.DatabaseURL)
		if mode == "disable" || mode == "allow" {
			return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
		}
	}

	if cfg.ForecastCacheTTL <= 0 {
		return errors.New("FORECAST_CACHE_TTL must be positive")
	}

	if cfg.NarratorEnabled() {
		u, err := url.Parse(cfg.NarratorBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("NARRATOR_BASE_URL must be an absolute URL, got %q", cfg.NarratorBaseURL)
		}
		if cfg.NarratorModel == "" {
			return errors.New("NARRATOR_MODEL is required when NARRATOR_API_KEY is set")
		}
	}

	if cfg.DigestEnabled() {
		if _, err := cron.ParseStandard(cfg.DigestCron); err != nil {
			return fmt.Errorf("DIGEST_CRON is not a valid cron expression: %w", err)
		}
	}

	if cfg.AuthRateLimitRPS <= 0 || cfg.AuthRateLimitBurst < 1 {
		return errors.New("AUTH_RATE_LIMIT_RPS must be positive and AUTH_RATE_LIMIT_BURST at least 1")
	}

	return nil
}

func sslMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Query().Get("sslmode"))
}
