package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// config is read from the environment, optionally seeded from a .env file.
type config struct {
	RedisURL    string `env:"OTPAUTH_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	DatabaseURL string `env:"OTPAUTH_DATABASE_URL,required,notEmpty"`
	Secret      string `env:"OTPAUTH_SECRET,required,notEmpty"`

	SMTPHost     string `env:"OTPAUTH_SMTP_HOST,required,notEmpty"`
	SMTPPort     string `env:"OTPAUTH_SMTP_PORT" envDefault:"587"`
	SMTPFrom     string `env:"OTPAUTH_SMTP_FROM,required,notEmpty"`
	SMTPUsername string `env:"OTPAUTH_SMTP_USERNAME"`
	SMTPPassword string `env:"OTPAUTH_SMTP_PASSWORD"`

	// Interval of zero runs one sweep and exits.
	Interval         time.Duration `env:"OTPAUTH_SWEEP_INTERVAL" envDefault:"0"`
	Concurrency      int           `env:"OTPAUTH_SWEEP_CONCURRENCY" envDefault:"4"`
	UserTimeout      time.Duration `env:"OTPAUTH_SWEEP_USER_TIMEOUT" envDefault:"30s"`
	NoticeRate       float64       `env:"OTPAUTH_NOTICE_RATE" envDefault:"10"`
	SessionPrefix    string        `env:"OTPAUTH_SESSION_PREFIX" envDefault:"ots"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	AuditToLog       bool          `env:"OTPAUTH_AUDIT_LOG" envDefault:"true"`
	MetricsAddr      string        `env:"OTPAUTH_METRICS_ADDR"`
	ShutdownDeadline time.Duration `env:"OTPAUTH_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	if len(cfg.Secret) < 32 {
		return config{}, errors.New("OTPAUTH_SECRET must be at least 32 bytes")
	}
	if cfg.Interval < 0 {
		return config{}, errors.New("OTPAUTH_SWEEP_INTERVAL must be >= 0")
	}
	if cfg.Concurrency <= 0 {
		return config{}, errors.New("OTPAUTH_SWEEP_CONCURRENCY must be > 0")
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", raw)
	}
}
