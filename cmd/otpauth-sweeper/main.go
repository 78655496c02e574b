// Command otpauth-sweeper permanently deletes accounts whose deletion grace
// period has elapsed. It runs one sweep, or one per OTPAUTH_SWEEP_INTERVAL
// until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/otpauth"
	"github.com/MrEthical07/otpauth/mail"
	"github.com/MrEthical07/otpauth/metrics/export/prometheus"
	"github.com/MrEthical07/otpauth/userstore/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	level, _ := parseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("sweeper stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	users, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer users.Close()

	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		From:     cfg.SMTPFrom,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
	if err != nil {
		return err
	}

	engineCfg := otpauth.DefaultConfig()
	engineCfg.Secret = []byte(cfg.Secret)
	engineCfg.Session.RedisPrefix = cfg.SessionPrefix
	engineCfg.Deletion.SweepConcurrency = cfg.Concurrency
	engineCfg.Deletion.SweepUserTimeout = cfg.UserTimeout
	engineCfg.Deletion.NoticeRate = cfg.NoticeRate
	engineCfg.Audit.Enabled = cfg.AuditToLog
	engineCfg.Metrics.Enabled = cfg.MetricsAddr != ""

	builder := otpauth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithEmailSender(sender).
		WithLogger(logger)
	if cfg.AuditToLog {
		builder = builder.WithAuditSink(otpauth.NewSlogSink(logger))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, engine, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDeadline)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Interval == 0 {
		return sweepOnce(ctx, engine, logger)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		if err := sweepOnce(ctx, engine, logger); err != nil {
			logger.Warn("sweep failed; retrying next interval", "err", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func sweepOnce(ctx context.Context, engine *otpauth.Engine, logger *slog.Logger) error {
	report, err := engine.SweepDeletions(ctx)
	if err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		logger.Warn("sweep left accounts for the next run", "failed", len(report.Failed))
	}
	return nil
}

func serveMetrics(addr string, engine *otpauth.Engine, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prometheus.NewExporter(engine).Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()
	return srv
}
