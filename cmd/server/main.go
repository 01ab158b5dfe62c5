package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/barkbook/internal/config"
	"github.com/JonMunkholm/barkbook/internal/core"
	"github.com/JonMunkholm/barkbook/internal/database"
	"github.com/JonMunkholm/barkbook/internal/logging"
	"github.com/JonMunkholm/barkbook/internal/notify"
	"github.com/JonMunkholm/barkbook/internal/payments"
	"github.com/JonMunkholm/barkbook/internal/schema"
	"github.com/JonMunkholm/barkbook/internal/web"
)

func main() {
	// Real environment variables win over .env.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, database.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := schema.Apply(ctx, pool); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	store := database.NewStore(pool)
	opts := []core.ServiceOption{}
	if cfg.Notify.Enabled() {
		notifier, err := notify.NewImportNotifier(cfg.Notify.ResendAPIKey, cfg.Notify.From, cfg.Notify.To)
		if err != nil {
			slog.Error("failed to configure notifications", "error", err)
			os.Exit(1)
		}
		opts = append(opts, core.WithNotifier(notifier))
		slog.Info("import notifications enabled", "recipients", len(cfg.Notify.To))
	}

	service := core.NewService(store, store, store, core.ServiceConfig{
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxRows:       cfg.Import.MaxRows,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWaitTime:   cfg.Import.MaxWaitTime,
		CallTimeout:   cfg.Import.CallTimeout,
		ImportTimeout: cfg.Import.Timeout,
	}, opts...)

	webhooks := payments.NewWebhooks(cfg.Stripe.WebhookSecret, slog.Default().With("component", "stripe"))
	if !webhooks.Configured() {
		slog.Warn("STRIPE_WEBHOOK_SECRET not set; webhook deliveries will be rejected")
	}

	server := web.NewServer(service, webhooks, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	go service.StartRetentionScheduler(jobCtx, core.RetentionConfig{
		RetentionDays: cfg.History.RetentionDays,
		CheckInterval: cfg.History.CheckInterval,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := service.LimiterStatus(); status.Active > 0 {
		slog.Info("waiting for imports to complete", "active", status.Active)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return
	}
	slog.Info("server stopped")
}
