// Command api is the Birthday Notifier server: the user registry HTTP API
// plus the background scheduler that delivers birthday and anniversary
// greetings.
//
// Usage:
//
//	birthday-api
//	PORT=3000 HOUR_SEND=9 birthday-api

// @title Birthday Notifier API
// @version 1.0.0
// @description User registry with a timezone-aware birthday/anniversary email notifier.
// @host localhost:3000
// @BasePath /
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/birthday-notifier/internal/api"
	"github.com/albapepper/birthday-notifier/internal/cache"
	"github.com/albapepper/birthday-notifier/internal/config"
	"github.com/albapepper/birthday-notifier/internal/db"
	"github.com/albapepper/birthday-notifier/internal/event"
	"github.com/albapepper/birthday-notifier/internal/mailer"
	"github.com/albapepper/birthday-notifier/internal/scheduler"
	"github.com/albapepper/birthday-notifier/internal/timezone"
	"github.com/albapepper/birthday-notifier/internal/user"

	_ "github.com/albapepper/birthday-notifier/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	types, err := event.Types(cfg.EventTypes)
	if err != nil {
		logger.Error("Invalid EVENT_TYPES", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		logger.Error("Failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// City→timezone resolver (embedded dataset)
	resolver, err := timezone.Default()
	if err != nil {
		logger.Error("Failed to load timezone dataset", "error", err)
		os.Exit(1)
	}

	// Outbound mail
	smtp, err := mailer.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to configure SMTP transport", "error", err)
		os.Exit(1)
	}
	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)

	// User store
	users := user.NewStore(pool.Pool)

	// Start scheduler (if SMTP is configured): recovery sweep once, then
	// periodic ticks. Without a transport nothing may be marked sent, so the
	// loop stays off entirely.
	if smtp != nil {
		sched := scheduler.New(users, resolver, smtp, scheduler.Config{
			Types:          types,
			Fire:           event.FireTime{Hour: cfg.FireHour, Minute: cfg.FireMinute, Second: cfg.FireSecond},
			Interval:       cfg.PollInterval,
			RecoveryWindow: cfg.RecoveryWindow,
			SendTimeout:    cfg.SMTPTimeout * 2,
		}, logger)
		go sched.Run(ctx)
	} else {
		logger.Info("Scheduler disabled (no SMTP_HOST)")
	}

	// Create router
	router := api.NewRouter(users, resolver, smtp, pool, appCache, cfg, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Birthday Notifier API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
