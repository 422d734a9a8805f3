// Package main is the entry point for the agendabot daemon.
//
// It loads configuration, opens the state store, acquires a Google Calendar
// credential (interactively on first run), wires the digest pipeline, and
// runs two loops side by side: the cron scheduler for the daily digest and
// credential checks, and the HTTP server for the inbound WhatsApp webhook.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agendabot/internal/auth"
	"agendabot/internal/bot"
	"agendabot/internal/calendar"
	"agendabot/internal/config"
	"agendabot/internal/db"
	"agendabot/internal/digest"
	"agendabot/internal/location"
	"agendabot/internal/scheduler"
	"agendabot/internal/types"
	"agendabot/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("agendabot starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"state_backend", cfg.State.Backend,
		"timezone", cfg.Bot.Timezone,
	)

	ctx := context.Background()

	store, closeStore, err := db.NewStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer closeStore()

	// Interactive authorization reads the code from stdin, so it only runs
	// here at startup, never inside a cycle.
	authorizer := auth.NewConsoleAuthorizer(cfg.Google, os.Stdin, os.Stdout, logger)
	authManager := auth.NewManager(
		store,
		authorizer,
		auth.NewGoogleRefresher(cfg.Google),
		cfg.Bot.TokenRefreshMargin,
		logger,
	)
	if _, err := authManager.Acquire(ctx); err != nil {
		return fmt.Errorf("acquiring calendar credential: %w", err)
	}

	timezone, err := time.LoadLocation(cfg.Bot.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", cfg.Bot.Timezone, err)
	}

	apiFactory := func(ctx context.Context) (calendar.API, error) {
		cred, err := authManager.Current(ctx)
		if err != nil {
			return nil, err
		}
		return calendar.NewGoogleAPI(ctx, auth.TokenSource(cred))
	}

	httpClient := &http.Client{Timeout: cfg.AEMET.Timeout}

	service := scheduler.NewService(
		authManager,
		calendar.NewAggregator(cfg.Bot.Calendars, timezone, cfg.Bot.MaxEventsPerSource, logger),
		apiFactory,
		weather.NewClient(httpClient, cfg.AEMET.BaseURL, cfg.AEMET.APIKey, logger),
		digest.NewComposer(cfg.Bot.UserName),
		bot.NewTwilioMessenger(&http.Client{Timeout: 30 * time.Second}, cfg.Twilio, logger),
		store,
		types.Location{
			Municipality: cfg.Bot.DefaultMunicipality,
			Code:         cfg.Bot.DefaultLocationCode,
		},
		logger,
	)

	cron, err := scheduler.NewCron(service, cfg.Bot, logger)
	if err != nil {
		return fmt.Errorf("building schedule: %w", err)
	}
	cron.Start()

	resolver := location.NewAEMETResolver(httpClient, cfg.AEMET.BaseURL, cfg.AEMET.APIKey, cfg.State.Dir, logger)
	webhookServer := bot.NewServer(service, resolver, store, logger)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           webhookServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	cron.Stop(shutdownCtx)

	logger.Info("agendabot stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log
// level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
