package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"agendabot/internal/config"
)

// Cron drives the two periodic jobs: the daily digest send at the configured
// local time and the proactive credential check.
type Cron struct {
	service *Service
	runner  *cron.Cron
	logger  *slog.Logger
}

// NewCron builds the cron runner in the bot's display time zone so the daily
// send fires at local wall-clock time across DST transitions.
func NewCron(service *Service, cfg config.BotConfig, logger *slog.Logger) (*Cron, error) {
	if logger == nil {
		logger = slog.Default()
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}
	hour, minute, err := config.ParseTimeOfDay(cfg.DailySendTime)
	if err != nil {
		return nil, fmt.Errorf("parsing daily send time: %w", err)
	}

	runner := cron.New(cron.WithLocation(location))

	dailySpec := fmt.Sprintf("%d %d * * *", minute, hour)
	if _, err := runner.AddFunc(dailySpec, func() {
		if err := service.SendDailyUpdate(context.Background()); err != nil {
			logger.Error("scheduled digest failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("registering daily digest job: %w", err)
	}

	checkSpec := fmt.Sprintf("@every %s", cfg.TokenCheckInterval)
	if _, err := runner.AddFunc(checkSpec, func() {
		if _, err := service.CheckCredential(context.Background()); err != nil {
			logger.Warn("periodic credential check reported a problem", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("registering credential check job: %w", err)
	}

	logger.Info("cron schedule registered",
		"daily_send", dailySpec,
		"timezone", cfg.Timezone,
		"token_check_interval", cfg.TokenCheckInterval.String(),
	)

	return &Cron{service: service, runner: runner, logger: logger}, nil
}

// Start launches the cron loop in its own goroutine.
func (c *Cron) Start() {
	c.runner.Start()
}

// Stop halts scheduling and waits for any running job to finish.
func (c *Cron) Stop(ctx context.Context) {
	stopCtx := c.runner.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		c.logger.Warn("timed out waiting for running jobs to finish")
	}
}
