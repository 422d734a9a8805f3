package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendabot/internal/config"
)

func testBotConfig() config.BotConfig {
	return config.BotConfig{
		Timezone:           "Europe/Madrid",
		DailySendTime:      "09:30",
		TokenCheckInterval: 20 * time.Minute,
	}
}

func TestNewCron(t *testing.T) {
	c, err := NewCron(nil, testBotConfig(), testLogger())

	require.NoError(t, err)
	require.NotNil(t, c)

	c.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Stop(ctx)
}

func TestNewCron_InvalidTimezone(t *testing.T) {
	cfg := testBotConfig()
	cfg.Timezone = "Mars/Olympus"

	_, err := NewCron(nil, cfg, testLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mars/Olympus")
}

func TestNewCron_InvalidDailySendTime(t *testing.T) {
	cfg := testBotConfig()
	cfg.DailySendTime = "25:00"

	_, err := NewCron(nil, cfg, testLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily send time")
}
