package config

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("AUTH_PROVIDER", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "jwt", cfg.Auth.Provider)
	assert.Equal(t, "memory", cfg.Events.Publisher)
	assert.Equal(t, "exam-events", cfg.Events.Topic)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
	assert.Zero(t, cfg.Sweep.Interval())
	assert.Equal(t, 200, cfg.Sweep.BatchSize)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("AUTH_PROVIDER", "casdoor")
	t.Setenv("CASDOOR_CLIENT_ID", "client-1")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "5")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "casdoor", cfg.Auth.Provider)
	assert.Equal(t, "client-1", cfg.Auth.ClientID)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.GetKafkaBrokers())
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Sweep.Interval())
}

func TestCreateEventPublisher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disabled := EventConfig{Enabled: false}
	p, err := disabled.CreateEventPublisher(ctx, logger)
	require.NoError(t, err)
	assert.IsType(t, &events.MockEventPublisher{}, p)

	memory := EventConfig{Enabled: true, Publisher: "memory", Topic: "exam-events"}
	p, err = memory.CreateEventPublisher(ctx, logger)
	require.NoError(t, err)
	assert.IsType(t, &events.WatermillEventPublisher{}, p)
	assert.NoError(t, p.PublishNotificationEvent(ctx, events.NewEvent(events.EventAttemptStarted, nil)))
	assert.NoError(t, p.Close())
}
