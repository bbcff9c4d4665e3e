package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Redis.IdempotencyTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "orders.lifecycle", cfg.Kafka.OrderTopic)
	assert.Equal(t, 3, cfg.Orders.TxMaxRetries)
	assert.Equal(t, 5, cfg.Database.ConnectAttempts)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadPortFallsBackToServerPort(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SERVER_PORT", "8088")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8088", cfg.Server.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	t.Setenv("IDEMPOTENCY_TTL", "1h")
	t.Setenv("SERVER_WRITE_TIMEOUT", "not-a-duration")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Hour, cfg.Redis.IdempotencyTTL)
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "http")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownLogFormat(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_FORMAT", "xml")

	_, err := Load()
	assert.Error(t, err)
}
