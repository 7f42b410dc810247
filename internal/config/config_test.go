package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker   = "localhost:9092"
	testForcingPath = "/etc/forcing/forcing.toml"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FORCING_CONFIG", testForcingPath)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "forcing-file-arrivals", cfg.KafkaSourceTopic)
	assert.Equal(t, "forcing-file-outcomes", cfg.KafkaSinkTopic)
	assert.Equal(t, "forcing-engine", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, testForcingPath, cfg.ForcingConfigPath)
	assert.Zero(t, cfg.Workers)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("FORCING_CONFIG", testForcingPath)
	t.Setenv("WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoad_MissingForcingConfig(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORCING_CONFIG")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("FORCING_CONFIG", testForcingPath)
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("FORCING_CONFIG", testForcingPath)
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("FORCING_CONFIG", testForcingPath)
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidWorkers(t *testing.T) {
	for _, v := range []string{"0", "-2", "many", "1000"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("FORCING_CONFIG", testForcingPath)
			t.Setenv("WORKERS", v)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "WORKERS")
		})
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	t.Setenv("FORCING_CONFIG", testForcingPath)
	t.Setenv("LOG_FORMAT", "xml")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid LOG_FORMAT "xml"`)
}

func TestLoad_InvalidBroker(t *testing.T) {
	t.Setenv("FORCING_CONFIG", testForcingPath)
	t.Setenv("KAFKA_BROKERS", "broker1:9092,no-port")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid KAFKA_BROKERS entry "no-port"`)
}

func TestLoad_SameSourceAndSinkTopic(t *testing.T) {
	t.Setenv("FORCING_CONFIG", testForcingPath)
	t.Setenv("KAFKA_SINK_TOPIC", "forcing-file-arrivals")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_SINK_TOPIC")
}

func TestLoad_ReportsEveryInvalidVariable(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORCING_CONFIG is required")
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}
