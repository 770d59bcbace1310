package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker = "localhost:9092"
	testHubURL    = "http://sensorhub.local:8081"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "mesh-frames", cfg.MeshTopic)
	assert.Equal(t, "mesh-node-0001", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "node", cfg.NodeName)
	assert.Equal(t, uint16(0x0001), cfg.NodeAddress)
	assert.Equal(t, 5*time.Second, cfg.PublishInterval)
	assert.Equal(t, time.Second, cfg.SensorInterval)
	assert.Equal(t, uint8(31), cfg.DefaultTTL)
	assert.Equal(t, 0, cfg.TxRSSI)
	assert.Equal(t, -60, cfg.DefaultRSSI)
	assert.False(t, cfg.SensorHubEnabled)
	assert.Empty(t, cfg.SensorHubURL)
	assert.Equal(t, 2*time.Second, cfg.SensorHubTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.SensorCacheTTL)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("MESH_TOPIC", "lab-mesh")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("NODE_NAME", "reel1")
	t.Setenv("NODE_ADDRESS", "0x00a1")
	t.Setenv("PUBLISH_INTERVAL", "2s")
	t.Setenv("SENSOR_INTERVAL", "250ms")
	t.Setenv("DEFAULT_TTL", "7")
	t.Setenv("MESH_TX_RSSI", "-45")
	t.Setenv("MESH_DEFAULT_RSSI", "-70")
	t.Setenv("SENSORHUB_URL", testHubURL)
	t.Setenv("SENSORHUB_TIMEOUT", "1s")
	t.Setenv("SENSOR_CACHE_TTL", "100ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "lab-mesh", cfg.MeshTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "reel1", cfg.NodeName)
	assert.Equal(t, uint16(0x00a1), cfg.NodeAddress)
	assert.Equal(t, 2*time.Second, cfg.PublishInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.SensorInterval)
	assert.Equal(t, uint8(7), cfg.DefaultTTL)
	assert.Equal(t, -45, cfg.TxRSSI)
	assert.Equal(t, -70, cfg.DefaultRSSI)
	assert.True(t, cfg.SensorHubEnabled)
	assert.Equal(t, testHubURL, cfg.SensorHubURL)
	assert.Equal(t, time.Second, cfg.SensorHubTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.SensorCacheTTL)
}

func TestLoad_GroupIDFollowsAddress(t *testing.T) {
	t.Setenv("NODE_ADDRESS", "beef")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mesh-node-beef", cfg.KafkaGroupID)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidNodeAddress(t *testing.T) {
	for _, v := range []string{"xyz", "10000", "0", "c123"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("NODE_ADDRESS", v)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "NODE_ADDRESS")
		})
	}
}

func TestLoad_NodeNameTooLong(t *testing.T) {
	t.Setenv("NODE_NAME", "abcdefgh")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NODE_NAME")
}

func TestLoad_InvalidPublishInterval(t *testing.T) {
	t.Setenv("PUBLISH_INTERVAL", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PUBLISH_INTERVAL")
}

func TestLoad_InvalidSensorInterval(t *testing.T) {
	t.Setenv("SENSOR_INTERVAL", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SENSOR_INTERVAL")
}

func TestLoad_InvalidTTL(t *testing.T) {
	for _, v := range []string{"0", "256", "x"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("DEFAULT_TTL", v)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "DEFAULT_TTL")
		})
	}
}

func TestLoad_InvalidRSSI(t *testing.T) {
	t.Setenv("MESH_DEFAULT_RSSI", "loud")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MESH_DEFAULT_RSSI")
}

func TestLoad_SensorHubEnabledWithoutURL(t *testing.T) {
	t.Setenv("SENSORHUB_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SENSORHUB_URL")
}

func TestLoad_SensorHubExplicitlyDisabled(t *testing.T) {
	t.Setenv("SENSORHUB_URL", testHubURL)
	t.Setenv("SENSORHUB_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.SensorHubEnabled)
}
