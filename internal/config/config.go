package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/mesh-distance-service/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all node settings, populated from environment variables.
type Config struct {
	KafkaBrokers []string
	MeshTopic    string
	KafkaGroupID string
	HTTPAddr     string
	LogLevel     string
	LogFormat    string

	ShutdownTimeout time.Duration

	// Node identity and scheduling.
	NodeName        string
	NodeAddress     uint16
	PublishInterval time.Duration
	SensorInterval  time.Duration
	DefaultTTL      uint8

	// Emulated radio side channel. TxRSSI is stamped on outgoing frames when
	// non-zero; DefaultRSSI is used for inbound frames that carry none.
	TxRSSI      int
	DefaultRSSI int

	// Sensor hub configuration.
	SensorHubURL     string
	SensorHubEnabled bool
	SensorHubTimeout time.Duration
	SensorCacheTTL   time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	addr, err := domain.ParseAddress(sharedcfg.EnvOrDefault("NODE_ADDRESS", "0001"))
	if err != nil {
		return nil, fmt.Errorf("invalid NODE_ADDRESS: %w", err)
	}

	publishInterval, err := parsePositiveDuration("PUBLISH_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}
	sensorInterval, err := parsePositiveDuration("SENSOR_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}
	sensorHubTimeout, err := parsePositiveDuration("SENSORHUB_TIMEOUT", "2s")
	if err != nil {
		return nil, err
	}
	sensorCacheTTL, err := parsePositiveDuration("SENSOR_CACHE_TTL", "500ms")
	if err != nil {
		return nil, err
	}

	ttl, err := strconv.ParseUint(sharedcfg.EnvOrDefault("DEFAULT_TTL", strconv.Itoa(int(domain.DefaultTTL))), 10, 8)
	if err != nil || ttl == 0 {
		return nil, errors.New("invalid DEFAULT_TTL")
	}

	txRSSI, err := strconv.Atoi(sharedcfg.EnvOrDefault("MESH_TX_RSSI", "0"))
	if err != nil {
		return nil, errors.New("invalid MESH_TX_RSSI")
	}
	defaultRSSI, err := strconv.Atoi(sharedcfg.EnvOrDefault("MESH_DEFAULT_RSSI", "-60"))
	if err != nil {
		return nil, errors.New("invalid MESH_DEFAULT_RSSI")
	}

	sensorHubURL := os.Getenv("SENSORHUB_URL")
	sensorHubEnabled := sensorHubURL != ""
	if v := os.Getenv("SENSORHUB_ENABLED"); v != "" {
		sensorHubEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		MeshTopic:       sharedcfg.EnvOrDefault("MESH_TOPIC", "mesh-frames"),
		KafkaGroupID:    sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "mesh-node-"+domain.FormatAddress(addr)),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		NodeName:        sharedcfg.EnvOrDefault("NODE_NAME", "node"),
		NodeAddress:     addr,
		PublishInterval: publishInterval,
		SensorInterval:  sensorInterval,
		DefaultTTL:      uint8(ttl),

		TxRSSI:      txRSSI,
		DefaultRSSI: defaultRSSI,

		SensorHubURL:     sensorHubURL,
		SensorHubEnabled: sensorHubEnabled,
		SensorHubTimeout: sensorHubTimeout,
		SensorCacheTTL:   sensorCacheTTL,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.MeshTopic == "" {
		return nil, errors.New("MESH_TOPIC is required")
	}
	if cfg.NodeAddress == 0 || cfg.NodeAddress == domain.BroadcastAddress {
		return nil, errors.New("NODE_ADDRESS must be a non-zero unicast address")
	}
	if cfg.NodeName == "" {
		return nil, errors.New("NODE_NAME is required")
	}
	if len(cfg.NodeName) > domain.MaxNameLength {
		return nil, fmt.Errorf("NODE_NAME must be at most %d characters", domain.MaxNameLength)
	}
	if cfg.SensorHubEnabled && cfg.SensorHubURL == "" {
		return nil, errors.New("SENSORHUB_ENABLED is true but SENSORHUB_URL is not set")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
