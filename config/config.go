// Package config loads the node configuration from YAML: shard identity and
// topology, coordinator policy knobs, consensus, transport, logging, and
// telemetry settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shardledger/shardledger/core/crossshard"
	"github.com/shardledger/shardledger/core/shardmap"
	"github.com/shardledger/shardledger/pkg/logger"
	"github.com/shardledger/shardledger/pkg/telemetry"
)

// CoordinatorConfig carries the cross-shard policy knobs.
type CoordinatorConfig struct {
	Timeout               time.Duration `yaml:"timeout"`
	RetryInterval         time.Duration `yaml:"retry_interval"`
	MaxRetries            uint32        `yaml:"max_retries"`
	RequiredConfirmations uint32        `yaml:"required_confirmations"`
	CleanupInterval       time.Duration `yaml:"cleanup_interval"`
	RetentionPeriod       time.Duration `yaml:"retention_period"`
}

// RaftConfig carries the consensus engine settings.
type RaftConfig struct {
	Enabled      bool          `yaml:"enabled"`
	BindAddr     string        `yaml:"bind_addr"`
	DataDir      string        `yaml:"data_dir"`
	Bootstrap    bool          `yaml:"bootstrap"`
	ApplyTimeout time.Duration `yaml:"apply_timeout"`
}

// TransportConfig carries the HTTP/3 transport settings shared by the
// inbound server and the per-peer senders.
type TransportConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	CertsDir          string        `yaml:"certs_dir"`
	QueueCapacity     int           `yaml:"queue_capacity"`
	MaxWriteRetries   int           `yaml:"max_write_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	BackoffJitterFrac float64       `yaml:"backoff_jitter_frac"`
}

// Config is the full node configuration.
type Config struct {
	ShardID      string               `yaml:"shard_id"`
	TickInterval time.Duration        `yaml:"tick_interval"`
	Shards       []shardmap.ShardInfo `yaml:"shards"`

	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Raft        RaftConfig        `yaml:"raft"`
	Transport   TransportConfig   `yaml:"transport"`
	Logger      logger.Config     `yaml:"logger"`
	Telemetry   telemetry.Config  `yaml:"telemetry"`
}

// Default returns the configuration a node runs with when the file omits a
// setting.
func Default() Config {
	return Config{
		TickInterval: time.Second,
		Coordinator: CoordinatorConfig{
			Timeout:               crossshard.DefaultTimeout,
			RetryInterval:         crossshard.DefaultRetryInterval,
			MaxRetries:            crossshard.DefaultMaxRetries,
			RequiredConfirmations: crossshard.DefaultRequiredConfirmations,
			CleanupInterval:       crossshard.DefaultCleanupInterval,
			RetentionPeriod:       crossshard.DefaultRetentionPeriod,
		},
		Raft: RaftConfig{
			BindAddr:     "127.0.0.1:9301",
			DataDir:      "data",
			ApplyTimeout: 10 * time.Second,
		},
		Transport: TransportConfig{
			ListenAddr:      "127.0.0.1:9201",
			CertsDir:        "certs",
			QueueCapacity:   4096,
			MaxWriteRetries: 3,
			InitialBackoff:  100 * time.Millisecond,
			MaxBackoff:      5 * time.Second,
		},
		Logger: logger.Config{
			Level:  "info",
			Format: "json",
		},
		Telemetry: telemetry.Config{
			ServiceName:    "shardledger",
			PrometheusPort: 9464,
		},
	}
}

// Load reads path and unmarshals it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the settings a node cannot start without.
func (c *Config) Validate() error {
	if c.ShardID == "" {
		return fmt.Errorf("shard_id must not be empty")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if len(c.Shards) == 0 {
		return fmt.Errorf("at least one shard must be configured")
	}
	var local bool
	for _, s := range c.Shards {
		if s.ID == "" {
			return fmt.Errorf("shard with empty ID in topology")
		}
		if s.Address == "" {
			return fmt.Errorf("shard %s has no address", s.ID)
		}
		if s.ID == c.ShardID {
			local = true
		}
	}
	if !local {
		return fmt.Errorf("local shard %s is not in the configured topology", c.ShardID)
	}
	return nil
}
