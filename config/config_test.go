package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shardledger/shardledger/core/crossshard"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
shard_id: shard-1
shards:
  - id: shard-1
    address: 127.0.0.1:9201
  - id: shard-2
    address: 127.0.0.1:9202
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "shard-1", cfg.ShardID)
	require.Len(t, cfg.Shards, 2)
	require.Equal(t, time.Second, cfg.TickInterval)
	require.Equal(t, crossshard.DefaultTimeout, cfg.Coordinator.Timeout)
	require.Equal(t, uint32(crossshard.DefaultMaxRetries), cfg.Coordinator.MaxRetries)
	require.Equal(t, "info", cfg.Logger.Level)
	require.Equal(t, "shardledger", cfg.Telemetry.ServiceName)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
shard_id: shard-1
tick_interval: 250ms
shards:
  - id: shard-1
    address: 127.0.0.1:9201
coordinator:
  timeout: 60s
  retry_interval: 5s
  max_retries: 2
logger:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	require.Equal(t, time.Minute, cfg.Coordinator.Timeout)
	require.Equal(t, 5*time.Second, cfg.Coordinator.RetryInterval)
	require.Equal(t, uint32(2), cfg.Coordinator.MaxRetries)
	require.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing shard id", `
shards:
  - id: shard-1
    address: a
`},
		{"no shards", `
shard_id: shard-1
`},
		{"local shard not in topology", `
shard_id: shard-1
shards:
  - id: shard-2
    address: a
`},
		{"shard without address", `
shard_id: shard-1
shards:
  - id: shard-1
    address: ""
`},
		{"malformed yaml", `shard_id: [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
