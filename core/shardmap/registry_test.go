package shardmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticRegistryLookup(t *testing.T) {
	r := NewStaticRegistry([]ShardInfo{
		{ID: "shard-1", Address: "127.0.0.1:9101"},
		{ID: "shard-2", Address: "127.0.0.1:9102"},
	})

	require.True(t, r.ShardExists("shard-1"))
	require.False(t, r.ShardExists("shard-9"))

	info, ok := r.GetShardInfo("shard-2")
	require.True(t, ok)
	require.Equal(t, "127.0.0.1:9102", info.Address)

	_, ok = r.GetShardInfo("shard-9")
	require.False(t, ok)
}

func TestStaticRegistryMutation(t *testing.T) {
	r := NewStaticRegistry(nil)
	require.Empty(t, r.Shards())

	r.AddShard(ShardInfo{ID: "shard-1", Address: "a"})
	r.AddShard(ShardInfo{ID: "shard-1", Address: "b"})
	info, ok := r.GetShardInfo("shard-1")
	require.True(t, ok)
	require.Equal(t, "b", info.Address)
	require.Len(t, r.Shards(), 1)

	r.RemoveShard("shard-1")
	require.False(t, r.ShardExists("shard-1"))
}
