// Package shardmap tracks the shard topology known to a node: which shard
// IDs exist and where their coordinators can be reached.
package shardmap

import "sync"

// ShardInfo describes one shard partition.
type ShardInfo struct {
	ID      string `json:"id" yaml:"id"`
	Address string `json:"address" yaml:"address"`
}

// Registry answers existence and addressing queries about shards.
type Registry interface {
	ShardExists(shardID string) bool
	GetShardInfo(shardID string) (ShardInfo, bool)
}

// StaticRegistry is a Registry backed by a mutable in-memory map, seeded
// from configuration.
type StaticRegistry struct {
	mu     sync.RWMutex
	shards map[string]ShardInfo
}

// NewStaticRegistry builds a registry from the given shards.
func NewStaticRegistry(shards []ShardInfo) *StaticRegistry {
	r := &StaticRegistry{shards: make(map[string]ShardInfo, len(shards))}
	for _, s := range shards {
		r.shards[s.ID] = s
	}
	return r
}

func (r *StaticRegistry) ShardExists(shardID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.shards[shardID]
	return ok
}

func (r *StaticRegistry) GetShardInfo(shardID string) (ShardInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.shards[shardID]
	return info, ok
}

// AddShard inserts or replaces a shard entry.
func (r *StaticRegistry) AddShard(info ShardInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shards[info.ID] = info
}

// RemoveShard deletes a shard entry.
func (r *StaticRegistry) RemoveShard(shardID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shards, shardID)
}

// Shards returns a snapshot of all known shards.
func (r *StaticRegistry) Shards() []ShardInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ShardInfo, 0, len(r.shards))
	for _, info := range r.shards {
		out = append(out, info)
	}
	return out
}
