package h3

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shardledger/shardledger/core/shardmap"
)

// TransportConfig controls the outbound side shared by all peers.
type TransportConfig struct {
	TLS *tls.Config

	MaxWriteRetries   int           `yaml:"max_write_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	BackoffJitterFrac float64       `yaml:"backoff_jitter_frac"`
}

// Transport implements network.Transport over HTTP/3, resolving shard IDs to
// peer addresses through the registry and keeping one lazily created Sender
// per peer.
type Transport struct {
	cfg      TransportConfig
	registry shardmap.Registry
	logger   *zap.Logger

	mu      sync.Mutex
	senders map[string]*Sender
	closed  bool
}

// NewTransport builds a transport over the given shard registry.
func NewTransport(cfg TransportConfig, registry shardmap.Registry, logger *zap.Logger) *Transport {
	return &Transport{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		senders:  make(map[string]*Sender),
	}
}

// Send delivers data to the named shard's coordinator endpoint.
func (t *Transport) Send(ctx context.Context, shardID string, data []byte) error {
	sender, err := t.senderFor(shardID)
	if err != nil {
		return err
	}
	return sender.Send(ctx, data)
}

func (t *Transport) senderFor(shardID string) (*Sender, error) {
	info, ok := t.registry.GetShardInfo(shardID)
	if !ok {
		return nil, fmt.Errorf("no address known for shard %s", shardID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, fmt.Errorf("transport closed")
	}
	if sender, ok := t.senders[shardID]; ok {
		return sender, nil
	}

	sender, err := NewSender(SenderConfig{
		Addr:              info.Address,
		TLS:               t.cfg.TLS,
		MaxWriteRetries:   t.cfg.MaxWriteRetries,
		InitialBackoff:    t.cfg.InitialBackoff,
		MaxBackoff:        t.cfg.MaxBackoff,
		BackoffJitterFrac: t.cfg.BackoffJitterFrac,
	}, t.logger.With(zap.String("peer_shard_id", shardID)))
	if err != nil {
		return nil, fmt.Errorf("create sender for shard %s: %w", shardID, err)
	}
	t.senders[shardID] = sender
	return sender, nil
}

// Close tears down every peer sender.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var firstErr error
	for shardID, sender := range t.senders {
		if err := sender.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close sender for shard %s: %w", shardID, err)
		}
	}
	t.senders = nil
	return firstErr
}
