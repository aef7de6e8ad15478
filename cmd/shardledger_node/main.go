// Command shardledger_node runs one shard's ledger node: the Raft-backed
// consensus engine, the HTTP/3 message transport, and the cross-shard
// transaction coordinator with its periodic driver tick.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shardledger/shardledger/config"
	"github.com/shardledger/shardledger/config/certs"
	"github.com/shardledger/shardledger/core/consensus"
	"github.com/shardledger/shardledger/core/consensus/raftengine"
	"github.com/shardledger/shardledger/core/crossshard"
	"github.com/shardledger/shardledger/core/metrics"
	"github.com/shardledger/shardledger/core/network/h3"
	"github.com/shardledger/shardledger/core/shardmap"
	"github.com/shardledger/shardledger/pkg/logger"
	"github.com/shardledger/shardledger/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath = flag.String("config", "node.yaml", "Path to the node configuration file")
	genCerts   = flag.Bool("gen_certs", false, "Generate TLS certificates into the configured certs directory and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("CRITICAL: failed to load configuration: %v", err)
	}

	if *genCerts {
		hosts := []string{"localhost"}
		if err := certs.Generate(cfg.Transport.CertsDir, hosts...); err != nil {
			log.Fatalf("CRITICAL: failed to generate certificates: %v", err)
		}
		log.Printf("certificates written to %s", cfg.Transport.CertsDir)
		return
	}

	zlogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("CRITICAL: failed to initialize logger: %v", err)
	}
	defer func() { _ = zlogger.Sync() }()
	zlogger = zlogger.With(zap.String("shard_id", cfg.ShardID))

	tel, telShutdown, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		zlogger.Fatal("failed to initialize telemetry", zap.Error(err))
	}

	zlogger.Info("starting shard ledger node",
		zap.String("listen_addr", cfg.Transport.ListenAddr),
		zap.Int("shards", len(cfg.Shards)))

	registry := shardmap.NewStaticRegistry(cfg.Shards)

	engine, engineClose, err := buildEngine(cfg, zlogger)
	if err != nil {
		zlogger.Fatal("failed to start consensus engine", zap.Error(err))
	}

	serverTLS, err := certs.LoadServerTLSConfig(cfg.Transport.CertsDir)
	if err != nil {
		zlogger.Fatal("failed to load server TLS config", zap.Error(err))
	}
	clientTLS, err := certs.LoadClientTLSConfig(cfg.Transport.CertsDir)
	if err != nil {
		zlogger.Fatal("failed to load client TLS config", zap.Error(err))
	}

	receiver, err := h3.NewReceiver(h3.ReceiverConfig{
		Addr:          cfg.Transport.ListenAddr,
		TLS:           serverTLS,
		QueueCapacity: cfg.Transport.QueueCapacity,
		Backpressure:  h3.DropIfFull,
	}, zlogger.Named("receiver"))
	if err != nil {
		zlogger.Fatal("failed to build receiver", zap.Error(err))
	}
	if err := receiver.Start(); err != nil {
		zlogger.Fatal("failed to start receiver", zap.Error(err))
	}

	transport := h3.NewTransport(h3.TransportConfig{
		TLS:               clientTLS,
		MaxWriteRetries:   cfg.Transport.MaxWriteRetries,
		InitialBackoff:    cfg.Transport.InitialBackoff,
		MaxBackoff:        cfg.Transport.MaxBackoff,
		BackoffJitterFrac: cfg.Transport.BackoffJitterFrac,
	}, registry, zlogger.Named("transport"))

	coordinator := crossshard.NewCoordinator(
		cfg.ShardID,
		registry,
		engine,
		transport,
		metrics.NewOTelSink(tel.Meter, zlogger.Named("metrics")),
		zlogger,
	)
	applyCoordinatorConfig(coordinator, cfg.Coordinator)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		consumeMessages(ctx, coordinator, receiver, zlogger)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runDriver(ctx, coordinator, tel, cfg.TickInterval, zlogger)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zlogger.Info("shutdown signal received", zap.String("signal", sig.String()))

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := receiver.Close(shutdownCtx); err != nil {
		zlogger.Warn("receiver shutdown failed", zap.Error(err))
	}
	wg.Wait()
	if err := transport.Close(); err != nil {
		zlogger.Warn("transport shutdown failed", zap.Error(err))
	}
	if engineClose != nil {
		if err := engineClose(); err != nil {
			zlogger.Warn("consensus engine shutdown failed", zap.Error(err))
		}
	}
	if err := telShutdown(shutdownCtx); err != nil {
		zlogger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	zlogger.Info("node stopped")
}

// buildEngine picks the consensus backend: Raft when enabled, otherwise the
// in-memory engine for single-node development.
func buildEngine(cfg *config.Config, zlogger *zap.Logger) (consensus.Engine, func() error, error) {
	if !cfg.Raft.Enabled {
		zlogger.Warn("raft disabled, using in-memory consensus engine")
		return consensus.NewInMemoryEngine(zlogger.Named("consensus")), nil, nil
	}

	engine, err := raftengine.NewEngine(raftengine.Config{
		NodeID:       cfg.ShardID,
		BindAddr:     cfg.Raft.BindAddr,
		DataDir:      cfg.Raft.DataDir,
		Bootstrap:    cfg.Raft.Bootstrap,
		ApplyTimeout: cfg.Raft.ApplyTimeout,
	}, zlogger.Named("consensus"))
	if err != nil {
		return nil, nil, err
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := engine.WaitForLeader(waitCtx); err != nil {
		zlogger.Warn("no raft leader yet, continuing startup", zap.Error(err))
	}
	return engine, engine.Close, nil
}

// consumeMessages feeds inbound transport frames to the coordinator until the
// receiver's channel closes or ctx is cancelled.
func consumeMessages(ctx context.Context, c *crossshard.Coordinator, r *h3.Receiver, zlogger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-r.Events():
			if !ok {
				return
			}
			if err := c.HandleRawMessage(ctx, data); err != nil {
				if errors.Is(err, crossshard.ErrNotFound) {
					zlogger.Debug("message for unknown transaction", zap.Error(err))
					continue
				}
				zlogger.Warn("failed to handle inbound message", zap.Error(err))
			}
		}
	}
}

// runDriver ticks the coordinator's Process loop, wrapping each tick in a
// trace span.
func runDriver(ctx context.Context, c *crossshard.Coordinator, tel *telemetry.Telemetry, interval time.Duration, zlogger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickCtx, span := tel.Tracer.Start(ctx, "coordinator.process")
			if err := c.Process(tickCtx); err != nil && !errors.Is(err, context.Canceled) {
				zlogger.Error("driver tick failed", zap.Error(err))
			}
			span.End()
		}
	}
}

func applyCoordinatorConfig(c *crossshard.Coordinator, cfg config.CoordinatorConfig) {
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	if cfg.RetryInterval > 0 {
		c.SetRetryInterval(cfg.RetryInterval)
	}
	if cfg.MaxRetries > 0 {
		c.SetMaxRetries(cfg.MaxRetries)
	}
	if cfg.RequiredConfirmations > 0 {
		c.SetRequiredConfirmations(cfg.RequiredConfirmations)
	}
	if cfg.CleanupInterval > 0 {
		c.SetCleanupInterval(cfg.CleanupInterval)
	}
	if cfg.RetentionPeriod > 0 {
		c.SetRetentionPeriod(cfg.RetentionPeriod)
	}
}
