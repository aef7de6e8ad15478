package raftengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"go.uber.org/zap"

	"github.com/shardledger/shardledger/core/ledger"
)

const (
	transportMaxPool = 3
	transportTimeout = 10 * time.Second
	snapshotRetain   = 2

	// DefaultApplyTimeout bounds how long a submission waits for the Raft
	// log to commit.
	DefaultApplyTimeout = 10 * time.Second
)

// ErrNotLeader is returned when a transaction is submitted to a follower.
var ErrNotLeader = errors.New("node is not the raft leader")

// Config carries the Raft settings for one shard node.
type Config struct {
	NodeID       string        `yaml:"node_id"`
	BindAddr     string        `yaml:"bind_addr"`
	DataDir      string        `yaml:"data_dir"`
	Bootstrap    bool          `yaml:"bootstrap"`
	ApplyTimeout time.Duration `yaml:"apply_timeout"`
}

// Engine is a consensus.Engine that replicates transactions through a Raft
// cluster before applying them to the shard ledger.
type Engine struct {
	raft         *raft.Raft
	fsm          *FSM
	logger       *zap.Logger
	applyTimeout time.Duration

	transport *raft.NetworkTransport
	store     *raftboltdb.BoltStore
}

// NewEngine starts a Raft node at cfg.BindAddr with BoltDB-backed log and
// stable stores under cfg.DataDir. With cfg.Bootstrap set, the node forms a
// single-member cluster; otherwise it waits to be joined to an existing one.
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("raft node ID must not be empty")
	}
	applyTimeout := cfg.ApplyTimeout
	if applyTimeout <= 0 {
		applyTimeout = DefaultApplyTimeout
	}

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)
	raftConfig.Logger = newZapHCLogger(logger.Named("raft"))

	dataPath := filepath.Join(cfg.DataDir, cfg.NodeID, "raft")
	if err := os.MkdirAll(dataPath, 0700); err != nil {
		return nil, fmt.Errorf("create raft data directory %s: %w", dataPath, err)
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve raft bind address %s: %w", cfg.BindAddr, err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, transportMaxPool, transportTimeout, raftConfig.LogOutput)
	if err != nil {
		return nil, fmt.Errorf("create raft TCP transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(dataPath, snapshotRetain, raftConfig.LogOutput)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store at %s: %w", dataPath, err)
	}

	store, err := raftboltdb.NewBoltStore(filepath.Join(dataPath, "raft.db"))
	if err != nil {
		return nil, fmt.Errorf("create bolt store at %s: %w", dataPath, err)
	}

	fsm := NewFSM(logger.Named("fsm"))
	node, err := raft.NewRaft(raftConfig, fsm, store, store, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("create raft node: %w", err)
	}

	if cfg.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{ID: raftConfig.LocalID, Address: transport.LocalAddr()},
			},
		}
		if err := node.BootstrapCluster(configuration).Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
			return nil, fmt.Errorf("bootstrap raft cluster: %w", err)
		}
		logger.Info("raft cluster bootstrapped", zap.String("node_id", cfg.NodeID))
	}

	return &Engine{
		raft:         node,
		fsm:          fsm,
		logger:       logger,
		applyTimeout: applyTimeout,
		transport:    transport,
		store:        store,
	}, nil
}

// SubmitTransaction replicates tx through the Raft log. Transactions already
// applied to the state machine are accepted without a new log entry, so the
// cross-shard retry sweep can resubmit freely.
func (e *Engine) SubmitTransaction(ctx context.Context, tx *ledger.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx == nil {
		return fmt.Errorf("nil transaction")
	}
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validate transaction %s: %w", tx.ID, err)
	}
	if _, ok := e.fsm.Get(tx.ID); ok {
		e.logger.Debug("transaction already committed", zap.String("tx_id", tx.ID))
		return nil
	}
	if e.raft.State() != raft.Leader {
		return fmt.Errorf("submit transaction %s: %w", tx.ID, ErrNotLeader)
	}

	data, err := json.Marshal(LogCommand{Op: OpCommitTransaction, Transaction: tx})
	if err != nil {
		return fmt.Errorf("marshal raft command for %s: %w", tx.ID, err)
	}

	timeout := e.applyTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	future := e.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("apply transaction %s: %w", tx.ID, err)
	}
	if resp, ok := future.Response().(error); ok && resp != nil {
		return fmt.Errorf("apply transaction %s: %w", tx.ID, resp)
	}
	return nil
}

// Get returns the committed transaction with the given ID, if any.
func (e *Engine) Get(id string) (*ledger.Transaction, bool) {
	return e.fsm.Get(id)
}

// IsLeader reports whether this node currently leads the cluster.
func (e *Engine) IsLeader() bool {
	return e.raft.State() == raft.Leader
}

// WaitForLeader blocks until the cluster has elected a leader or ctx expires.
func (e *Engine) WaitForLeader(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if addr, _ := e.raft.LeaderWithID(); addr != "" {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for raft leader: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// AddVoter joins another node to the cluster. Leader only.
func (e *Engine) AddVoter(nodeID, addr string) error {
	if e.raft.State() != raft.Leader {
		return ErrNotLeader
	}
	future := e.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 0)
	if err := future.Error(); err != nil {
		return fmt.Errorf("add voter %s at %s: %w", nodeID, addr, err)
	}
	return nil
}

// Close shuts down the Raft node and releases its stores.
func (e *Engine) Close() error {
	if err := e.raft.Shutdown().Error(); err != nil {
		return fmt.Errorf("shutdown raft: %w", err)
	}
	if err := e.transport.Close(); err != nil {
		return fmt.Errorf("close raft transport: %w", err)
	}
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("close raft store: %w", err)
	}
	return nil
}
