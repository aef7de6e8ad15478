// Package raftengine provides a consensus.Engine backed by HashiCorp Raft:
// transactions are replicated through the Raft log and applied to an
// in-memory ledger state machine, with BoltDB-backed log and stable stores.
package raftengine

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
	"go.uber.org/zap"

	"github.com/shardledger/shardledger/core/ledger"
)

// Operation types replicated through the Raft log.
const (
	OpCommitTransaction = "commit_transaction"
)

// LogCommand is the unit of replication: one operation on the shard ledger.
type LogCommand struct {
	Op          string              `json:"op"`
	Transaction *ledger.Transaction `json:"transaction,omitempty"`
}

// FSM implements raft.FSM over the shard's committed transaction set.
type FSM struct {
	mu     sync.RWMutex
	logger *zap.Logger
	byID   map[string]*ledger.Transaction

	lastAppliedIndex uint64
}

// NewFSM creates an empty ledger state machine.
func NewFSM(logger *zap.Logger) *FSM {
	return &FSM{
		logger: logger,
		byID:   make(map[string]*ledger.Transaction),
	}
}

// Apply applies a Raft log entry. Called on the leader and every follower;
// re-applying an already committed transaction is a no-op so resubmissions
// from the cross-shard retry sweep are safe.
func (f *FSM) Apply(logEntry *raft.Log) interface{} {
	var cmd LogCommand
	if err := json.Unmarshal(logEntry.Data, &cmd); err != nil {
		f.logger.Error("failed to unmarshal raft log entry", zap.Error(err))
		return fmt.Errorf("unmarshal raft log entry: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAppliedIndex = logEntry.Index

	switch cmd.Op {
	case OpCommitTransaction:
		if cmd.Transaction == nil {
			return fmt.Errorf("commit_transaction command without a transaction")
		}
		if _, ok := f.byID[cmd.Transaction.ID]; ok {
			return nil
		}
		applied := cmd.Transaction.Clone()
		applied.Status = ledger.StatusConfirmed
		f.byID[applied.ID] = applied
		f.logger.Debug("applied transaction",
			zap.String("tx_id", applied.ID), zap.Uint64("raft_index", logEntry.Index))
		return nil
	default:
		f.logger.Warn("unknown raft command operation", zap.String("op", cmd.Op))
		return fmt.Errorf("unknown raft command operation: %s", cmd.Op)
	}
}

// Snapshot returns a point-in-time copy of the ledger state for log
// truncation.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	byID := make(map[string]*ledger.Transaction, len(f.byID))
	for id, tx := range f.byID {
		byID[id] = tx.Clone()
	}
	return &fsmSnapshot{byID: byID}, nil
}

// Restore replaces the ledger state from a snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var data snapshotData
	if err := json.NewDecoder(rc).Decode(&data); err != nil {
		return fmt.Errorf("decode ledger snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID = data.Transactions
	if f.byID == nil {
		f.byID = make(map[string]*ledger.Transaction)
	}
	f.logger.Info("ledger state restored from snapshot", zap.Int("transactions", len(f.byID)))
	return nil
}

// Get returns the committed transaction with the given ID, if any.
func (f *FSM) Get(id string) (*ledger.Transaction, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	tx, ok := f.byID[id]
	if !ok {
		return nil, false
	}
	return tx.Clone(), true
}

// Len returns the number of committed transactions.
func (f *FSM) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.byID)
}

// LastAppliedIndex returns the highest Raft log index applied so far.
func (f *FSM) LastAppliedIndex() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastAppliedIndex
}

type snapshotData struct {
	Transactions map[string]*ledger.Transaction `json:"transactions"`
}

type fsmSnapshot struct {
	byID map[string]*ledger.Transaction
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	defer sink.Close()

	bytes, err := json.Marshal(snapshotData{Transactions: s.byID})
	if err != nil {
		return fmt.Errorf("marshal ledger snapshot: %w", err)
	}
	if _, err := sink.Write(bytes); err != nil {
		return fmt.Errorf("write ledger snapshot: %w", err)
	}
	return nil
}

func (s *fsmSnapshot) Release() {}
