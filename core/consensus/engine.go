// Package consensus defines the engine that finalizes a transaction's
// ordering inside a single shard, and provides an in-memory implementation
// for single-process deployments and tests. The Raft-backed engine lives in
// the raftengine subpackage.
package consensus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/shardledger/shardledger/core/ledger"
)

// Engine commits and validates transactions within the local shard.
// Submissions must be idempotent: the cross-shard retry sweep resubmits the
// same transaction until the handshake advances.
type Engine interface {
	SubmitTransaction(ctx context.Context, tx *ledger.Transaction) error
}

// InMemoryEngine validates transactions and applies them to a local map.
type InMemoryEngine struct {
	mu     sync.RWMutex
	logger *zap.Logger
	byID   map[string]*ledger.Transaction
}

// NewInMemoryEngine returns an empty in-memory engine.
func NewInMemoryEngine(logger *zap.Logger) *InMemoryEngine {
	return &InMemoryEngine{
		logger: logger,
		byID:   make(map[string]*ledger.Transaction),
	}
}

// SubmitTransaction validates tx and records it as confirmed. Resubmitting a
// transaction that was already applied is a no-op.
func (e *InMemoryEngine) SubmitTransaction(ctx context.Context, tx *ledger.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx == nil {
		return fmt.Errorf("nil transaction")
	}
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validate transaction %s: %w", tx.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.byID[tx.ID]; ok {
		e.logger.Debug("transaction already committed", zap.String("tx_id", tx.ID))
		return nil
	}
	applied := tx.Clone()
	applied.Status = ledger.StatusConfirmed
	e.byID[tx.ID] = applied
	e.logger.Debug("transaction committed", zap.String("tx_id", tx.ID), zap.String("shard_id", tx.ShardID))
	return nil
}

// Get returns the committed transaction with the given ID, if any.
func (e *InMemoryEngine) Get(id string) (*ledger.Transaction, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tx, ok := e.byID[id]
	if !ok {
		return nil, false
	}
	return tx.Clone(), true
}

// Len returns the number of committed transactions.
func (e *InMemoryEngine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.byID)
}
