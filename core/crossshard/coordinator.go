// Package crossshard implements the cross-shard transaction coordinator: the
// protocol that relays a single ledger transaction from a source shard to a
// target shard with a resilient state machine, an asynchronous six-message
// handshake, confirmation counting, retry and timeout sweeps, and garbage
// collection of completed work.
//
// Each side of the handshake keeps its own record of the transaction and
// counts acknowledge increments into the same logical confirmations field;
// a record completes once its counter reaches the required confirmations.
// A transaction whose retries are exhausted stays pending until the timeout
// sweep reaps it; the timeout is the effective ceiling on a stuck handshake.
package crossshard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shardledger/shardledger/core/consensus"
	"github.com/shardledger/shardledger/core/ledger"
	"github.com/shardledger/shardledger/core/metrics"
	"github.com/shardledger/shardledger/core/network"
	"github.com/shardledger/shardledger/core/shardmap"
)

// Defaults for the coordinator's policy knobs.
const (
	DefaultTimeout               = 300 * time.Second
	DefaultRetryInterval         = 30 * time.Second
	DefaultMaxRetries            = 5
	DefaultRequiredConfirmations = 2
	DefaultCleanupInterval       = time.Hour
	DefaultRetentionPeriod       = 7 * 24 * time.Hour

	// drainBatchSize bounds how many queued sends one Process tick attempts
	// per queue.
	drainBatchSize = 10

	// Per-peer inbound message rate limit.
	defaultMessageRate  rate.Limit = 200
	defaultMessageBurst            = 400
)

// Coordinator drives cross-shard transactions for one shard. It is safe for
// concurrent use by the inbound-message path and the periodic Process tick;
// the mutex is never held across consensus submission or transport sends.
type Coordinator struct {
	shardID   string
	registry  shardmap.Registry
	engine    consensus.Engine
	transport network.Transport
	metrics   metrics.Sink
	logger    *zap.Logger

	mu            sync.Mutex
	pending       map[string]*Transaction
	completed     map[string]*Transaction
	transmitQueue idQueue
	ackQueue      idQueue

	timeout               time.Duration
	retryInterval         time.Duration
	maxRetries            uint32
	requiredConfirmations uint32
	cleanupInterval       time.Duration
	retentionPeriod       time.Duration
	lastCleanup           time.Time

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewCoordinator builds a coordinator for the given shard with default
// policy knobs.
func NewCoordinator(
	shardID string,
	registry shardmap.Registry,
	engine consensus.Engine,
	transport network.Transport,
	sink metrics.Sink,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		shardID:   shardID,
		registry:  registry,
		engine:    engine,
		transport: transport,
		metrics:   sink,
		logger:    logger.With(zap.String("shard_id", shardID)),

		pending:   make(map[string]*Transaction),
		completed: make(map[string]*Transaction),

		timeout:               DefaultTimeout,
		retryInterval:         DefaultRetryInterval,
		maxRetries:            DefaultMaxRetries,
		requiredConfirmations: DefaultRequiredConfirmations,
		cleanupInterval:       DefaultCleanupInterval,
		retentionPeriod:       DefaultRetentionPeriod,
		lastCleanup:           time.Now(),

		limiters: make(map[string]*rate.Limiter),
	}
}

// ShardID returns the local shard this coordinator serves.
func (c *Coordinator) ShardID() string { return c.shardID }

// CreateTransaction registers a new outbound cross-shard transaction and
// enqueues it for transmission. It returns the new transaction ID.
func (c *Coordinator) CreateTransaction(payload *ledger.Transaction, targetShardID string) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("%w: nil payload", ErrInvalidInput)
	}
	if targetShardID == c.shardID {
		return "", fmt.Errorf("%w: target shard %s is the local shard", ErrInvalidInput, targetShardID)
	}
	if !c.registry.ShardExists(targetShardID) {
		return "", fmt.Errorf("%w: target shard not found: %s", ErrInvalidInput, targetShardID)
	}

	now := time.Now()
	id := NewTransactionID(c.shardID)
	tx := &Transaction{
		ID:                    id,
		Payload:               payload.Clone(),
		SourceShardID:         c.shardID,
		TargetShardID:         targetShardID,
		Status:                StatusInitialized,
		CreatedAt:             now,
		UpdatedAt:             now,
		RequiredConfirmations: c.requiredConfirmations,
		MaxRetries:            c.maxRetries,
		Metadata:              make(map[string]string),
	}

	c.mu.Lock()
	c.pending[id] = tx
	c.transmitQueue.push(id)
	c.mu.Unlock()

	c.metrics.IncrementCounter("cross_shard_transactions_created")
	c.logger.Info("created cross-shard transaction",
		zap.String("tx_id", id), zap.String("target_shard_id", targetShardID))
	return id, nil
}

// Transmit commits the transaction on the local shard (first attempt only)
// and sends it to the target shard. Valid only from Initialized or
// SourceCommitted; a consensus failure leaves the record in Initialized so
// the retry sweep can re-drive it.
func (c *Coordinator) Transmit(ctx context.Context, id string) error {
	c.mu.Lock()
	tx, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: cross-shard transaction %s", ErrNotFound, id)
	}
	if tx.Status != StatusInitialized && tx.Status != StatusSourceCommitted {
		status := tx.Status
		c.mu.Unlock()
		return fmt.Errorf("%w: transaction %s is not transmittable from %s", ErrInvalidState, id, status)
	}
	status := tx.Status
	payload := tx.Payload.Clone()
	sourceShardID, targetShardID := tx.SourceShardID, tx.TargetShardID
	c.mu.Unlock()

	if status == StatusInitialized {
		if err := c.engine.SubmitTransaction(ctx, payload); err != nil {
			return fmt.Errorf("submit transaction %s to local consensus: %w", id, err)
		}
		c.mu.Lock()
		if tx, ok := c.pending[id]; ok && tx.Status == StatusInitialized {
			tx.Status = StatusSourceCommitted
			tx.UpdatedAt = time.Now()
		}
		c.mu.Unlock()
		c.metrics.IncrementCounter("cross_shard_transactions_source_committed")
	}

	msg := NewMessage(KindTransmit, id, sourceShardID, targetShardID)
	msg.Transaction = payload
	if err := c.send(ctx, targetShardID, msg); err != nil {
		return fmt.Errorf("transmit transaction %s: %w", id, err)
	}

	c.mu.Lock()
	if tx, ok := c.pending[id]; ok && tx.Status == StatusSourceCommitted {
		tx.Status = StatusTransmitted
		tx.UpdatedAt = time.Now()
	}
	c.mu.Unlock()

	c.metrics.IncrementCounter("cross_shard_transactions_transmitted")
	c.logger.Debug("transmitted cross-shard transaction", zap.String("tx_id", id))
	return nil
}

// ReceiveTransaction records first sight of a transmitted transaction on the
// target shard, acknowledges receipt to the source, and submits the payload
// to local consensus. Duplicate deliveries are no-ops.
func (c *Coordinator) ReceiveTransaction(ctx context.Context, id string, payload *ledger.Transaction, sourceShardID string) error {
	if payload == nil {
		return fmt.Errorf("%w: nil payload for transaction %s", ErrInvalidInput, id)
	}

	now := time.Now()
	c.mu.Lock()
	if _, ok := c.pending[id]; ok {
		c.mu.Unlock()
		return nil
	}
	if _, ok := c.completed[id]; ok {
		c.mu.Unlock()
		return nil
	}
	tx := &Transaction{
		ID:                    id,
		Payload:               payload.Clone(),
		SourceShardID:         sourceShardID,
		TargetShardID:         c.shardID,
		Status:                StatusTargetReceived,
		CreatedAt:             now,
		UpdatedAt:             now,
		RequiredConfirmations: c.requiredConfirmations,
		MaxRetries:            c.maxRetries,
		Metadata:              make(map[string]string),
	}
	c.pending[id] = tx
	c.mu.Unlock()

	reply := NewMessage(KindReceived, id, sourceShardID, c.shardID)
	if err := c.send(ctx, sourceShardID, reply); err != nil {
		return fmt.Errorf("acknowledge receipt of %s: %w", id, err)
	}

	if err := c.engine.SubmitTransaction(ctx, payload); err != nil {
		return fmt.Errorf("submit received transaction %s to local consensus: %w", id, err)
	}

	c.metrics.IncrementCounter("cross_shard_transactions_received")
	c.logger.Debug("received cross-shard transaction",
		zap.String("tx_id", id), zap.String("source_shard_id", sourceShardID))
	return nil
}

// handleReceivedAck advances a Transmitted transaction to TargetReceived on
// the source side. Late or duplicate deliveries are ignored.
func (c *Coordinator) handleReceivedAck(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, ok := c.pending[msg.TransactionID]
	if !ok {
		return fmt.Errorf("%w: cross-shard transaction %s", ErrNotFound, msg.TransactionID)
	}
	if tx.Status != StatusTransmitted {
		return nil
	}
	if err := checkShardPair(tx, msg); err != nil {
		return err
	}

	tx.Status = StatusTargetReceived
	tx.UpdatedAt = time.Now()
	c.metrics.IncrementCounter("cross_shard_transactions_target_received")
	return nil
}

// HandleCommit processes a commit event. On the target shard it is invoked
// when local consensus finalizes the relayed payload: the reported ledger
// status is recorded and a TransactionCommit is sent back to the source. On
// the source shard it handles that inbound message and enqueues the
// acknowledge round.
func (c *Coordinator) HandleCommit(ctx context.Context, msg *Message) error {
	c.mu.Lock()
	tx, ok := c.pending[msg.TransactionID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: cross-shard transaction %s", ErrNotFound, msg.TransactionID)
	}
	if err := checkShardPair(tx, msg); err != nil {
		c.mu.Unlock()
		return err
	}

	var reply *Message
	switch c.shardID {
	case msg.SourceShardID:
		if tx.Status == StatusTargetReceived {
			tx.Status = StatusTargetCommitted
			tx.UpdatedAt = time.Now()
			c.ackQueue.push(tx.ID)
			c.metrics.IncrementCounter("cross_shard_transactions_target_committed")
		}
	case msg.TargetShardID:
		if tx.Status == StatusTargetReceived {
			tx.Payload.Status = msg.LedgerStatus
			tx.Status = StatusTargetCommitted
			tx.UpdatedAt = time.Now()
			reply = NewMessage(KindCommit, tx.ID, msg.SourceShardID, msg.TargetShardID)
			reply.LedgerStatus = msg.LedgerStatus
			c.metrics.IncrementCounter("cross_shard_transactions_target_committed")
		}
	default:
		c.mu.Unlock()
		return fmt.Errorf("%w: shard %s is neither source nor target of %s", ErrInvalidState, c.shardID, msg.TransactionID)
	}
	sourceShardID := tx.SourceShardID
	c.mu.Unlock()

	if reply != nil {
		if err := c.send(ctx, sourceShardID, reply); err != nil {
			return fmt.Errorf("send commit for %s: %w", msg.TransactionID, err)
		}
	}
	return nil
}

// handleAcknowledge counts an acknowledge increment. The source side also
// advances to SourceAcknowledged; either side completes the transaction once
// the confirmation target is reached.
func (c *Coordinator) handleAcknowledge(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, ok := c.pending[msg.TransactionID]
	if !ok {
		return fmt.Errorf("%w: cross-shard transaction %s", ErrNotFound, msg.TransactionID)
	}
	if err := checkShardPair(tx, msg); err != nil {
		return err
	}

	switch c.shardID {
	case msg.SourceShardID:
		if tx.Status != StatusTargetCommitted {
			return nil
		}
		tx.Status = StatusSourceAcknowledged
		tx.UpdatedAt = time.Now()
		tx.Confirmations++
		if tx.Confirmations >= tx.RequiredConfirmations {
			c.completeLocked(tx, StatusCompleted)
		}
		c.metrics.IncrementCounter("cross_shard_transactions_source_acknowledged")
	case msg.TargetShardID:
		if tx.Status != StatusTargetCommitted {
			return nil
		}
		tx.Confirmations++
		if tx.Confirmations >= tx.RequiredConfirmations {
			c.completeLocked(tx, StatusCompleted)
		}
	default:
		return fmt.Errorf("%w: shard %s is neither source nor target of %s", ErrInvalidState, c.shardID, msg.TransactionID)
	}
	return nil
}

// handleStatusQuery replies to the querying shard with the locally known
// status. Read-only.
func (c *Coordinator) handleStatusQuery(ctx context.Context, msg *Message) error {
	c.mu.Lock()
	var status Status
	if tx, ok := c.pending[msg.TransactionID]; ok {
		status = tx.Status
	} else if tx, ok := c.completed[msg.TransactionID]; ok {
		status = tx.Status
	} else {
		c.mu.Unlock()
		return fmt.Errorf("%w: cross-shard transaction %s", ErrNotFound, msg.TransactionID)
	}
	c.mu.Unlock()

	reply := NewMessage(KindStatusResponse, msg.TransactionID, msg.SourceShardID, msg.TargetShardID)
	reply.CrossStatus = status

	// Answer whichever side asked.
	replyTo := msg.SourceShardID
	if c.shardID == msg.SourceShardID {
		replyTo = msg.TargetShardID
	}
	if err := c.send(ctx, replyTo, reply); err != nil {
		return fmt.Errorf("send status response for %s: %w", msg.TransactionID, err)
	}
	return nil
}

// handleStatusResponse merges a remotely reported status into the local
// record. Completed and Failed are adopted immediately; anything else only
// overwrites a strictly lower-priority local status, so state never
// regresses.
func (c *Coordinator) handleStatusResponse(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, ok := c.pending[msg.TransactionID]
	if !ok {
		return fmt.Errorf("%w: cross-shard transaction %s", ErrNotFound, msg.TransactionID)
	}
	if err := checkShardPair(tx, msg); err != nil {
		return err
	}

	switch msg.CrossStatus {
	case StatusCompleted:
		c.completeLocked(tx, StatusCompleted)
	case StatusFailed:
		c.completeLocked(tx, StatusFailed)
	default:
		if msg.CrossStatus.Priority() > tx.Status.Priority() {
			tx.Status = msg.CrossStatus
			tx.UpdatedAt = time.Now()
		}
	}
	return nil
}

// HandleMessage routes an inbound protocol message to the matching handler.
// Messages from a peer exceeding its rate allowance are dropped; the
// protocol's retries and reconciliation make that safe.
func (c *Coordinator) HandleMessage(ctx context.Context, msg *Message) error {
	peer := msg.SourceShardID
	if c.shardID == msg.SourceShardID {
		peer = msg.TargetShardID
	}
	if !c.peerLimiter(peer).Allow() {
		c.metrics.IncrementCounter("cross_shard_messages_rate_limited")
		c.logger.Warn("dropping rate-limited message",
			zap.String("peer_shard_id", peer), zap.String("kind", string(msg.Kind)))
		return nil
	}

	switch msg.Kind {
	case KindTransmit:
		return c.ReceiveTransaction(ctx, msg.TransactionID, msg.Transaction, msg.SourceShardID)
	case KindReceived:
		return c.handleReceivedAck(msg)
	case KindCommit:
		return c.HandleCommit(ctx, msg)
	case KindAcknowledge:
		return c.handleAcknowledge(msg)
	case KindStatusQuery:
		return c.handleStatusQuery(ctx, msg)
	case KindStatusResponse:
		return c.handleStatusResponse(msg)
	default:
		return fmt.Errorf("%w: unhandled message kind %q", ErrSerialization, msg.Kind)
	}
}

// HandleRawMessage decodes and dispatches a wire message. Intended as the
// transport's inbound entry point.
func (c *Coordinator) HandleRawMessage(ctx context.Context, data []byte) error {
	msg, err := DecodeMessage(data)
	if err != nil {
		return err
	}
	return c.HandleMessage(ctx, msg)
}

// QueryStatus proactively asks the peer shard for its view of a pending
// transaction, repairing state lost to dropped messages.
func (c *Coordinator) QueryStatus(ctx context.Context, id string) error {
	c.mu.Lock()
	tx, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: cross-shard transaction %s", ErrNotFound, id)
	}
	sourceShardID, targetShardID := tx.SourceShardID, tx.TargetShardID
	c.mu.Unlock()

	peer := sourceShardID
	if c.shardID == sourceShardID {
		peer = targetShardID
	}
	msg := NewMessage(KindStatusQuery, id, sourceShardID, targetShardID)
	if err := c.send(ctx, peer, msg); err != nil {
		return fmt.Errorf("query status of %s: %w", id, err)
	}
	return nil
}

// Process runs one driver tick: drain the transmit and acknowledge queues,
// reap timeouts, re-drive stalled transactions, and purge old completed
// records. Intended to be called periodically.
func (c *Coordinator) Process(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.processTransmitQueue(ctx)
	c.processAckQueue(ctx)
	c.processTimeouts()
	c.processRetries(ctx)
	c.processCleanup()
	return nil
}

func (c *Coordinator) processTransmitQueue(ctx context.Context) {
	for i := 0; i < drainBatchSize; i++ {
		c.mu.Lock()
		id, ok := c.transmitQueue.pop()
		c.mu.Unlock()
		if !ok {
			return
		}

		err := c.Transmit(ctx, id)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidState) {
			// Stale queue entry; the transaction advanced or was reaped.
			c.logger.Debug("dropping stale transmit entry", zap.String("tx_id", id), zap.Error(err))
			continue
		}
		// Requeue at the front so order is preserved, and stop for this
		// tick rather than hammering a broken peer.
		c.mu.Lock()
		c.transmitQueue.pushFront(id)
		c.mu.Unlock()
		c.logger.Error("failed to transmit transaction", zap.String("tx_id", id), zap.Error(err))
		return
	}
}

func (c *Coordinator) processAckQueue(ctx context.Context) {
	for i := 0; i < drainBatchSize; i++ {
		c.mu.Lock()
		id, ok := c.ackQueue.pop()
		if !ok {
			c.mu.Unlock()
			return
		}
		tx, pending := c.pending[id]
		var msg *Message
		var target string
		if pending {
			msg = NewMessage(KindAcknowledge, id, tx.SourceShardID, tx.TargetShardID)
			target = tx.TargetShardID
		}
		c.mu.Unlock()

		if !pending {
			continue
		}
		if err := c.send(ctx, target, msg); err != nil {
			c.mu.Lock()
			c.ackQueue.pushFront(id)
			c.mu.Unlock()
			c.logger.Error("failed to send acknowledgement", zap.String("tx_id", id), zap.Error(err))
			return
		}
	}
}

func (c *Coordinator) processTimeouts() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	var timedOut []string
	for id, tx := range c.pending {
		if tx.Status.IsTerminal() {
			continue
		}
		if now.Sub(tx.UpdatedAt) > c.timeout {
			timedOut = append(timedOut, id)
		}
	}
	for _, id := range timedOut {
		tx := c.pending[id]
		c.completeLocked(tx, StatusTimedOut)
		c.logger.Warn("cross-shard transaction timed out",
			zap.String("tx_id", id), zap.String("last_status", string(tx.Status)))
	}
}

func (c *Coordinator) processRetries(ctx context.Context) {
	now := time.Now()
	c.mu.Lock()
	var resubmit []*ledger.Transaction
	for id, tx := range c.pending {
		if tx.Status.IsTerminal() {
			continue
		}
		if now.Sub(tx.UpdatedAt) <= c.retryInterval || tx.RetryCount >= tx.MaxRetries {
			continue
		}
		tx.RetryCount++
		switch tx.Status {
		case StatusInitialized, StatusSourceCommitted, StatusTransmitted:
			c.transmitQueue.push(id)
		case StatusTargetReceived:
			if c.shardID == tx.TargetShardID {
				resubmit = append(resubmit, tx.Payload.Clone())
			}
		case StatusTargetCommitted:
			c.ackQueue.push(id)
		}
		c.metrics.IncrementCounter("cross_shard_transactions_retried")
		c.logger.Debug("retrying cross-shard transaction",
			zap.String("tx_id", id), zap.String("status", string(tx.Status)),
			zap.Uint32("retry_count", tx.RetryCount))
	}
	c.mu.Unlock()

	for _, payload := range resubmit {
		if err := c.engine.SubmitTransaction(ctx, payload); err != nil {
			c.logger.Error("failed to resubmit transaction to local consensus",
				zap.String("tx_id", payload.ID), zap.Error(err))
		}
	}
}

func (c *Coordinator) processCleanup() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	for id, tx := range c.completed {
		if tx.CompletedAt != nil && now.Sub(*tx.CompletedAt) > c.retentionPeriod {
			delete(c.completed, id)
		}
	}
	c.lastCleanup = now
}

// completeLocked stamps a terminal status and moves the record from pending
// to completed. Callers must hold c.mu.
func (c *Coordinator) completeLocked(tx *Transaction, status Status) {
	now := time.Now()
	tx.Status = status
	tx.CompletedAt = &now
	delete(c.pending, tx.ID)
	c.completed[tx.ID] = tx

	switch status {
	case StatusCompleted:
		c.metrics.IncrementCounter("cross_shard_transactions_completed")
	case StatusFailed:
		c.metrics.IncrementCounter("cross_shard_transactions_failed")
	case StatusTimedOut:
		c.metrics.IncrementCounter("cross_shard_transactions_timed_out")
	}
}

// send serializes msg and hands it to the transport.
func (c *Coordinator) send(ctx context.Context, shardID string, msg *Message) error {
	if _, ok := c.registry.GetShardInfo(shardID); !ok {
		return fmt.Errorf("%w: shard %s", ErrNotFound, shardID)
	}
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := c.transport.Send(ctx, shardID, data); err != nil {
		return fmt.Errorf("send %s to shard %s: %w", msg.Kind, shardID, err)
	}
	c.metrics.IncrementCounter("cross_shard_messages_sent")
	return nil
}

func (c *Coordinator) peerLimiter(shardID string) *rate.Limiter {
	c.limMu.Lock()
	defer c.limMu.Unlock()
	lim, ok := c.limiters[shardID]
	if !ok {
		lim = rate.NewLimiter(defaultMessageRate, defaultMessageBurst)
		c.limiters[shardID] = lim
	}
	return lim
}

// checkShardPair validates that a message's shard pair matches the stored
// record.
func checkShardPair(tx *Transaction, msg *Message) error {
	if tx.SourceShardID != msg.SourceShardID || tx.TargetShardID != msg.TargetShardID {
		return fmt.Errorf("%w: shard IDs do not match: expected source=%s, target=%s, got source=%s, target=%s",
			ErrInvalidInput, tx.SourceShardID, tx.TargetShardID, msg.SourceShardID, msg.TargetShardID)
	}
	return nil
}

// GetTransaction returns a copy of the record, searching pending then
// completed.
func (c *Coordinator) GetTransaction(id string) (*Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tx, ok := c.pending[id]; ok {
		return tx.Clone(), nil
	}
	if tx, ok := c.completed[id]; ok {
		return tx.Clone(), nil
	}
	return nil, fmt.Errorf("%w: cross-shard transaction %s", ErrNotFound, id)
}

// GetPendingSourceTransactions returns pending transactions originated by
// this shard.
func (c *Coordinator) GetPendingSourceTransactions() []*Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Transaction
	for _, tx := range c.pending {
		if tx.SourceShardID == c.shardID {
			out = append(out, tx.Clone())
		}
	}
	return out
}

// GetPendingTargetTransactions returns pending transactions addressed to
// this shard.
func (c *Coordinator) GetPendingTargetTransactions() []*Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Transaction
	for _, tx := range c.pending {
		if tx.TargetShardID == c.shardID {
			out = append(out, tx.Clone())
		}
	}
	return out
}

// PendingCount returns the number of pending transactions.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// CompletedCount returns the number of retained completed transactions.
func (c *Coordinator) CompletedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.completed)
}

// SetTimeout sets how long a pending transaction may sit without progress
// before the timeout sweep reaps it.
func (c *Coordinator) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// SetRetryInterval sets how long a transaction may stall before the retry
// sweep re-drives it.
func (c *Coordinator) SetRetryInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retryInterval = d
}

// SetMaxRetries sets the retry ceiling stamped onto new transactions.
func (c *Coordinator) SetMaxRetries(n uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxRetries = n
}

// SetRequiredConfirmations sets the confirmation target stamped onto new
// transactions.
func (c *Coordinator) SetRequiredConfirmations(n uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requiredConfirmations = n
}

// SetCleanupInterval sets the minimum spacing between cleanup sweeps.
func (c *Coordinator) SetCleanupInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupInterval = d
}

// SetRetentionPeriod sets how long completed records are retained before the
// cleanup sweep deletes them.
func (c *Coordinator) SetRetentionPeriod(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retentionPeriod = d
}
