// Package ledger defines the base transaction type that shards execute and
// relay. The cross-shard coordinator treats it as an opaque payload; the
// consensus engines validate and apply it.
package ledger

import (
	"fmt"
	"time"
)

// Status is the execution status of a ledger transaction within a shard.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// MaxPayloadSize caps the opaque payload carried by a transaction.
const MaxPayloadSize = 1 << 20 // 1 MiB

const (
	// maxFutureSkew is how far in the future a transaction timestamp may be.
	maxFutureSkew = 60 * time.Second
	// maxAge is how old a transaction may be before it is rejected.
	maxAge = time.Hour
)

// Transaction is a single ledger transaction as relayed between shards.
type Transaction struct {
	ID        string    `json:"id"`
	ShardID   string    `json:"shard_id"`
	ParentIDs []string  `json:"parent_ids,omitempty"`
	Timestamp int64     `json:"timestamp"`
	Payload   []byte    `json:"payload"`
	Signature []byte    `json:"signature"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate performs the structural checks a shard applies before admitting a
// transaction: non-empty identity and signature, bounded timestamp skew, and
// a capped payload size. Signature verification itself is the responsibility
// of the crypto layer, not this subsystem.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("empty transaction ID")
	}

	now := time.Now().Unix()
	if t.Timestamp > now+int64(maxFutureSkew.Seconds()) {
		return fmt.Errorf("transaction timestamp too far in the future: %d > %d", t.Timestamp, now+int64(maxFutureSkew.Seconds()))
	}
	if t.Timestamp < now-int64(maxAge.Seconds()) {
		return fmt.Errorf("transaction too old: %d < %d", t.Timestamp, now-int64(maxAge.Seconds()))
	}

	if len(t.Payload) > MaxPayloadSize {
		return fmt.Errorf("payload too large: %d > %d bytes", len(t.Payload), MaxPayloadSize)
	}
	if len(t.Signature) == 0 {
		return fmt.Errorf("empty signature")
	}

	for _, parent := range t.ParentIDs {
		if parent == "" {
			return fmt.Errorf("empty parent transaction ID")
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hand the transaction across
// goroutine boundaries without sharing the slices.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	cp := *t
	if t.ParentIDs != nil {
		cp.ParentIDs = append([]string(nil), t.ParentIDs...)
	}
	if t.Payload != nil {
		cp.Payload = append([]byte(nil), t.Payload...)
	}
	if t.Signature != nil {
		cp.Signature = append([]byte(nil), t.Signature...)
	}
	return &cp
}
