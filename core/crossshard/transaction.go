package crossshard

import (
	"fmt"
	"time"

	"github.com/shardledger/shardledger/core/ledger"
)

// Transaction is the unit of cross-shard work: a ledger transaction being
// relayed from a source shard to a target shard, plus the handshake state
// tracked by the coordinator on each side.
type Transaction struct {
	ID            string              `json:"id"`
	Payload       *ledger.Transaction `json:"payload"`
	SourceShardID string              `json:"source_shard_id"`
	TargetShardID string              `json:"target_shard_id"`

	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Confirmations counts acknowledge increments observed by this side.
	// The transaction completes once it reaches RequiredConfirmations.
	Confirmations         uint32 `json:"confirmations"`
	RequiredConfirmations uint32 `json:"required_confirmations"`

	RetryCount uint32 `json:"retry_count"`
	MaxRetries uint32 `json:"max_retries"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewTransactionID builds a transaction ID that is effectively unique per
// (origin shard, timestamp) pair.
func NewTransactionID(originShardID string) string {
	return fmt.Sprintf("cstx_%s_%d", originShardID, time.Now().UnixNano())
}

// Clone returns a deep copy of the record.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Payload = t.Payload.Clone()
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	if t.Metadata != nil {
		cp.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
