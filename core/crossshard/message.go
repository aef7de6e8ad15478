package crossshard

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shardledger/shardledger/core/ledger"
)

// Kind tags the six wire message variants exchanged between coordinators.
type Kind string

const (
	KindTransmit       Kind = "transaction_transmit"
	KindReceived       Kind = "transaction_received"
	KindCommit         Kind = "transaction_commit"
	KindAcknowledge    Kind = "transaction_acknowledge"
	KindStatusQuery    Kind = "transaction_status_query"
	KindStatusResponse Kind = "transaction_status_response"
)

// Message is the wire envelope for coordinator-to-coordinator traffic.
// Every message carries the transaction identity triple; the remaining
// fields are variant-specific (Transaction for transmits, LedgerStatus for
// commits, CrossStatus for status responses).
type Message struct {
	ID            string `json:"id"`
	Kind          Kind   `json:"kind"`
	TransactionID string `json:"transaction_id"`
	SourceShardID string `json:"source_shard_id"`
	TargetShardID string `json:"target_shard_id"`

	Transaction  *ledger.Transaction `json:"transaction,omitempty"`
	LedgerStatus ledger.Status       `json:"transaction_status,omitempty"`
	CrossStatus  Status              `json:"cross_shard_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewMessage builds an envelope with a fresh message ID.
func NewMessage(kind Kind, txID, sourceShardID, targetShardID string) *Message {
	return &Message{
		ID:            uuid.New().String(),
		Kind:          kind,
		TransactionID: txID,
		SourceShardID: sourceShardID,
		TargetShardID: targetShardID,
		CreatedAt:     time.Now().UTC(),
	}
}

// Encode serializes the message for transport.
func (m *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", ErrSerialization, m.Kind, err)
	}
	return data, nil
}

// DecodeMessage parses and validates a wire message. It fails with
// ErrSerialization on malformed payloads and ErrInvalidInput on envelopes
// that are structurally valid JSON but violate the protocol.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode message: %v", ErrSerialization, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Message) validate() error {
	switch m.Kind {
	case KindTransmit, KindReceived, KindCommit, KindAcknowledge, KindStatusQuery, KindStatusResponse:
	default:
		return fmt.Errorf("%w: unknown message kind %q", ErrSerialization, m.Kind)
	}
	if m.TransactionID == "" {
		return fmt.Errorf("%w: empty transaction ID", ErrInvalidInput)
	}
	if m.SourceShardID == "" || m.TargetShardID == "" {
		return fmt.Errorf("%w: empty shard ID in %s message", ErrInvalidInput, m.Kind)
	}
	if m.Kind == KindTransmit && m.Transaction == nil {
		return fmt.Errorf("%w: missing transaction in transmit message", ErrInvalidInput)
	}
	if m.Kind == KindStatusResponse && !m.CrossStatus.Valid() {
		return fmt.Errorf("%w: invalid status %q in status response", ErrInvalidInput, m.CrossStatus)
	}
	return nil
}
