package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseTransaction() *Transaction {
	return &Transaction{
		ID:        "tx-1",
		ShardID:   "shard-1",
		ParentIDs: []string{"tx-0"},
		Timestamp: time.Now().Unix(),
		Payload:   []byte("payload"),
		Signature: []byte("sig"),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr bool
	}{
		{"valid", func(*Transaction) {}, false},
		{"no parents is valid", func(tx *Transaction) { tx.ParentIDs = nil }, false},
		{"empty id", func(tx *Transaction) { tx.ID = "" }, true},
		{"future timestamp", func(tx *Transaction) { tx.Timestamp = time.Now().Add(2 * time.Minute).Unix() }, true},
		{"expired", func(tx *Transaction) { tx.Timestamp = time.Now().Add(-2 * time.Hour).Unix() }, true},
		{"oversized payload", func(tx *Transaction) { tx.Payload = make([]byte, MaxPayloadSize+1) }, true},
		{"empty signature", func(tx *Transaction) { tx.Signature = nil }, true},
		{"empty parent id", func(tx *Transaction) { tx.ParentIDs = []string{""} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := baseTransaction()
			tt.mutate(tx)
			err := tx.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	tx := baseTransaction()
	cp := tx.Clone()

	cp.Payload[0] = 'X'
	cp.ParentIDs[0] = "other"
	cp.Signature[0] = 'X'

	require.Equal(t, []byte("payload"), tx.Payload)
	require.Equal(t, []string{"tx-0"}, tx.ParentIDs)
	require.Equal(t, []byte("sig"), tx.Signature)

	var nilTx *Transaction
	require.Nil(t, nilTx.Clone())
}
