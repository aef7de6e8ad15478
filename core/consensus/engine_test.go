package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shardledger/shardledger/core/ledger"
)

func validTransaction(id string) *ledger.Transaction {
	return &ledger.Transaction{
		ID:        id,
		ShardID:   "shard-1",
		Timestamp: time.Now().Unix(),
		Payload:   []byte("payload"),
		Signature: []byte("sig"),
		Status:    ledger.StatusPending,
		CreatedAt: time.Now(),
	}
}

func TestInMemoryEngineCommitsTransaction(t *testing.T) {
	e := NewInMemoryEngine(zap.NewNop())

	tx := validTransaction("tx-1")
	require.NoError(t, e.SubmitTransaction(context.Background(), tx))
	require.Equal(t, 1, e.Len())

	got, ok := e.Get("tx-1")
	require.True(t, ok)
	require.Equal(t, ledger.StatusConfirmed, got.Status)
	// The caller's copy must be untouched.
	require.Equal(t, ledger.StatusPending, tx.Status)
}

func TestInMemoryEngineResubmitIsNoOp(t *testing.T) {
	e := NewInMemoryEngine(zap.NewNop())

	require.NoError(t, e.SubmitTransaction(context.Background(), validTransaction("tx-1")))
	require.NoError(t, e.SubmitTransaction(context.Background(), validTransaction("tx-1")))
	require.Equal(t, 1, e.Len())
}

func TestInMemoryEngineRejectsInvalid(t *testing.T) {
	e := NewInMemoryEngine(zap.NewNop())
	ctx := context.Background()

	require.Error(t, e.SubmitTransaction(ctx, nil))

	noSig := validTransaction("tx-1")
	noSig.Signature = nil
	require.Error(t, e.SubmitTransaction(ctx, noSig))

	stale := validTransaction("tx-2")
	stale.Timestamp = time.Now().Add(-2 * time.Hour).Unix()
	require.Error(t, e.SubmitTransaction(ctx, stale))

	require.Equal(t, 0, e.Len())
}

func TestInMemoryEngineHonorsContext(t *testing.T) {
	e := NewInMemoryEngine(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, e.SubmitTransaction(ctx, validTransaction("tx-1")), context.Canceled)
}
