package raftengine

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shardledger/shardledger/core/ledger"
)

func commandEntry(t *testing.T, index uint64, tx *ledger.Transaction) *raft.Log {
	t.Helper()
	data, err := json.Marshal(LogCommand{Op: OpCommitTransaction, Transaction: tx})
	require.NoError(t, err)
	return &raft.Log{Index: index, Data: data}
}

func ledgerTx(id string) *ledger.Transaction {
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

func TestFSMApplyCommitsTransaction(t *testing.T) {
	f := NewFSM(zap.NewNop())

	require.Nil(t, f.Apply(commandEntry(t, 1, ledgerTx("tx-1"))))
	require.Equal(t, 1, f.Len())
	require.Equal(t, uint64(1), f.LastAppliedIndex())

	got, ok := f.Get("tx-1")
	require.True(t, ok)
	require.Equal(t, ledger.StatusConfirmed, got.Status)
}

func TestFSMApplyDuplicateIsNoOp(t *testing.T) {
	f := NewFSM(zap.NewNop())

	require.Nil(t, f.Apply(commandEntry(t, 1, ledgerTx("tx-1"))))
	require.Nil(t, f.Apply(commandEntry(t, 2, ledgerTx("tx-1"))))
	require.Equal(t, 1, f.Len())
	require.Equal(t, uint64(2), f.LastAppliedIndex())
}

func TestFSMApplyRejectsBadCommands(t *testing.T) {
	f := NewFSM(zap.NewNop())

	resp := f.Apply(&raft.Log{Index: 1, Data: []byte("{not json")})
	require.Error(t, resp.(error))

	data, err := json.Marshal(LogCommand{Op: "explode"})
	require.NoError(t, err)
	resp = f.Apply(&raft.Log{Index: 2, Data: data})
	require.Error(t, resp.(error))

	data, err = json.Marshal(LogCommand{Op: OpCommitTransaction})
	require.NoError(t, err)
	resp = f.Apply(&raft.Log{Index: 3, Data: data})
	require.Error(t, resp.(error))

	require.Equal(t, 0, f.Len())
}

type memorySink struct {
	bytes.Buffer
}

func (memorySink) ID() string    { return "snapshot" }
func (memorySink) Cancel() error { return nil }
func (memorySink) Close() error  { return nil }

func TestFSMSnapshotRestoreRoundTrip(t *testing.T) {
	f := NewFSM(zap.NewNop())
	require.Nil(t, f.Apply(commandEntry(t, 1, ledgerTx("tx-1"))))
	require.Nil(t, f.Apply(commandEntry(t, 2, ledgerTx("tx-2"))))

	snap, err := f.Snapshot()
	require.NoError(t, err)
	sink := &memorySink{}
	require.NoError(t, snap.Persist(sink))
	snap.Release()

	restored := NewFSM(zap.NewNop())
	require.NoError(t, restored.Restore(io.NopCloser(bytes.NewReader(sink.Bytes()))))
	require.Equal(t, 2, restored.Len())
	got, ok := restored.Get("tx-1")
	require.True(t, ok)
	require.Equal(t, ledger.StatusConfirmed, got.Status)
}
