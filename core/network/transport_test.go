package network

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInProcTransportDeliversInOrder(t *testing.T) {
	tr := NewInProcTransport()
	var got []string
	tr.Register("shard-1", func(data []byte) { got = append(got, string(data)) })

	ctx := context.Background()
	require.NoError(t, tr.Send(ctx, "shard-1", []byte("a")))
	require.NoError(t, tr.Send(ctx, "shard-1", []byte("b")))
	require.Equal(t, 2, tr.QueueLen())
	require.Empty(t, got)

	tr.Flush()
	require.Equal(t, []string{"a", "b"}, got)
	require.Equal(t, 0, tr.QueueLen())
}

func TestInProcTransportUnknownShard(t *testing.T) {
	tr := NewInProcTransport()
	require.Error(t, tr.Send(context.Background(), "shard-9", []byte("x")))
}

func TestInProcTransportInjectedFailure(t *testing.T) {
	tr := NewInProcTransport()
	tr.Register("shard-1", func([]byte) {})

	boom := errors.New("boom")
	tr.FailShard("shard-1", boom)
	require.ErrorIs(t, tr.Send(context.Background(), "shard-1", []byte("x")), boom)

	tr.FailShard("shard-1", nil)
	require.NoError(t, tr.Send(context.Background(), "shard-1", []byte("x")))
}

func TestInProcTransportCopiesBuffer(t *testing.T) {
	tr := NewInProcTransport()
	var got []byte
	tr.Register("shard-1", func(data []byte) { got = data })

	buf := []byte("hello")
	require.NoError(t, tr.Send(context.Background(), "shard-1", buf))
	buf[0] = 'X'
	tr.Flush()
	require.Equal(t, "hello", string(got))
}

func TestInProcTransportFlushDeliversNestedSends(t *testing.T) {
	tr := NewInProcTransport()
	var got []string
	tr.Register("shard-2", func(data []byte) { got = append(got, "2:"+string(data)) })
	tr.Register("shard-1", func(data []byte) {
		got = append(got, "1:"+string(data))
		// A handler replying mid-flush must still be delivered this flush.
		_ = tr.Send(context.Background(), "shard-2", []byte("reply"))
	})

	require.NoError(t, tr.Send(context.Background(), "shard-1", []byte("ping")))
	tr.Flush()
	require.Equal(t, []string{"1:ping", "2:reply"}, got)
}

func TestInProcTransportHonorsContext(t *testing.T) {
	tr := NewInProcTransport()
	tr.Register("shard-1", func([]byte) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, tr.Send(ctx, "shard-1", []byte("x")), context.Canceled)
}
