package h3

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shardledger/shardledger/config/certs"
	"github.com/shardledger/shardledger/core/shardmap"
)

func startReceiver(t *testing.T) (*Receiver, *tls.Config, string) {
	t.Helper()
	serverTLS, clientTLS, err := certs.Ephemeral("localhost")
	require.NoError(t, err)

	r, err := NewReceiver(ReceiverConfig{
		Addr:         "127.0.0.1:0",
		TLS:          serverTLS,
		Backpressure: BlockSender,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, r.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Close(ctx)
	})
	return r, clientTLS, r.LocalAddr().String()
}

func TestSenderReceiverRoundTrip(t *testing.T) {
	r, clientTLS, addr := startReceiver(t)

	s, err := NewSender(SenderConfig{
		Addr:            addr,
		TLS:             clientTLS,
		MaxWriteRetries: 3,
		InitialBackoff:  50 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.Send(ctx, []byte("first")))
	require.NoError(t, s.Send(ctx, []byte("second")))

	for _, want := range []string{"first", "second"} {
		select {
		case got := <-r.Events():
			require.Equal(t, want, string(got))
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestTransportResolvesThroughRegistry(t *testing.T) {
	r, clientTLS, addr := startReceiver(t)
	registry := shardmap.NewStaticRegistry([]shardmap.ShardInfo{
		{ID: "shard-2", Address: addr},
	})

	tr := NewTransport(TransportConfig{
		TLS:             clientTLS,
		MaxWriteRetries: 3,
		InitialBackoff:  50 * time.Millisecond,
	}, registry, zap.NewNop())
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, tr.Send(ctx, "shard-2", []byte("hello")))

	select {
	case got := <-r.Events():
		require.Equal(t, "hello", string(got))
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}

	require.Error(t, tr.Send(ctx, "shard-9", []byte("nope")))
}
