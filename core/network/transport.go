// Package network defines the transport boundary between shard coordinators
// and provides an in-process implementation for tests and single-process
// multi-shard deployments. The QUIC/HTTP-3 transport lives in the h3
// subpackage.
package network

import (
	"context"
	"fmt"
	"sync"
)

// Transport delivers an encoded coordinator message to another shard.
// Delivery is best-effort, at-most-once per call; the coordinator supplies
// its own retries on top.
type Transport interface {
	Send(ctx context.Context, shardID string, data []byte) error
}

// Handler consumes a raw inbound message on the receiving shard.
type Handler func(data []byte)

// InProcTransport routes messages between coordinators living in the same
// process. Sends are queued and delivered in order by Flush, so a handler
// never runs re-entrantly inside the operation that produced the message.
// Tests can inject per-shard send failures to exercise requeue and retry
// paths.
type InProcTransport struct {
	mu       sync.Mutex
	handlers map[string]Handler
	failures map[string]error
	inbox    []envelope
}

type envelope struct {
	shardID string
	data    []byte
}

// NewInProcTransport returns an empty in-process transport.
func NewInProcTransport() *InProcTransport {
	return &InProcTransport{
		handlers: make(map[string]Handler),
		failures: make(map[string]error),
	}
}

// Register installs the inbound handler for a shard.
func (t *InProcTransport) Register(shardID string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[shardID] = h
}

// FailShard makes every subsequent send to shardID return err. Passing a nil
// err restores delivery.
func (t *InProcTransport) FailShard(shardID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.failures, shardID)
		return
	}
	t.failures[shardID] = err
}

// Send enqueues the message for the destination shard. It fails immediately
// if no handler is registered or a failure is injected for the shard.
func (t *InProcTransport) Send(ctx context.Context, shardID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failures[shardID]; err != nil {
		return err
	}
	if _, ok := t.handlers[shardID]; !ok {
		return fmt.Errorf("no transport route to shard %s", shardID)
	}

	// Copy so the receiver never aliases the sender's buffer.
	msg := make([]byte, len(data))
	copy(msg, data)
	t.inbox = append(t.inbox, envelope{shardID: shardID, data: msg})
	return nil
}

// Flush delivers queued messages in FIFO order until the queue is empty,
// including messages enqueued by the handlers themselves.
func (t *InProcTransport) Flush() {
	for {
		t.mu.Lock()
		if len(t.inbox) == 0 {
			t.mu.Unlock()
			return
		}
		env := t.inbox[0]
		t.inbox = t.inbox[1:]
		h := t.handlers[env.shardID]
		t.mu.Unlock()

		if h != nil {
			h(env.data)
		}
	}
}

// QueueLen returns the number of undelivered messages.
func (t *InProcTransport) QueueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inbox)
}
