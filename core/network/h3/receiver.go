package h3

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"go.uber.org/zap"

	"github.com/shardledger/shardledger/core/ledger"
)

// BackpressurePolicy controls what happens when the events channel is full.
type BackpressurePolicy int

const (
	// BlockSender blocks the stream handler until a slot frees up.
	BlockSender BackpressurePolicy = iota
	// DropIfFull drops the frame immediately; the coordinator's retries and
	// status reconciliation recover the loss.
	DropIfFull
)

// ReceiverConfig controls the inbound HTTP/3 server.
type ReceiverConfig struct {
	Addr    string       `yaml:"addr"`
	URLPath string       `yaml:"url_path"`
	TLS     *tls.Config  `yaml:"-"`
	QUIC    *quic.Config `yaml:"-"`

	QueueCapacity  int                `yaml:"queue_capacity"`
	MaxEventBytes  int                `yaml:"max_event_bytes"`
	MaxStreamBytes int64              `yaml:"max_stream_bytes"`
	MaxConcurrency int                `yaml:"max_concurrency"`
	Backpressure   BackpressurePolicy `yaml:"-"`
}

// Receiver accepts length-prefixed coordinator messages over HTTP/3 streams
// and hands them to consumers through Events.
type Receiver struct {
	cfg    ReceiverConfig
	logger *zap.Logger
	server *http3.Server
	ln     net.PacketConn
	events chan []byte
	pool   *sync.Pool
	wg     sync.WaitGroup
	sem    chan struct{}

	started int32
	closed  int32
}

// NewReceiver builds a receiver; Start begins serving.
func NewReceiver(cfg ReceiverConfig, logger *zap.Logger) (*Receiver, error) {
	if cfg.Addr == "" {
		return nil, errors.New("receiver address is required")
	}
	if cfg.TLS == nil {
		return nil, errors.New("TLS config is required for HTTP/3")
	}
	if cfg.URLPath == "" {
		cfg.URLPath = DefaultURLPath
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 4096
	}
	if cfg.MaxEventBytes <= 0 {
		// A message wraps one ledger payload plus envelope fields.
		cfg.MaxEventBytes = ledger.MaxPayloadSize + 64*1024
	}

	r := &Receiver{
		cfg:    cfg,
		logger: logger,
		events: make(chan []byte, cfg.QueueCapacity),
		pool: &sync.Pool{
			New: func() any {
				b := make([]byte, 4096)
				return &b
			},
		},
	}
	if cfg.MaxConcurrency > 0 {
		r.sem = make(chan struct{}, cfg.MaxConcurrency)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.URLPath, r.streamHandler)
	r.server = &http3.Server{
		Addr:       cfg.Addr,
		TLSConfig:  cfg.TLS,
		Handler:    mux,
		QUICConfig: cfg.QUIC,
	}
	return r, nil
}

// Start begins listening on UDP and serving HTTP/3.
func (r *Receiver) Start() error {
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return errors.New("receiver already started")
	}

	conn, err := net.ListenPacket("udp", r.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen UDP %s: %w", r.cfg.Addr, err)
	}
	r.ln = conn
	r.logger.Info("receiver listening",
		zap.String("addr", conn.LocalAddr().String()), zap.String("path", r.cfg.URLPath))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.server.Serve(conn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("receiver serve error", zap.Error(err))
		}
	}()
	return nil
}

// Close stops the server and closes the events channel once all stream
// handlers have exited.
func (r *Receiver) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}

	_ = r.server.Close()
	if r.ln != nil {
		_ = r.ln.Close()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		r.logger.Warn("receiver close timed out", zap.Error(ctx.Err()))
	case <-done:
	}

	close(r.events)
	r.logger.Info("receiver closed")
	return nil
}

// Events returns the consumer channel of inbound messages.
func (r *Receiver) Events() <-chan []byte {
	return r.events
}

// LocalAddr returns the bound UDP address once Start has succeeded.
func (r *Receiver) LocalAddr() net.Addr {
	if r.ln == nil {
		return nil
	}
	return r.ln.LocalAddr()
}

func (r *Receiver) acquire() func() {
	if r.sem == nil {
		return func() {}
	}
	r.sem <- struct{}{}
	return func() { <-r.sem }
}

// streamHandler consumes a length-prefixed stream: [4B big-endian len][payload]...
func (r *Receiver) streamHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if req.Body == nil {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	release := r.acquire()
	defer release()

	remote := req.RemoteAddr
	r.logger.Debug("stream opened", zap.String("remote", remote))
	defer r.logger.Debug("stream closed", zap.String("remote", remote))

	// Acknowledge early so the sender's response watcher sees a 2xx while
	// frames keep flowing on the request body.
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(nil)

	ctx := req.Context()
	body := req.Body
	var lenBuf [4]byte
	var streamBytes int64

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("stream cancelled", zap.String("remote", remote), zap.Error(ctx.Err()))
			return
		default:
		}

		if r.cfg.MaxStreamBytes > 0 && streamBytes >= r.cfg.MaxStreamBytes {
			r.logger.Warn("stream exceeded byte cap",
				zap.String("remote", remote), zap.Int64("cap", r.cfg.MaxStreamBytes))
			return
		}

		if _, err := io.ReadFull(body, lenBuf[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			r.logger.Error("failed to read frame length", zap.String("remote", remote), zap.Error(err))
			return
		}
		streamBytes += 4

		n := binary.BigEndian.Uint32(lenBuf[:])
		if n == 0 {
			continue
		}
		if int(n) > r.cfg.MaxEventBytes {
			r.logger.Warn("dropping oversized frame",
				zap.String("remote", remote), zap.Uint32("size", n), zap.Int("max", r.cfg.MaxEventBytes))
			return
		}

		bufPtr := r.pool.Get().(*[]byte)
		b := *bufPtr
		if cap(b) < int(n) {
			b = make([]byte, int(n))
		} else {
			b = b[:int(n)]
		}

		if _, err := io.ReadFull(body, b); err != nil {
			r.pool.Put(&b)
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			r.logger.Error("failed to read frame payload", zap.String("remote", remote), zap.Error(err))
			return
		}
		streamBytes += int64(n)

		// Copy into a slice the consumer owns so the pool buffer can be
		// reused immediately.
		ev := make([]byte, int(n))
		copy(ev, b)
		r.pool.Put(&b)

		switch r.cfg.Backpressure {
		case BlockSender:
			select {
			case r.events <- ev:
			case <-ctx.Done():
				return
			}
		case DropIfFull:
			select {
			case r.events <- ev:
			default:
				r.logger.Warn("dropping frame, queue full", zap.String("remote", remote))
			}
		}
	}
}
