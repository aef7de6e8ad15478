// Package h3 carries coordinator messages between shards over HTTP/3 (QUIC):
// a streaming length-prefixed sender per peer, a receiving server feeding an
// events channel, and a network.Transport tying them to the shard registry.
package h3

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"go.uber.org/zap"
)

// DefaultURLPath is the request path coordinator streams are posted to.
const DefaultURLPath = "/crossshard"

// SenderConfig controls one peer connection.
type SenderConfig struct {
	Addr    string      // peer host:port
	URLPath string      // defaults to DefaultURLPath
	TLS     *tls.Config // SNI, RootCAs; required for HTTP/3
	QUIC    *quic.Config

	// Retry policy for establishing the stream and writing frames.
	MaxWriteRetries   int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffJitterFrac float64
}

func (c *SenderConfig) setDefaults() {
	if c.URLPath == "" {
		c.URLPath = DefaultURLPath
	}
	if c.MaxWriteRetries < 0 {
		c.MaxWriteRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.BackoffJitterFrac <= 0 {
		c.BackoffJitterFrac = 0.2
	}
}

// Sender streams length-prefixed messages to one peer over a long-lived
// HTTP/3 POST, reconnecting with jittered exponential backoff on failure.
type Sender struct {
	cfg     SenderConfig
	url     string
	client  *http.Client
	rt      *http3.Transport
	logger  *zap.Logger
	randSrc *rand.Rand

	mu     sync.Mutex
	st     *connState
	closed bool
}

type connState struct {
	writer    io.WriteCloser
	cancelReq context.CancelFunc
}

// NewSender builds a sender for one peer address.
func NewSender(cfg SenderConfig, logger *zap.Logger) (*Sender, error) {
	cfg.setDefaults()
	if cfg.Addr == "" {
		return nil, errors.New("sender address is required")
	}
	rt := &http3.Transport{TLSClientConfig: cfg.TLS, QUICConfig: cfg.QUIC}
	return &Sender{
		cfg:     cfg,
		url:     fmt.Sprintf("https://%s%s", cfg.Addr, cfg.URLPath),
		client:  &http.Client{Transport: rt},
		rt:      rt,
		logger:  logger.With(zap.String("peer_addr", cfg.Addr)),
		randSrc: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Send frames msg and writes it to the peer stream, establishing or
// re-establishing the stream as needed. It returns the last error once the
// retry budget is spent.
func (s *Sender) Send(ctx context.Context, msg []byte) error {
	frame := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(msg)))
	copy(frame[4:], msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("sender closed")
	}

	backoff := s.cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxWriteRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, s.cfg.MaxBackoff, s.cfg.BackoffJitterFrac, s.randSrc)
		}

		if s.st == nil {
			st, err := s.establishConnection(ctx)
			if err != nil {
				lastErr = err
				s.logger.Warn("failed to establish stream", zap.Error(err))
				continue
			}
			s.st = st
			s.logger.Debug("established stream", zap.String("url", s.url))
		}

		if _, err := s.st.writer.Write(frame); err != nil {
			lastErr = err
			s.logger.Warn("stream write failed, reconnecting", zap.Error(err))
			s.teardownLocked()
			continue
		}
		return nil
	}
	return fmt.Errorf("send to %s: %w", s.cfg.Addr, lastErr)
}

// Close tears down the stream and the underlying QUIC transport.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.teardownLocked()
	return s.rt.Close()
}

func (s *Sender) teardownLocked() {
	if s.st == nil {
		return
	}
	_ = s.st.writer.Close()
	s.st.cancelReq()
	s.st = nil
}

// establishConnection opens a streaming HTTP/3 POST with an io.Pipe body.
func (s *Sender) establishConnection(ctx context.Context) (*connState, error) {
	pr, pw := io.Pipe()
	reqCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.url, pr)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("new request: %w", err)
	}

	go func() {
		resp, err := s.client.Do(req)
		if err != nil {
			_ = pw.CloseWithError(fmt.Errorf("stream request failed: %w", err))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			_ = pw.CloseWithError(fmt.Errorf("peer returned %s", resp.Status))
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = pw.Close()
	}()

	// Give a failed dial a moment to surface through the pipe.
	select {
	case <-ctx.Done():
		cancel()
		_ = pw.Close()
		return nil, ctx.Err()
	default:
	}
	return &connState{writer: pw, cancelReq: cancel}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(cur, max time.Duration, jitterFrac float64, r *rand.Rand) time.Duration {
	next := time.Duration(float64(cur) * 2)
	if next > max {
		next = max
	}
	if jitterFrac > 0 && r != nil {
		j := 1 + (r.Float64()*2-1)*jitterFrac
		next = time.Duration(math.Max(0, float64(next)*j))
	}
	return next
}
