// Package metrics provides the fire-and-forget counter sink the coordinator
// reports into, with an OpenTelemetry-backed implementation and a no-op for
// tests.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Sink receives monotonically increasing event counters. Implementations
// must never block the caller.
type Sink interface {
	IncrementCounter(name string)
}

// NoopSink discards every increment.
type NoopSink struct{}

func (NoopSink) IncrementCounter(string) {}

// OTelSink publishes counters through an OpenTelemetry meter. Counters are
// created lazily on first use and cached.
type OTelSink struct {
	mu       sync.Mutex
	meter    metric.Meter
	logger   *zap.Logger
	counters map[string]metric.Int64Counter
}

// NewOTelSink wraps the given meter.
func NewOTelSink(meter metric.Meter, logger *zap.Logger) *OTelSink {
	return &OTelSink{
		meter:    meter,
		logger:   logger,
		counters: make(map[string]metric.Int64Counter),
	}
}

func (s *OTelSink) IncrementCounter(name string) {
	s.mu.Lock()
	counter, ok := s.counters[name]
	if !ok {
		var err error
		counter, err = s.meter.Int64Counter(name)
		if err != nil {
			s.mu.Unlock()
			s.logger.Warn("failed to create counter", zap.String("name", name), zap.Error(err))
			return
		}
		s.counters[name] = counter
	}
	s.mu.Unlock()

	counter.Add(context.Background(), 1)
}
