package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestOTelSinkCountsIncrements(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sink := NewOTelSink(provider.Meter("test"), zap.NewNop())

	sink.IncrementCounter("events_total")
	sink.IncrementCounter("events_total")
	sink.IncrementCounter("other_total")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		var total int64
		for _, dp := range sum.DataPoints {
			total += dp.Value
		}
		sums[m.Name] = total
	}
	require.Equal(t, int64(2), sums["events_total"])
	require.Equal(t, int64(1), sums["other_total"])
}

func TestNoopSink(t *testing.T) {
	NoopSink{}.IncrementCounter("anything")
}
