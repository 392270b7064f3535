package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func meter() metric.Meter {
	return otel.Meter("github.com/auslab/swarm/internal/dispatcher")
}

type metrics struct {
	processed metric.Int64Counter
	rejected  metric.Int64Counter
}

// newMetrics registers the dispatcher instruments. lengths is polled for the
// per-kind buffer gauge.
func newMetrics(lengths func() map[string]int) (*metrics, error) {
	mt := meter()
	m := &metrics{}
	var err error

	if m.processed, err = mt.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Events handled successfully")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if m.rejected, err = mt.Int64Counter("dispatcher.events.rejected",
		metric.WithDescription("Events rejected by a handler or for an unknown kind")); err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	_, err = mt.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in buffered handlers"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			for kind, n := range lengths() {
				o.Observe(int64(n), metric.WithAttributes(attribute.String("kind", kind)))
			}
			return nil
		}))
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	return m, nil
}
