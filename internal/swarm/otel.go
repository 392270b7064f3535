package swarm

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/auslab/swarm/internal/swarm"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

func (l *Loop) initMetrics() error {
	m := meter()

	var err error
	l.tickDuration, err = m.Float64Histogram(
		"swarm.tick.duration",
		metric.WithDescription("Wall time spent in one control tick"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating tick duration histogram: %w", err)
	}

	l.applied, err = m.Int64Counter(
		"swarm.commands.applied",
		metric.WithDescription("Commands drained and applied by the control loop"),
	)
	if err != nil {
		return fmt.Errorf("creating applied counter: %w", err)
	}

	l.overruns, err = m.Int64Counter(
		"swarm.tick.overruns",
		metric.WithDescription("Ticks that took longer than the control period"),
	)
	if err != nil {
		return fmt.Errorf("creating overrun counter: %w", err)
	}

	agents, err := m.Int64ObservableGauge(
		"swarm.agents.healthy",
		metric.WithDescription("Healthy agents in the latest snapshot"),
	)
	if err != nil {
		return fmt.Errorf("creating healthy gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		o.ObserveInt64(agents, l.statHealthy.Load())
		return nil
	}, agents)
	if err != nil {
		return fmt.Errorf("registering healthy callback: %w", err)
	}

	return nil
}
