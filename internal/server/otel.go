package server

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/auslab/swarm/internal/server"

func meter() metric.Meter {
	return otel.GetMeterProvider().Meter(instrumentationName)
}
