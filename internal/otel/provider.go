// Package otel builds the OpenTelemetry log and metric providers for the
// daemon. Package meters use the global provider, which New replaces when a
// metric writer is configured.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultMetricInterval = 30 * time.Second

// Config holds OTel configuration
type Config struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	// LogWriter receives pretty-printed log records.
	LogWriter io.Writer
	// MetricWriter receives periodic metric dumps.
	MetricWriter   io.Writer
	MetricInterval time.Duration
	// Endpoint is an OTLP/HTTP collector for logs.
	Endpoint string
	Insecure bool
}

// Provider owns the log and meter providers. The zero value is disabled.
type Provider struct {
	enabled bool
	logs    *sdklog.LoggerProvider
	metrics *sdkmetric.MeterProvider
}

// New builds providers from cfg. A disabled config yields a no-op provider.
func New(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	logs, err := newLoggerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	p := &Provider{enabled: true, logs: logs}

	if cfg.MetricWriter != nil {
		if p.metrics, err = newMeterProvider(cfg, res); err != nil {
			return nil, err
		}
		otel.SetMeterProvider(p.metrics)
	}
	return p, nil
}

func newLoggerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	batch := func(e sdklog.Exporter) sdklog.LoggerProviderOption {
		return sdklog.WithProcessor(sdklog.NewBatchProcessor(e, sdklog.WithExportTimeout(cfg.BatchTimeout)))
	}

	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		opts = append(opts, batch(exp))
	}

	if cfg.Endpoint != "" {
		httpOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			httpOpts = append(httpOpts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		opts = append(opts, batch(exp))
	}

	if len(opts) == 1 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}
	return sdklog.NewLoggerProvider(opts...), nil
}

func newMeterProvider(cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.MetricWriter))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader)), nil
}

// LoggerProvider feeds the otelslog bridge; nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logs
}

// Meter returns a meter from the installed provider, or a no-op meter.
func (p *Provider) Meter(name string) metric.Meter {
	if p.metrics == nil {
		return noop.Meter{}
	}
	return p.metrics.Meter(name)
}

// Flush exports pending logs and metrics.
func (p *Provider) Flush(ctx context.Context) error {
	var errs []error
	if p.logs != nil {
		if err := p.logs.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log flush failed: %w", err))
		}
	}
	if p.metrics != nil {
		if err := p.metrics.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric flush failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.logs != nil {
		if err := p.logs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log shutdown failed: %w", err))
		}
	}
	if p.metrics != nil {
		if err := p.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric shutdown failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Enabled reports whether New built real providers.
func (p *Provider) Enabled() bool {
	return p.enabled
}
