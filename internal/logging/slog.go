package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName tags OTel and GELF records emitted by the daemon.
const ServiceName = "swarmd"

// Options selects the sinks built by Setup.
type Options struct {
	// Output receives text records; nil means stderr.
	Output io.Writer
	Level  string
	// LogProvider enables the OTel bridge when set.
	LogProvider *sdklog.LoggerProvider
}

// SlogManager owns the process logger and the sinks behind it.
type SlogManager struct {
	logger      *slog.Logger
	level       slog.LevelVar
	logProvider *sdklog.LoggerProvider
	gelf        *gelf.Writer
	attrs       AttrFunc
}

// NewSlogManager creates a manager whose Logger is slog.Default until Setup.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// ParseLevel accepts debug, info, warn or error in any case. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ConnectGraylog opens a GELF UDP writer. Call before Setup.
func (m *SlogManager) ConnectGraylog(addr string) error {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return fmt.Errorf("connecting to graylog at %s: %w", addr, err)
	}
	w.Facility = ServiceName
	m.gelf = w
	return nil
}

// SetDynamicAttrs installs fn on every record. Call before Setup.
func (m *SlogManager) SetDynamicAttrs(fn AttrFunc) {
	m.attrs = fn
}

// Setup (re)builds the logger. It may be called again once the config is
// loaded; earlier loggers keep writing to their old sinks.
func (m *SlogManager) Setup(opts Options) {
	m.level.Set(ParseLevel(opts.Level))
	m.logProvider = opts.LogProvider

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: &m.level, ReplaceAttr: utcTime}

	var gelfSink slog.Handler
	if m.gelf != nil {
		gelfSink = slog.NewJSONHandler(m.gelf, hopts)
	}
	var otelSink slog.Handler
	if opts.LogProvider != nil {
		otelSink = otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(opts.LogProvider))
	}

	h := Tee(slog.NewTextHandler(out, hopts), gelfSink, otelSink)
	m.logger = slog.New(WithDynamicAttrs(h, m.attrs))
	m.logger.Debug("Logging initialized", "level", m.level.Level())
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
	}
	return a
}

// SetLevel changes the level of the current logger in place.
func (m *SlogManager) SetLevel(level string) {
	m.level.Set(ParseLevel(level))
}

// Logger returns the configured logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}

// Close releases the Graylog writer.
func (m *SlogManager) Close() error {
	if m.gelf == nil {
		return nil
	}
	return m.gelf.Close()
}
