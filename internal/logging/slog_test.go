package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSlogManager_DefaultBeforeSetup(t *testing.T) {
	m := NewSlogManager()
	assert.Same(t, slog.Default(), m.Logger())
	assert.NoError(t, m.Flush(context.Background()))
	assert.NoError(t, m.Close())
}

func TestSlogManager_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{Output: &buf, Level: "info"})

	m.Logger().Debug("hidden")
	m.Logger().Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	m.SetLevel("debug")
	m.Logger().Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestSlogManager_UTCTimestamps(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{Output: &buf})

	m.Logger().Info("stamp")
	assert.Regexp(t, `time=\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`, buf.String())
}

func TestSlogManager_SetupReplacesSinks(t *testing.T) {
	var first, second bytes.Buffer
	m := NewSlogManager()

	m.Setup(Options{Output: &first})
	m.Logger().Info("one")
	m.Setup(Options{Output: &second})
	m.Logger().Info("two")

	assert.Contains(t, first.String(), "one")
	assert.NotContains(t, first.String(), "two")
	assert.Contains(t, second.String(), "two")
}

func TestSlogManager_DynamicAttrs(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.SetDynamicAttrs(func() []slog.Attr { return []slog.Attr{slog.Uint64("tick", 99)} })
	m.Setup(Options{Output: &buf})

	m.Logger().Info("stepped")
	assert.Contains(t, buf.String(), "tick=99")
}

func TestSlogManager_OTelProvider(t *testing.T) {
	var buf bytes.Buffer
	provider := sdklog.NewLoggerProvider()
	defer provider.Shutdown(context.Background())

	m := NewSlogManager()
	m.Setup(Options{Output: &buf, LogProvider: provider})
	m.Logger().Info("bridged")

	assert.Contains(t, buf.String(), "bridged")
	assert.NoError(t, m.Flush(context.Background()))
}

func TestSlogManager_Graylog(t *testing.T) {
	m := NewSlogManager()
	require.NoError(t, m.ConnectGraylog("127.0.0.1:12201"))

	var buf bytes.Buffer
	m.Setup(Options{Output: &buf})
	m.Logger().Info("to gelf")

	assert.Contains(t, buf.String(), "to gelf")
	assert.NoError(t, m.Close())
}
