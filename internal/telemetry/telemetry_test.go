package telemetry

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auslab/swarm/internal/config"
	"github.com/auslab/swarm/internal/publisher"
	"github.com/auslab/swarm/pkg/core"
)

func testSnapshot(tick uint64) *core.Snapshot {
	return &core.Snapshot{
		Tick:      tick,
		SimTime:   float64(tick) / 60,
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Agents: []core.AgentSummary{
			{ID: 0, Position: mgl64.Vec3{1, 2, 3}, Energy: 90, Healthy: true, Mode: core.ModeHover},
			{ID: 1, Position: mgl64.Vec3{-1, 0, 0.1}, Energy: 0, Healthy: false, Mode: core.ModeIdle,
				Geo: &core.GeoPosition{Lat: 10, Lon: 20, Alt: 1}},
		},
	}
}

func TestSnapshotPoints(t *testing.T) {
	points := SnapshotPoints(testSnapshot(42))
	require.Len(t, points, 3)

	first := influxdb2_write.PointToLineProtocol(points[0], time.Nanosecond)
	assert.True(t, strings.HasPrefix(first, "agent_state,agent=0,mode="+core.ModeHover.String()+" "), first)
	assert.Contains(t, first, "x=1")
	assert.Contains(t, first, "healthy=true")
	assert.Contains(t, first, "1700000000000000000")
	assert.NotContains(t, first, "lat=")

	second := influxdb2_write.PointToLineProtocol(points[1], time.Nanosecond)
	assert.Contains(t, second, "lat=10")
	assert.Contains(t, second, "healthy=false")

	summary := influxdb2_write.PointToLineProtocol(points[2], time.Nanosecond)
	assert.True(t, strings.HasPrefix(summary, "swarm_state "), summary)
	assert.Contains(t, summary, "tick=42i")
	assert.Contains(t, summary, "agents=2i")
	assert.Contains(t, summary, "healthy=1i")
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop())
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.NoError(t, m.Close())
}

func unreachable(t *testing.T) config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:   true,
		Protocol:  "http",
		Host:      "127.0.0.1",
		Port:      "1",
		Org:       "test",
		Bucket:    "test",
		BackupDir: t.TempDir(),
	}
}

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	return string(data)
}

func TestConnect_FallsBackToBackup(t *testing.T) {
	m := NewManager(unreachable(t), zerolog.Nop())
	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.IsValid)
	require.NotNil(t, m.BackupWriter)

	require.NoError(t, m.WriteSnapshot(testSnapshot(7)))
	require.NoError(t, m.Close())

	lines := strings.Split(strings.TrimSpace(readBackup(t, m.BackupPath())), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "agent_state,agent=0"))
	assert.True(t, strings.HasPrefix(lines[2], "swarm_state "))
}

type recorder struct {
	ticks []uint64
}

func (r *recorder) WriteSnapshot(s *core.Snapshot) error {
	r.ticks = append(r.ticks, s.Tick)
	return nil
}

func TestExporter_SkipsRepeatedTicks(t *testing.T) {
	pub := publisher.New()
	pub.Publish(testSnapshot(1))

	rec := &recorder{}
	e := NewExporter(NewManager(config.InfluxConfig{}, zerolog.Nop()), pub, time.Millisecond)
	e.w = rec

	assert.True(t, e.Export())
	assert.False(t, e.Export())

	pub.Publish(testSnapshot(2))
	assert.True(t, e.Export())
	assert.Equal(t, []uint64{1, 2}, rec.ticks)

	pub.Fail(errors.New("down"))
	assert.False(t, e.Export())
	assert.False(t, e.Export())
}

func TestExporter_RunStopsOnCancel(t *testing.T) {
	pub := publisher.New()
	pub.Publish(testSnapshot(1))

	rec := &recorder{}
	e := NewExporter(NewManager(config.InfluxConfig{}, zerolog.Nop()), pub, time.Millisecond)
	e.w = rec

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("exporter did not stop")
	}
	assert.Equal(t, []uint64{1}, rec.ticks)
}
