package telemetry

import (
	"context"
	"time"

	"github.com/auslab/swarm/pkg/core"
)

// StateSource is the read side of the state publisher.
type StateSource interface {
	Latest() (*core.Snapshot, error)
}

// Writer accepts snapshots. *Manager satisfies it through WriteSnapshot.
type Writer interface {
	WriteSnapshot(s *core.Snapshot) error
}

// WriteSnapshot writes every point of s.
func (m *Manager) WriteSnapshot(s *core.Snapshot) error {
	for _, p := range SnapshotPoints(s) {
		if err := m.WritePoint(p); err != nil {
			return err
		}
	}
	return nil
}

// Exporter samples the latest snapshot on an interval and writes it.
// A snapshot whose tick was already exported is skipped.
type Exporter struct {
	m        *Manager
	w        Writer
	state    StateSource
	interval time.Duration

	lastTick uint64
	wrote    bool
	failed   bool
}

// NewExporter creates an exporter writing through m.
func NewExporter(m *Manager, state StateSource, interval time.Duration) *Exporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Exporter{m: m, w: m, state: state, interval: interval}
}

// Run exports until ctx ends.
func (e *Exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Export()
		}
	}
}

// Export writes the latest snapshot once. It reports whether anything was written.
func (e *Exporter) Export() bool {
	snap, err := e.state.Latest()
	if err != nil {
		if !e.failed {
			e.m.Logger.Warn().Err(err).Msg("Telemetry paused, world state unavailable")
			e.failed = true
		}
		return false
	}
	if e.wrote && snap.Tick == e.lastTick {
		return false
	}

	if err := e.w.WriteSnapshot(snap); err != nil {
		e.m.Logger.Error().Err(err).Uint64("tick", snap.Tick).Msg("Failed to export snapshot")
		return false
	}
	e.lastTick = snap.Tick
	e.wrote = true
	return true
}
