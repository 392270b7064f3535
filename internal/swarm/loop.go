// Package swarm runs the fixed-rate control loop that owns all agent state.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/auslab/swarm/internal/command"
	"github.com/auslab/swarm/internal/controller"
	"github.com/auslab/swarm/internal/physics"
	"github.com/auslab/swarm/internal/publisher"
	"github.com/auslab/swarm/pkg/core"
)

// ErrStopped resolves commands still queued when the loop exits.
var ErrStopped = errors.New("control loop stopped")

// Projector maps local positions to geodetic coordinates.
type Projector interface {
	ToGeo(p mgl64.Vec3) (core.GeoPosition, error)
}

// Fence reports whether a position is inside the permitted area.
type Fence interface {
	Contains(p mgl64.Vec3) bool
}

// Option configures optional collaborators.
type Option func(*Loop)

// WithProjector adds geodetic positions to every snapshot.
func WithProjector(p Projector) Option {
	return func(l *Loop) { l.projector = p }
}

// WithFence marks agents outside f as unhealthy.
func WithFence(f Fence) Option {
	return func(l *Loop) { l.fence = f }
}

// Stats is a lock-free view of loop progress for monitoring.
type Stats struct {
	Tick    uint64
	Agents  int
	Healthy int
	Running bool
	Failed  bool
}

// Loop owns the agent store. Only the goroutine calling Run (or Step) touches it.
type Loop struct {
	cfg    Config
	queue  *command.Queue
	engine physics.Engine
	pub    *publisher.Publisher
	logger *slog.Logger

	projector Projector
	fence     Fence

	store     *store
	tick      uint64
	simTime   float64
	lastClick *core.ClickPoint

	statTick    atomic.Uint64
	statAgents  atomic.Int64
	statHealthy atomic.Int64
	running     atomic.Bool
	failed      atomic.Bool

	tickDuration metric.Float64Histogram
	applied      metric.Int64Counter
	overruns     metric.Int64Counter
}

// New creates a loop with an empty store. Call Init before Run.
func New(cfg Config, q *command.Queue, engine physics.Engine, pub *publisher.Publisher, logger *slog.Logger, opts ...Option) (*Loop, error) {
	if cfg.ControlHz <= 0 {
		return nil, fmt.Errorf("control rate must be positive, got %d", cfg.ControlHz)
	}
	l := &Loop{
		cfg:    cfg,
		queue:  q,
		engine: engine,
		pub:    pub,
		logger: logger,
		store:  &store{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.initMetrics(); err != nil {
		return nil, err
	}
	return l, nil
}

// Init spawns the initial swarm and publishes the first snapshot.
func (l *Loop) Init() error {
	if l.cfg.InitialCount > 0 {
		if err := l.respawn(l.cfg.InitialCount); err != nil {
			l.halt(err)
			return err
		}
	}
	l.publish()
	return nil
}

// Run steps the loop at the configured rate until ctx ends or the physics
// engine fails. An engine failure is returned after the publisher has been
// switched to unavailable.
func (l *Loop) Run(ctx context.Context) error {
	period := time.Duration(float64(time.Second) / float64(l.cfg.ControlHz))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	l.running.Store(true)
	defer l.running.Store(false)

	l.logger.Info("Control loop started", "hz", l.cfg.ControlHz, "agents", l.store.len())

	for {
		select {
		case <-ctx.Done():
			l.queue.Clear(ErrStopped)
			l.logger.Info("Control loop stopped", "tick", l.tick)
			return nil
		case <-ticker.C:
			start := time.Now()
			if err := l.Step(); err != nil {
				l.halt(err)
				return err
			}
			elapsed := time.Since(start)
			l.tickDuration.Record(ctx, elapsed.Seconds())
			if elapsed > period {
				l.overruns.Add(ctx, 1)
				l.logger.Warn("Control tick overran its period", "tick", l.tick, "elapsed", elapsed, "period", period)
			}
		}
	}
}

// Step runs one control tick: drain and apply commands, update controllers,
// advance physics, refresh agent state and publish a snapshot. A non-nil
// error is always a *physics.EngineError.
func (l *Loop) Step() error {
	batch := l.queue.DrainAll()
	for i, env := range batch {
		affected, err := l.apply(env.Command)

		var eerr *physics.EngineError
		if errors.As(err, &eerr) {
			// The rest of the batch never reaches the engine.
			for _, rest := range batch[i:] {
				rest.Resolve(command.Outcome{Err: err})
			}
			return err
		}
		env.Resolve(command.Outcome{Affected: affected, Err: err})

		outcome := "applied"
		if err != nil {
			outcome = "rejected"
			l.logger.Debug("Command not fully applied", "kind", env.Command.Kind(), "id", env.ID, "error", err)
		}
		l.applied.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("kind", string(env.Command.Kind())),
			attribute.String("outcome", outcome),
		))
	}

	dt := l.cfg.dt()
	motions := make([]core.Motion, l.store.len())
	for i, a := range l.store.agents {
		motions[i] = a.flight.Update(a.pose, a.target, dt)
	}

	poses, err := l.engine.Step(motions, dt)
	if err != nil {
		return asEngineError("step", err)
	}
	if len(poses) != l.store.len() {
		return &physics.EngineError{Op: "step", Err: fmt.Errorf("engine returned %d poses for %d agents", len(poses), l.store.len())}
	}

	for i, a := range l.store.agents {
		l.update(a, poses[i], dt)
	}

	l.tick++
	l.simTime += dt
	l.publish()
	return nil
}

// update folds a pose read back from the engine into agent state.
func (l *Loop) update(a *agent, pose core.Pose, dt float64) {
	inside := l.cfg.Bounds.Contains(pose.Position)
	if inside && l.fence != nil {
		inside = l.fence.Contains(pose.Position)
	}
	pose.Position = l.cfg.Bounds.Clamp(pose.Position)

	if a.mode.Airborne() {
		a.energy = max(0, a.energy-l.cfg.EnergyDrainPerSecond*dt)
	}
	a.pose = pose
	a.healthy = a.energy > 0 && inside

	if next, changed := controller.Advance(a.mode, a.pose, a.target, l.cfg.Controller); changed {
		if next == core.ModeIdle {
			a.idle()
		} else {
			a.mode = next
		}
		l.logger.Debug("Agent mode changed", "agent", a.id, "mode", next)
	}
}

func (l *Loop) publish() {
	s := &core.Snapshot{
		Tick:      l.tick,
		SimTime:   l.simTime,
		Timestamp: time.Now().UTC(),
		Agents:    make([]core.AgentSummary, l.store.len()),
		LastClick: l.lastClick,
	}
	healthy := 0
	for i, a := range l.store.agents {
		sum := core.AgentSummary{
			ID:       a.id,
			Position: a.pose.Position,
			Velocity: a.pose.Velocity,
			Yaw:      a.pose.Yaw,
			Energy:   a.energy,
			Healthy:  a.healthy,
			Mode:     a.mode,
		}
		if l.projector != nil {
			if g, err := l.projector.ToGeo(a.pose.Position); err == nil {
				sum.Geo = &g
			}
		}
		if a.healthy {
			healthy++
		}
		s.Agents[i] = sum
	}
	l.pub.Publish(s)

	l.statTick.Store(l.tick)
	l.statAgents.Store(int64(len(s.Agents)))
	l.statHealthy.Store(int64(healthy))
}

func (l *Loop) halt(err error) {
	l.failed.Store(true)
	l.logger.Error("Control loop halted", "tick", l.tick, "error", err)
	l.pub.Fail(err)
	l.queue.Clear(err)
}

// Stats returns counters safe to read from any goroutine.
func (l *Loop) Stats() Stats {
	return Stats{
		Tick:    l.statTick.Load(),
		Agents:  int(l.statAgents.Load()),
		Healthy: int(l.statHealthy.Load()),
		Running: l.running.Load(),
		Failed:  l.failed.Load(),
	}
}

// LogAttrs returns the tick and agent count for dynamic log attributes.
func (l *Loop) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Uint64("tick", l.statTick.Load()),
		slog.Int64("agents", l.statAgents.Load()),
	}
}

func asEngineError(op string, err error) error {
	var eerr *physics.EngineError
	if errors.As(err, &eerr) {
		return err
	}
	return &physics.EngineError{Op: op, Err: err}
}
