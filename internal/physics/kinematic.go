package physics

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/auslab/swarm/pkg/core"
)

// KinematicConfig tunes the reference engine.
type KinematicConfig struct {
	SubSteps     int         `json:"subSteps" mapstructure:"subSteps"`
	ResponseRate float64     `json:"responseRate" mapstructure:"responseRate"`
	Drag         float64     `json:"drag" mapstructure:"drag"`
	Bounds       core.Bounds `json:"bounds" mapstructure:"bounds"`
}

// DefaultKinematicConfig matches a 240 Hz physics rate under a 60 Hz control loop.
func DefaultKinematicConfig() KinematicConfig {
	return KinematicConfig{
		SubSteps:     4,
		ResponseRate: 5.0,
		Drag:         0.1,
		Bounds:       core.DefaultBounds(),
	}
}

// SubStepsFor returns how many physics steps fit in one control period.
func SubStepsFor(physicsHz, controlHz int) int {
	if controlHz <= 0 || physicsHz <= controlHz {
		return 1
	}
	return physicsHz / controlHz
}

// ErrClosed is wrapped in an EngineError after Close.
var ErrClosed = errors.New("engine closed")

// Kinematic integrates a first-order velocity response for each body. Bodies
// stop at the walls of the configured box.
type Kinematic struct {
	mu     sync.Mutex
	cfg    KinematicConfig
	bodies []core.Pose
	closed bool
}

// NewKinematic creates an empty engine.
func NewKinematic(cfg KinematicConfig) *Kinematic {
	if cfg.SubSteps < 1 {
		cfg.SubSteps = 1
	}
	return &Kinematic{cfg: cfg}
}

// Reset replaces every body.
func (k *Kinematic) Reset(spawn []core.Pose) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return &EngineError{Op: "reset", Err: ErrClosed}
	}
	k.bodies = append(k.bodies[:0:0], spawn...)
	return nil
}

// Step advances all bodies by dt in cfg.SubSteps increments.
func (k *Kinematic) Step(cmds []core.Motion, dt float64) ([]core.Pose, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, &EngineError{Op: "step", Err: ErrClosed}
	}
	if len(cmds) != len(k.bodies) {
		return nil, &EngineError{Op: "step", Err: fmt.Errorf("got %d commands for %d bodies", len(cmds), len(k.bodies))}
	}

	h := dt / float64(k.cfg.SubSteps)
	for i := range k.bodies {
		b := &k.bodies[i]
		for s := 0; s < k.cfg.SubSteps; s++ {
			k.integrate(b, cmds[i], h)
		}
		if !finitePose(*b) {
			return nil, &EngineError{Op: "step", Err: fmt.Errorf("body %d diverged", i)}
		}
	}

	out := make([]core.Pose, len(k.bodies))
	copy(out, k.bodies)
	return out, nil
}

func (k *Kinematic) integrate(b *core.Pose, m core.Motion, h float64) {
	accel := m.Velocity.Sub(b.Velocity).Mul(k.cfg.ResponseRate).Sub(b.Velocity.Mul(k.cfg.Drag))
	b.Velocity = b.Velocity.Add(accel.Mul(h))
	b.Position = b.Position.Add(b.Velocity.Mul(h))
	b.Yaw = math.Atan2(math.Sin(b.Yaw+m.YawRate*h), math.Cos(b.Yaw+m.YawRate*h))

	clamped := k.cfg.Bounds.Clamp(b.Position)
	for axis := range clamped {
		if clamped[axis] != b.Position[axis] {
			b.Velocity[axis] = 0
		}
	}
	b.Position = clamped
}

// Close releases the engine. Further calls fail with ErrClosed.
func (k *Kinematic) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	k.bodies = nil
	return nil
}

func finitePose(p core.Pose) bool {
	for _, v := range [...]mgl64.Vec3{p.Position, p.Velocity} {
		for _, c := range v {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return false
			}
		}
	}
	return !math.IsNaN(p.Yaw)
}
