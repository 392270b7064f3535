// Package controller turns agent targets into velocity commands and drives
// the per-agent flight mode state machine.
package controller

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/auslab/swarm/pkg/core"
)

// Config holds gains and limits shared by every agent's controller.
type Config struct {
	Position      Gains   `json:"position" mapstructure:"position"`
	Yaw           Gains   `json:"yaw" mapstructure:"yaw"`
	IntegralLimit float64 `json:"integralLimit" mapstructure:"integralLimit"`
	MaxVelocity   float64 `json:"maxVelocity" mapstructure:"maxVelocity"`
	MaxYawRate    float64 `json:"maxYawRate" mapstructure:"maxYawRate"`
	Epsilon       float64 `json:"epsilon" mapstructure:"epsilon"`
	YawEpsilon    float64 `json:"yawEpsilon" mapstructure:"yawEpsilon"`

	ArrivalTolerance float64 `json:"arrivalTolerance" mapstructure:"arrivalTolerance"`
	LandedAltitude   float64 `json:"landedAltitude" mapstructure:"landedAltitude"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Position:         Gains{Kp: 2.0, Ki: 0.01, Kd: 0.5},
		Yaw:              Gains{Kp: 2.0, Ki: 0.0, Kd: 0.3},
		IntegralLimit:    1.0,
		MaxVelocity:      2.0,
		MaxYawRate:       math.Pi,
		Epsilon:          0.02,
		YawEpsilon:       0.01,
		ArrivalTolerance: 0.1,
		LandedAltitude:   0.15,
	}
}

// TargetKind distinguishes position goals from direct velocity goals.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetPosition
	TargetVelocity
)

// Target is what an agent is currently trying to achieve.
type Target struct {
	Kind     TargetKind
	Position mgl64.Vec3
	Yaw      float64
	Velocity mgl64.Vec3
	YawRate  float64
}

// PositionTarget holds a position and heading.
func PositionTarget(p mgl64.Vec3, yaw float64) Target {
	return Target{Kind: TargetPosition, Position: p, Yaw: yaw}
}

// VelocityTarget holds a velocity and yaw rate.
func VelocityTarget(v mgl64.Vec3, yawRate float64) Target {
	return Target{Kind: TargetVelocity, Velocity: v, YawRate: yawRate}
}

// Flight is the controller for one agent.
type Flight struct {
	cfg  Config
	axes [3]PID
	yaw  PID
}

// NewFlight creates a controller with cleared accumulators.
func NewFlight(cfg Config) *Flight {
	f := &Flight{cfg: cfg}
	for i := range f.axes {
		f.axes[i] = PID{Gains: cfg.Position, IntegralLimit: cfg.IntegralLimit}
	}
	f.yaw = PID{Gains: cfg.Yaw, IntegralLimit: cfg.IntegralLimit}
	return f
}

// Update computes the motion command for one control period.
func (f *Flight) Update(pose core.Pose, target Target, dt float64) core.Motion {
	switch target.Kind {
	case TargetPosition:
		return f.track(pose, target, dt)
	case TargetVelocity:
		return core.Motion{
			Velocity: ClampMagnitude(target.Velocity, f.cfg.MaxVelocity),
			YawRate:  mgl64.Clamp(target.YawRate, -f.cfg.MaxYawRate, f.cfg.MaxYawRate),
		}
	default:
		return core.Motion{}
	}
}

func (f *Flight) track(pose core.Pose, target Target, dt float64) core.Motion {
	e := target.Position.Sub(pose.Position)
	frozen := e.Len() < f.cfg.Epsilon

	var v mgl64.Vec3
	for i := range f.axes {
		v[i] = f.axes[i].Update(e[i], dt, frozen)
	}

	yawErr := WrapAngle(target.Yaw - pose.Yaw)
	rate := f.yaw.Update(yawErr, dt, math.Abs(yawErr) < f.cfg.YawEpsilon)

	return core.Motion{
		Velocity: ClampMagnitude(v, f.cfg.MaxVelocity),
		YawRate:  mgl64.Clamp(rate, -f.cfg.MaxYawRate, f.cfg.MaxYawRate),
	}
}

// Reset clears all accumulated controller state.
func (f *Flight) Reset() {
	for i := range f.axes {
		f.axes[i].Reset()
	}
	f.yaw.Reset()
}

// ClampMagnitude scales v down so its length does not exceed limit.
func ClampMagnitude(v mgl64.Vec3, limit float64) mgl64.Vec3 {
	l := v.Len()
	if l <= limit || l == 0 {
		return v
	}
	return v.Mul(limit / l)
}

// WrapAngle maps a to (-π, π].
func WrapAngle(a float64) float64 {
	return math.Atan2(math.Sin(a), math.Cos(a))
}
