package controller

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auslab/swarm/pkg/core"
)

const controlDt = 1.0 / 60

// step integrates a first-order velocity response, four sub-steps per control period.
func step(pose core.Pose, m core.Motion) core.Pose {
	const sub = 4
	h := controlDt / sub
	for i := 0; i < sub; i++ {
		accel := m.Velocity.Sub(pose.Velocity).Mul(5).Sub(pose.Velocity.Mul(0.1))
		pose.Velocity = pose.Velocity.Add(accel.Mul(h))
		pose.Position = pose.Position.Add(pose.Velocity.Mul(h))
		pose.Yaw = WrapAngle(pose.Yaw + m.YawRate*h)
	}
	return pose
}

func TestFlight_GotoConverges(t *testing.T) {
	f := NewFlight(DefaultConfig())
	pose := core.Pose{Position: mgl64.Vec3{0, 0, 1}}
	target := PositionTarget(mgl64.Vec3{3, -2, 2}, math.Pi/2)

	const settle = 0.05
	entered := -1
	for tick := 0; tick < 60*20; tick++ {
		pose = step(pose, f.Update(pose, target, controlDt))
		dist := pose.Position.Sub(target.Position).Len()

		if entered < 0 && dist < settle {
			entered = tick
		}
		if entered >= 0 {
			require.Less(t, dist, settle, "left the settle radius at tick %d after entering at %d", tick, entered)
		}
	}

	require.GreaterOrEqual(t, entered, 0, "never converged")
	assert.Less(t, entered, 60*10)
	assert.InDelta(t, math.Pi/2, pose.Yaw, 0.02)
	assert.Less(t, pose.Velocity.Len(), 0.01)
}

func TestFlight_VelocityClamped(t *testing.T) {
	cfg := DefaultConfig()
	f := NewFlight(cfg)

	// Far target saturates the P term on every axis.
	m := f.Update(core.Pose{}, PositionTarget(mgl64.Vec3{10, 10, 5}, 0), controlDt)
	assert.InDelta(t, cfg.MaxVelocity, m.Velocity.Len(), 1e-9)

	// Direct velocity requests are clamped by magnitude, direction kept.
	m = f.Update(core.Pose{}, VelocityTarget(mgl64.Vec3{3, 4, 0}, 10), controlDt)
	assert.InDelta(t, cfg.MaxVelocity, m.Velocity.Len(), 1e-9)
	assert.InDelta(t, 0.6*cfg.MaxVelocity, m.Velocity[0], 1e-9)
	assert.InDelta(t, 0.8*cfg.MaxVelocity, m.Velocity[1], 1e-9)
	assert.Equal(t, cfg.MaxYawRate, m.YawRate)

	m = f.Update(core.Pose{}, VelocityTarget(mgl64.Vec3{0.5, 0, 0}, -0.2), controlDt)
	assert.Equal(t, mgl64.Vec3{0.5, 0, 0}, m.Velocity)
	assert.Equal(t, -0.2, m.YawRate)
}

func TestFlight_NoTarget(t *testing.T) {
	f := NewFlight(DefaultConfig())
	m := f.Update(core.Pose{Velocity: mgl64.Vec3{1, 1, 1}}, Target{}, controlDt)
	assert.Equal(t, core.Motion{}, m)
}

func TestFlight_YawTakesShortWay(t *testing.T) {
	f := NewFlight(DefaultConfig())

	// From 170° to -170° the short way is +20°, not -340°.
	pose := core.Pose{Position: mgl64.Vec3{0, 0, 1}, Yaw: mgl64.DegToRad(170)}
	m := f.Update(pose, PositionTarget(pose.Position, mgl64.DegToRad(-170)), controlDt)
	assert.Greater(t, m.YawRate, 0.0)
}

func TestPID_FreezeAndAntiWindup(t *testing.T) {
	p := PID{Gains: Gains{Kp: 1, Ki: 1, Kd: 1}, IntegralLimit: 0.5}

	for i := 0; i < 100; i++ {
		p.Update(10, 0.1, false)
	}
	assert.Equal(t, 0.5, p.Integral(), "integral must stay clamped")

	before := p.Integral()
	out := p.Update(-3, 0.1, true)
	assert.Equal(t, before, p.Integral(), "frozen update must not accumulate")
	assert.Equal(t, -3+0.5, out, "frozen update has no derivative term")

	p.Reset()
	assert.Zero(t, p.Integral())
	// First update after reset has no derivative kick.
	assert.InDelta(t, 2+0.2, p.Update(2, 0.1, false), 1e-12)
}

func TestFlight_Reset(t *testing.T) {
	f := NewFlight(DefaultConfig())
	target := PositionTarget(mgl64.Vec3{5, 0, 1}, 0)
	for i := 0; i < 30; i++ {
		f.Update(core.Pose{}, target, controlDt)
	}
	require.NotZero(t, f.axes[0].Integral())

	f.Reset()
	for i := range f.axes {
		assert.Zero(t, f.axes[i].Integral())
	}
}

func TestWrapAngle(t *testing.T) {
	assert.InDelta(t, 0.0, WrapAngle(2*math.Pi), 1e-12)
	assert.InDelta(t, -math.Pi/2, WrapAngle(3*math.Pi/2), 1e-12)
	assert.InDelta(t, math.Pi/2, WrapAngle(-3*math.Pi/2), 1e-12)
}

func TestAdvance(t *testing.T) {
	cfg := DefaultConfig()
	target := PositionTarget(mgl64.Vec3{0, 0, 1}, 0)

	mode, changed := Advance(core.ModeTakeoff, core.Pose{Position: mgl64.Vec3{0, 0, 0.5}}, target, cfg)
	assert.False(t, changed)
	assert.Equal(t, core.ModeTakeoff, mode)

	mode, changed = Advance(core.ModeTakeoff, core.Pose{Position: mgl64.Vec3{0, 0, 0.95}}, target, cfg)
	assert.True(t, changed)
	assert.Equal(t, core.ModeHover, mode)

	mode, changed = Advance(core.ModeLand, core.Pose{Position: mgl64.Vec3{0, 0, 0.1}}, LandTarget(mgl64.Vec3{0, 0, 1}, 0), cfg)
	assert.True(t, changed)
	assert.Equal(t, core.ModeIdle, mode)

	mode, changed = Advance(core.ModeCruise, core.Pose{Position: mgl64.Vec3{0, 0, 1}}, target, cfg)
	assert.False(t, changed)
	assert.Equal(t, core.ModeCruise, mode)
}

func TestOnEvent(t *testing.T) {
	assert.Equal(t, core.ModeTakeoff, OnEvent(EventTakeoff))
	assert.Equal(t, core.ModeLand, OnEvent(EventLand))
	assert.Equal(t, core.ModeHover, OnEvent(EventHover))
	assert.Equal(t, core.ModeCruise, OnEvent(EventGoto))
	assert.Equal(t, core.ModeVelocity, OnEvent(EventVelocity))
	assert.Equal(t, core.ModeIdle, OnEvent(EventReset))
}
