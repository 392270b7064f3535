package controller

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/auslab/swarm/pkg/core"
)

// Event is a command-driven trigger for the mode state machine.
type Event int

const (
	EventTakeoff Event = iota
	EventLand
	EventHover
	EventGoto
	EventVelocity
	EventReset
)

// OnEvent returns the mode entered when ev is applied in any mode.
// Reset and spawn land every agent in IDLE unconditionally.
func OnEvent(ev Event) core.Mode {
	switch ev {
	case EventTakeoff:
		return core.ModeTakeoff
	case EventLand:
		return core.ModeLand
	case EventHover:
		return core.ModeHover
	case EventGoto:
		return core.ModeCruise
	case EventVelocity:
		return core.ModeVelocity
	default:
		return core.ModeIdle
	}
}

// Advance applies the tick-driven transitions: a takeoff that reached its
// altitude becomes HOVER, and a landing agent near the ground becomes IDLE.
// It reports whether the mode changed.
func Advance(mode core.Mode, pose core.Pose, target Target, cfg Config) (core.Mode, bool) {
	switch mode {
	case core.ModeTakeoff:
		if target.Kind == TargetPosition && pose.Position.Sub(target.Position).Len() < cfg.ArrivalTolerance {
			return core.ModeHover, true
		}
	case core.ModeLand:
		if pose.Position[2] < cfg.LandedAltitude {
			return core.ModeIdle, true
		}
	}
	return mode, false
}

// LandTarget is the ground point directly below p.
func LandTarget(p mgl64.Vec3, yaw float64) Target {
	return PositionTarget(mgl64.Vec3{p[0], p[1], 0}, yaw)
}
