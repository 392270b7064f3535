// pkg/core/agent.go
package core

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Mode is the flight mode of a single agent.
type Mode int

const (
	ModeIdle Mode = iota
	ModeHover
	ModeTakeoff
	ModeCruise
	ModeVelocity
	ModeLand
)

var modeNames = [...]string{"IDLE", "HOVER", "TAKEOFF", "CRUISE", "VELOCITY", "LAND"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Airborne reports whether the agent is drawing energy in this mode.
func (m Mode) Airborne() bool {
	return m != ModeIdle
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	s := strings.ToUpper(string(b))
	for i, name := range modeNames {
		if name == s {
			*m = Mode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown mode: %q", string(b))
}

// Pose is the kinematic state of one body as reported by the physics engine.
type Pose struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Yaw      float64
}

// Motion is the per-tick control output handed to the physics engine.
type Motion struct {
	Velocity mgl64.Vec3
	YawRate  float64
}

// Bounds is the operational box agents are kept inside.
type Bounds struct {
	XY   float64 `json:"xy" mapstructure:"xy"`     // |x| and |y| limit
	ZMax float64 `json:"zMax" mapstructure:"zMax"` // ceiling; the floor is always 0
}

// DefaultBounds matches the admission limits of the command API.
func DefaultBounds() Bounds {
	return Bounds{XY: 10, ZMax: 5}
}

// Contains reports whether p lies inside the box.
func (b Bounds) Contains(p mgl64.Vec3) bool {
	return p[0] >= -b.XY && p[0] <= b.XY &&
		p[1] >= -b.XY && p[1] <= b.XY &&
		p[2] >= 0 && p[2] <= b.ZMax
}

// Clamp projects p onto the box.
func (b Bounds) Clamp(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{
		mgl64.Clamp(p[0], -b.XY, b.XY),
		mgl64.Clamp(p[1], -b.XY, b.XY),
		mgl64.Clamp(p[2], 0, b.ZMax),
	}
}
