// pkg/core/formation.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Pattern is a formation layout.
type Pattern string

const (
	PatternLine   Pattern = "line"
	PatternCircle Pattern = "circle"
	PatternGrid   Pattern = "grid"
	PatternV      Pattern = "v"
)

// Axis is the direction a line formation extends along.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
)

// FormationSpec describes a formation independently of the agents filling it.
// Spacing applies to line, grid and v; Radius to circle; Axis to line.
// Angle is the half-angle of a v in radians (0 means the default).
type FormationSpec struct {
	Pattern Pattern    `json:"pattern"`
	Center  mgl64.Vec3 `json:"center"`
	Spacing float64    `json:"spacing,omitempty"`
	Radius  float64    `json:"radius,omitempty"`
	Axis    Axis       `json:"axis,omitempty"`
	Angle   float64    `json:"angle,omitempty"`
}

// Preset is a named, stored FormationSpec.
type Preset struct {
	Name      string        `json:"name"`
	Spec      FormationSpec `json:"spec"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
