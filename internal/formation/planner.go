// Package formation computes target positions for multi-agent layouts.
// Plans are pure functions of the spec and the agent count.
package formation

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/auslab/swarm/pkg/core"
)

// DefaultVAngle is the half-angle of a v formation when the spec leaves it unset.
const DefaultVAngle = math.Pi / 6

// Plan returns n positions for spec. Index i is the slot for the i-th agent
// in ascending id order.
func Plan(spec core.FormationSpec, n int) ([]mgl64.Vec3, error) {
	if n < 0 {
		return nil, fmt.Errorf("agent count must be non-negative, got %d", n)
	}
	if n == 0 {
		return []mgl64.Vec3{}, nil
	}

	switch spec.Pattern {
	case core.PatternLine:
		return line(spec, n)
	case core.PatternCircle:
		return circle(spec, n)
	case core.PatternGrid:
		return grid(spec, n), nil
	case core.PatternV:
		return vee(spec, n), nil
	default:
		return nil, fmt.Errorf("unknown formation pattern %q", spec.Pattern)
	}
}

func line(spec core.FormationSpec, n int) ([]mgl64.Vec3, error) {
	var dir mgl64.Vec3
	switch spec.Axis {
	case core.AxisX, "":
		dir = mgl64.Vec3{1, 0, 0}
	case core.AxisY:
		dir = mgl64.Vec3{0, 1, 0}
	default:
		return nil, fmt.Errorf("unknown line axis %q", spec.Axis)
	}

	out := make([]mgl64.Vec3, n)
	start := -float64(n-1) * spec.Spacing / 2
	for i := range out {
		out[i] = spec.Center.Add(dir.Mul(start + float64(i)*spec.Spacing))
	}
	return out, nil
}

func circle(spec core.FormationSpec, n int) ([]mgl64.Vec3, error) {
	if spec.Radius <= 0 {
		return nil, fmt.Errorf("circle radius must be positive, got %v", spec.Radius)
	}
	out := make([]mgl64.Vec3, n)
	for i := range out {
		a := 2 * math.Pi * float64(i) / float64(n)
		out[i] = spec.Center.Add(mgl64.Vec3{spec.Radius * math.Cos(a), spec.Radius * math.Sin(a), 0})
	}
	return out, nil
}

func grid(spec core.FormationSpec, n int) []mgl64.Vec3 {
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := int(math.Ceil(float64(n) / float64(cols)))

	x0 := -float64(cols-1) * spec.Spacing / 2
	y0 := -float64(rows-1) * spec.Spacing / 2

	out := make([]mgl64.Vec3, n)
	for i := range out {
		r, c := i/cols, i%cols
		out[i] = spec.Center.Add(mgl64.Vec3{x0 + float64(c)*spec.Spacing, y0 + float64(r)*spec.Spacing, 0})
	}
	return out
}

// vee puts the leader at the center and alternates followers left and right,
// one rank further back every two agents.
func vee(spec core.FormationSpec, n int) []mgl64.Vec3 {
	angle := spec.Angle
	if angle == 0 {
		angle = DefaultVAngle
	}
	back := spec.Spacing * math.Cos(angle)
	wide := spec.Spacing * math.Sin(angle)

	out := make([]mgl64.Vec3, n)
	out[0] = spec.Center
	for i := 1; i < n; i++ {
		rank := float64((i + 1) / 2)
		side := -1.0
		if i%2 == 0 {
			side = 1
		}
		out[i] = spec.Center.Add(mgl64.Vec3{-rank * back, side * rank * wide, 0})
	}
	return out
}
