// Package picker converts screen coordinates into world points on the ground plane.
package picker

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// parallelEpsilon is the smallest |dir.z| for which a ray is considered to
// cross the ground plane.
const parallelEpsilon = 1e-9

// Viewport is the screen rectangle the projection maps onto, in pixels.
type Viewport struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Camera supplies the matrices a pick is made against.
type Camera interface {
	ViewMatrix() mgl64.Mat4
	ProjectionMatrix() mgl64.Mat4
	Viewport() Viewport
}

// Miss explains why a pick produced no point.
type Miss int

const (
	MissNone Miss = iota
	MissParallel
	MissBehind
	MissDegenerate
)

func (m Miss) String() string {
	switch m {
	case MissNone:
		return "none"
	case MissParallel:
		return "ray parallel to ground plane"
	case MissBehind:
		return "ground plane behind camera"
	case MissDegenerate:
		return "degenerate camera or viewport"
	default:
		return "unknown"
	}
}

// Ray is a world-space ray with a unit direction.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// Result is the outcome of a pick. Point is only meaningful when Hit is true.
type Result struct {
	Point mgl64.Vec3
	Hit   bool
	Miss  Miss
}

// Picker intersects screen rays with the plane z = GroundHeight.
type Picker struct {
	GroundHeight float64
}

// New creates a picker for the given ground height.
func New(groundHeight float64) *Picker {
	return &Picker{GroundHeight: groundHeight}
}

// Unproject builds the world-space ray through a screen point. ok is false
// when the viewport is empty or a matrix is singular.
func Unproject(sx, sy float64, view, proj mgl64.Mat4, vp Viewport) (ray Ray, ok bool) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return Ray{}, false
	}
	if isSingular(view) || isSingular(proj) {
		return Ray{}, false
	}

	nx := 2*(sx-vp.X)/vp.Width - 1
	ny := 1 - 2*(sy-vp.Y)/vp.Height

	invProj := proj.Inv()
	invView := view.Inv()

	eye := invProj.Mul4x1(mgl64.Vec4{nx, ny, -1, 1})
	eye = mgl64.Vec4{eye[0], eye[1], -1, 0}

	dir := invView.Mul4x1(eye).Vec3()
	if dir.Len() == 0 {
		return Ray{}, false
	}

	return Ray{
		Origin:    invView.Col(3).Vec3(),
		Direction: dir.Normalize(),
	}, true
}

// Pick casts a ray through (sx, sy) and returns where it meets the ground plane.
func (p *Picker) Pick(sx, sy float64, view, proj mgl64.Mat4, vp Viewport) Result {
	ray, ok := Unproject(sx, sy, view, proj, vp)
	if !ok {
		return Result{Miss: MissDegenerate}
	}
	return p.Intersect(ray)
}

// PickFrom picks against the current state of a camera.
func (p *Picker) PickFrom(cam Camera, sx, sy float64) Result {
	return p.Pick(sx, sy, cam.ViewMatrix(), cam.ProjectionMatrix(), cam.Viewport())
}

// Intersect finds where ray meets the ground plane.
func (p *Picker) Intersect(ray Ray) Result {
	dz := ray.Direction[2]
	if math.Abs(dz) < parallelEpsilon {
		return Result{Miss: MissParallel}
	}

	t := (p.GroundHeight - ray.Origin[2]) / dz
	if t < 0 {
		return Result{Miss: MissBehind}
	}

	return Result{Point: ray.Origin.Add(ray.Direction.Mul(t)), Hit: true}
}

func isSingular(m mgl64.Mat4) bool {
	d := m.Det()
	return d == 0 || math.IsNaN(d) || math.IsInf(d, 0)
}
