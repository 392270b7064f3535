package picker

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testViewport = Viewport{Width: 800, Height: 600}

func testProjection() mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(60), testViewport.Width/testViewport.Height, 0.1, 100)
}

func TestPick_StraightDown(t *testing.T) {
	view := mgl64.LookAtV(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0})

	res := New(0).Pick(400, 300, view, testProjection(), testViewport)

	require.True(t, res.Hit, "miss: %s", res.Miss)
	assert.InDelta(t, 0, res.Point[0], 1e-9)
	assert.InDelta(t, 0, res.Point[1], 1e-9)
	assert.InDelta(t, 0, res.Point[2], 1e-9)
}

func TestPick_OffCenterLandsOnPlane(t *testing.T) {
	view := mgl64.LookAtV(mgl64.Vec3{-4, -4, 6}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 1})

	p := New(0.5)
	res := p.Pick(150, 420, view, testProjection(), testViewport)

	require.True(t, res.Hit)
	assert.InDelta(t, 0.5, res.Point[2], 1e-9)

	// Centre of the screen looks at the look-at target, so it must hit the
	// plane on the segment between the eye and the target.
	res = New(0).Pick(400, 300, view, testProjection(), testViewport)
	require.True(t, res.Hit)
	assert.InDelta(t, 0, res.Point[0], 1e-9)
	assert.InDelta(t, 0, res.Point[1], 1e-9)
}

func TestPick_RightOfCenterIsPositiveX(t *testing.T) {
	view := mgl64.LookAtV(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0})
	proj := testProjection()

	right := New(0).Pick(600, 300, view, proj, testViewport)
	up := New(0).Pick(400, 100, view, proj, testViewport)

	require.True(t, right.Hit)
	require.True(t, up.Hit)
	assert.Greater(t, right.Point[0], 0.0)
	assert.Greater(t, up.Point[1], 0.0, "screen y grows downward")
}

func TestPick_ParallelRay(t *testing.T) {
	view := mgl64.LookAtV(mgl64.Vec3{0, 0, 1}, mgl64.Vec3{10, 0, 1}, mgl64.Vec3{0, 0, 1})

	res := New(0).Pick(400, 300, view, testProjection(), testViewport)

	assert.False(t, res.Hit)
	assert.Equal(t, MissParallel, res.Miss)
}

func TestPick_PlaneBehindCamera(t *testing.T) {
	// Camera below the plane looking further down.
	view := mgl64.LookAtV(mgl64.Vec3{0, 0, -2}, mgl64.Vec3{0, 0, -5}, mgl64.Vec3{0, 1, 0})

	res := New(0).Pick(400, 300, view, testProjection(), testViewport)

	assert.False(t, res.Hit)
	assert.Equal(t, MissBehind, res.Miss)
}

func TestPick_Degenerate(t *testing.T) {
	view := mgl64.LookAtV(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0})

	res := New(0).Pick(1, 1, view, testProjection(), Viewport{})
	assert.False(t, res.Hit)
	assert.Equal(t, MissDegenerate, res.Miss)

	res = New(0).Pick(1, 1, mgl64.Mat4{}, testProjection(), testViewport)
	assert.False(t, res.Hit)
	assert.Equal(t, MissDegenerate, res.Miss)
}

func TestUnproject_OriginIsEye(t *testing.T) {
	eye := mgl64.Vec3{1, 2, 3}
	view := mgl64.LookAtV(eye, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 1})

	ray, ok := Unproject(400, 300, view, testProjection(), testViewport)
	require.True(t, ok)
	for i := range eye {
		assert.InDelta(t, eye[i], ray.Origin[i], 1e-9)
	}
	assert.InDelta(t, 1, ray.Direction.Len(), 1e-12)

	want := eye.Mul(-1).Normalize()
	for i := range want {
		assert.InDelta(t, want[i], ray.Direction[i], 1e-9)
	}
}

func TestMiss_String(t *testing.T) {
	assert.Equal(t, "ray parallel to ground plane", MissParallel.String())
	assert.Equal(t, "unknown", Miss(9).String())
}
