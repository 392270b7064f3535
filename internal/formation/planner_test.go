package formation

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auslab/swarm/pkg/core"
)

const tol = 1e-9

func assertVec(t *testing.T, want, got mgl64.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], tol, "component %d: want %v, got %v", i, want, got)
	}
}

func TestPlan_Circle(t *testing.T) {
	spec := core.FormationSpec{Pattern: core.PatternCircle, Center: mgl64.Vec3{0, 0, 1}, Radius: 2}

	got, err := Plan(spec, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assertVec(t, mgl64.Vec3{2, 0, 1}, got[0])
	assertVec(t, mgl64.Vec3{0, 2, 1}, got[1])
	assertVec(t, mgl64.Vec3{-2, 0, 1}, got[2])
	assertVec(t, mgl64.Vec3{0, -2, 1}, got[3])
}

func TestPlan_Line(t *testing.T) {
	tests := []struct {
		name string
		axis core.Axis
		want []mgl64.Vec3
	}{
		{name: "x axis", axis: core.AxisX, want: []mgl64.Vec3{{-1, 0, 2}, {0, 0, 2}, {1, 0, 2}}},
		{name: "y axis", axis: core.AxisY, want: []mgl64.Vec3{{0, -1, 2}, {0, 0, 2}, {0, 1, 2}}},
		{name: "default axis", want: []mgl64.Vec3{{-1, 0, 2}, {0, 0, 2}, {1, 0, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := core.FormationSpec{Pattern: core.PatternLine, Center: mgl64.Vec3{0, 0, 2}, Spacing: 1, Axis: tt.axis}
			got, err := Plan(spec, 3)
			require.NoError(t, err)
			for i := range tt.want {
				assertVec(t, tt.want[i], got[i])
			}
		})
	}
}

func TestPlan_Grid(t *testing.T) {
	spec := core.FormationSpec{Pattern: core.PatternGrid, Center: mgl64.Vec3{1, 1, 1}, Spacing: 2}

	// 5 agents: cols=3, rows=2, filled row-major.
	got, err := Plan(spec, 5)
	require.NoError(t, err)
	want := []mgl64.Vec3{
		{-1, 0, 1}, {1, 0, 1}, {3, 0, 1},
		{-1, 2, 1}, {1, 2, 1},
	}
	for i := range want {
		assertVec(t, want[i], got[i])
	}
}

func TestPlan_V(t *testing.T) {
	spec := core.FormationSpec{Pattern: core.PatternV, Center: mgl64.Vec3{0, 0, 1}, Spacing: 1}

	got, err := Plan(spec, 5)
	require.NoError(t, err)

	c, s := math.Cos(DefaultVAngle), math.Sin(DefaultVAngle)
	want := []mgl64.Vec3{
		{0, 0, 1},
		{-c, -s, 1},
		{-c, s, 1},
		{-2 * c, -2 * s, 1},
		{-2 * c, 2 * s, 1},
	}
	for i := range want {
		assertVec(t, want[i], got[i])
	}
}

func TestPlan_Deterministic(t *testing.T) {
	specs := []core.FormationSpec{
		{Pattern: core.PatternLine, Center: mgl64.Vec3{0, 0, 1}, Spacing: 1.5, Axis: core.AxisY},
		{Pattern: core.PatternCircle, Center: mgl64.Vec3{2, -1, 3}, Radius: 1.5},
		{Pattern: core.PatternGrid, Center: mgl64.Vec3{0, 0, 1}, Spacing: 0.7},
		{Pattern: core.PatternV, Center: mgl64.Vec3{0, 0, 1}, Spacing: 1, Angle: math.Pi / 4},
	}
	for _, spec := range specs {
		a, err := Plan(spec, 11)
		require.NoError(t, err)
		b, err := Plan(spec, 11)
		require.NoError(t, err)
		assert.Equal(t, a, b, "pattern %s", spec.Pattern)
	}
}

func TestPlan_Edges(t *testing.T) {
	got, err := Plan(core.FormationSpec{Pattern: core.PatternCircle, Radius: 1}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Plan(core.FormationSpec{Pattern: core.PatternGrid, Center: mgl64.Vec3{3, 3, 1}, Spacing: 1}, 1)
	require.NoError(t, err)
	assertVec(t, mgl64.Vec3{3, 3, 1}, got[0])

	_, err = Plan(core.FormationSpec{Pattern: "star"}, 3)
	assert.Error(t, err)

	_, err = Plan(core.FormationSpec{Pattern: core.PatternCircle}, 3)
	assert.Error(t, err, "zero radius")

	_, err = Plan(core.FormationSpec{Pattern: core.PatternLine, Axis: "z", Spacing: 1}, 3)
	assert.Error(t, err)

	_, err = Plan(core.FormationSpec{Pattern: core.PatternLine}, -1)
	assert.Error(t, err)
}
