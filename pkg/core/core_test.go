package core

import (
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargets_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Targets
		wantErr bool
	}{
		{name: "all list", input: `["all"]`, want: AllAgents()},
		{name: "all string", input: `"all"`, want: AllAgents()},
		{name: "ids", input: `[0, 2, 5]`, want: Agents(0, 2, 5)},
		{name: "empty", input: `[]`, want: Targets{IDs: []int{}}},
		{name: "mixed", input: `["all", 1]`, wantErr: true},
		{name: "other string", input: `["some"]`, wantErr: true},
		{name: "float", input: `[1.5]`, wantErr: true},
		{name: "object", input: `{"id": 1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Targets
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargets_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(AllAgents())
	require.NoError(t, err)
	assert.JSONEq(t, `["all"]`, string(b))

	b, err = json.Marshal(Agents(3, 1))
	require.NoError(t, err)
	assert.JSONEq(t, `[3, 1]`, string(b))
}

func TestMode_TextRoundTrip(t *testing.T) {
	for m := ModeIdle; m <= ModeLand; m++ {
		text, err := m.MarshalText()
		require.NoError(t, err)

		var got Mode
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, m, got)
	}

	var bad Mode
	assert.Error(t, bad.UnmarshalText([]byte("orbit")))
	assert.Equal(t, "Mode(42)", Mode(42).String())
}

func TestMode_Airborne(t *testing.T) {
	assert.False(t, ModeIdle.Airborne())
	assert.True(t, ModeHover.Airborne())
	assert.True(t, ModeLand.Airborne())
}

func TestBounds_ClampAndContains(t *testing.T) {
	b := DefaultBounds()

	assert.True(t, b.Contains(mgl64.Vec3{10, -10, 5}))
	assert.False(t, b.Contains(mgl64.Vec3{10.01, 0, 1}))
	assert.False(t, b.Contains(mgl64.Vec3{0, 0, -0.1}))

	got := b.Clamp(mgl64.Vec3{12, -11, 7})
	assert.Equal(t, mgl64.Vec3{10, -10, 5}, got)
	assert.Equal(t, mgl64.Vec3{0, 0, 0}, b.Clamp(mgl64.Vec3{0, 0, -3}))
}

func TestSnapshot_Lookup(t *testing.T) {
	s := &Snapshot{Agents: []AgentSummary{
		{ID: 0, Healthy: true},
		{ID: 1, Healthy: false},
		{ID: 2, Healthy: true},
	}}

	a, ok := s.Agent(1)
	require.True(t, ok)
	assert.False(t, a.Healthy)

	_, ok = s.Agent(7)
	assert.False(t, ok)

	assert.Equal(t, []int{0, 1, 2}, s.IDs())
	assert.Equal(t, 2, s.HealthyCount())
}

func TestCommand_Kinds(t *testing.T) {
	cmds := []Command{
		Spawn{}, Takeoff{}, Land{}, Hover{}, Goto{}, Velocity{}, Formation{}, Reset{}, Click{},
	}
	require.Len(t, cmds, len(Kinds))
	for i, c := range cmds {
		assert.Equal(t, Kinds[i], c.Kind())
	}
}
