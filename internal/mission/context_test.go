package mission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext()

	s := ctx.Status()
	assert.Equal(t, "No mission loaded", s.MissionName)
	assert.Equal(t, StateIdle, s.State)
	assert.False(t, ctx.Running())
}

func TestContext_StatusIsACopy(t *testing.T) {
	ctx := NewContext()
	ctx.begin(Plan{MissionName: "survey", Actions: make([]Action, 2)}, time.Now())
	ctx.record(ActionResult{Index: 0, Kind: "takeoff", OK: true})

	s := ctx.Status()
	s.Results[0].Kind = "changed"

	assert.Equal(t, "takeoff", ctx.Status().Results[0].Kind)
	assert.True(t, ctx.Running())
	assert.Equal(t, 1, ctx.Status().Step)
	assert.Equal(t, 1, ctx.Status().Succeeded)

	final := ctx.finish(StateCompleted, time.Now())
	assert.Equal(t, StateCompleted, final.State)
	assert.False(t, ctx.Running())
}
