package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auslab/swarm/internal/command"
	"github.com/auslab/swarm/internal/config"
	"github.com/auslab/swarm/internal/dispatcher"
	"github.com/auslab/swarm/internal/intake"
	"github.com/auslab/swarm/internal/mission"
	"github.com/auslab/swarm/internal/physics"
	"github.com/auslab/swarm/internal/picker"
	"github.com/auslab/swarm/internal/publisher"
	"github.com/auslab/swarm/internal/storage/memory"
	"github.com/auslab/swarm/internal/swarm"
	"github.com/auslab/swarm/pkg/core"
)

type fixture struct {
	srv    *Server
	ts     *httptest.Server
	pub    *publisher.Publisher
	runner *mission.Runner
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture runs a real control loop with the kinematic engine behind the server.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := discard()

	q, err := command.NewQueue(0, command.DefaultLimits())
	require.NoError(t, err)
	pub := publisher.New()

	loop, err := swarm.New(swarm.DefaultConfig(), q, physics.NewKinematic(physics.DefaultKinematicConfig()), pub, logger)
	require.NoError(t, err)
	require.NoError(t, loop.Init())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = loop.Run(ctx) }()

	d, err := dispatcher.New(logger)
	require.NoError(t, err)

	presets := memory.New(config.MemoryConfig{})
	require.NoError(t, presets.Init())
	intake.NewManager(q, pub, presets).RegisterHandlers(d)

	runner := mission.NewRunner(ctx, d, mission.NewContext(), logger)
	runner.ActionGap = 0
	runner.Register(d)

	srv, err := New(config.ServerConfig{WaitTimeout: 2 * time.Second}, Dependencies{
		Dispatcher: d,
		State:      pub,
		Limits:     q.Limits(),
		Presets:    presets,
		Missions:   runner,
		Camera:     physics.NewFixedCamera(physics.DefaultCameraConfig()),
		Logger:     logger,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Hub().Close)

	return &fixture{srv: srv, ts: ts, pub: pub, runner: runner}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.ts.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealthAndState(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := f.do(t, http.MethodGet, "/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap core.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Len(t, snap.Agents, 5)
	assert.Equal(t, core.ModeIdle, snap.Agents[0].Mode)
}

func TestCommand_Accepted(t *testing.T) {
	f := newFixture(t)

	resp, data := f.do(t, http.MethodPost, "/takeoff", `{"ids": "all", "altitude": 1.5}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(data))

	var body commandResponse
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "accepted", body.Status)
	assert.Equal(t, core.KindTakeoff, body.Kind)
	assert.NotEmpty(t, body.CommandID)
}

func TestCommand_EmptyBodyUsesDefaults(t *testing.T) {
	f := newFixture(t)
	resp, data := f.do(t, http.MethodPost, "/hover", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode, string(data))
}

func TestCommand_WaitForApply(t *testing.T) {
	f := newFixture(t)

	resp, data := f.do(t, http.MethodPost, "/goto?wait=true", `{"id": 0, "x": 1, "y": 1, "z": 1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var body commandResponse
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "applied", body.Status)
	assert.Equal(t, []int{0}, body.Affected)
}

func TestCommand_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		field  string
		ids    []int
	}{
		{"out of bounds", "/goto", `{"id": 0, "x": 50}`, http.StatusUnprocessableEntity, "x", nil},
		{"missing id", "/velocity", `{"vx": 1}`, http.StatusUnprocessableEntity, "id", nil},
		{"malformed", "/spawn", `{"num": `, http.StatusUnprocessableEntity, "body", nil},
		{"unknown target", "/land", `{"ids": [42]}`, http.StatusNotFound, "", []int{42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := f.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, resp.StatusCode, string(data))

			var body errorBody
			require.NoError(t, json.Unmarshal(data, &body))
			assert.NotEmpty(t, body.Error)
			if tt.field != "" {
				assert.Equal(t, tt.field, body.Field)
			}
			assert.Equal(t, tt.ids, body.IDs)
		})
	}
}

func TestState_Unavailable(t *testing.T) {
	f := newFixture(t)
	f.pub.Fail(errors.New("engine exploded"))

	resp, _ := f.do(t, http.MethodGet, "/state", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/hover", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPick_WithServerCamera(t *testing.T) {
	f := newFixture(t)
	cam := physics.DefaultCameraConfig()

	resp, data := f.do(t, http.MethodPost, "/pick", map[string]float64{
		"screen_x": cam.Width / 2,
		"screen_y": cam.Height / 2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var body pickResponse
	require.NoError(t, json.Unmarshal(data, &body))
	require.True(t, body.HasResult)
	require.Len(t, body.Coords, 3)
	assert.InDelta(t, 0, body.Coords[0], 1e-6)
	assert.InDelta(t, 0, body.Coords[1], 1e-6)
	assert.InDelta(t, 0, body.Coords[2], 1e-9)

	require.Eventually(t, func() bool {
		_, data := f.do(t, http.MethodGet, "/pick", nil)
		var last pickResponse
		return json.Unmarshal(data, &last) == nil && last.HasResult
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPick_ExplicitMatricesParallelRay(t *testing.T) {
	f := newFixture(t)

	view := mgl64.LookAtV(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{10, 0, 5}, mgl64.Vec3{0, 0, 1})
	proj := mgl64.Perspective(mgl64.DegToRad(60), 1, 0.1, 100)
	vp := picker.Viewport{Width: 100, Height: 100}

	resp, data := f.do(t, http.MethodPost, "/pick", map[string]any{
		"screen_x":   50,
		"screen_y":   50,
		"view":       view,
		"projection": proj,
		"viewport":   vp,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var body pickResponse
	require.NoError(t, json.Unmarshal(data, &body))
	assert.False(t, body.HasResult)
	assert.NotNil(t, body.Coords)
	assert.Empty(t, body.Coords)
	assert.Contains(t, string(data), `"coords":[]`)
	assert.Equal(t, picker.MissParallel.String(), body.Reason)
}

func TestPick_PartialMatrices(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodPost, "/pick", map[string]any{"screen_x": 1, "screen_y": 1, "view": mgl64.Ident4()})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPick_NoClickYet(t *testing.T) {
	f := newFixture(t)
	resp, data := f.do(t, http.MethodGet, "/pick", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"has_result": false, "coords": []}`, string(data))
}

func TestFormationPresets(t *testing.T) {
	f := newFixture(t)

	preset := core.Preset{Name: "ring", Spec: core.FormationSpec{Pattern: core.PatternCircle, Center: mgl64.Vec3{0, 0, 1}, Radius: 2}}
	resp, data := f.do(t, http.MethodPost, "/formations", preset)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, data = f.do(t, http.MethodGet, "/formations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []core.Preset
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "ring", list[0].Name)

	resp, _ = f.do(t, http.MethodGet, "/formations/ring", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data = f.do(t, http.MethodPost, "/formation?wait=true", `{"preset": "ring"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, _ = f.do(t, http.MethodDelete, "/formations/ring", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/formations/ring", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = f.do(t, http.MethodDelete, "/formations/ring", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFormationPresets_Invalid(t *testing.T) {
	f := newFixture(t)

	resp, data := f.do(t, http.MethodPost, "/formations", core.Preset{Name: "huge", Spec: core.FormationSpec{Pattern: core.PatternCircle, Radius: 10}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(data))

	resp, data = f.do(t, http.MethodPost, "/formations", core.Preset{Name: "no/slash", Spec: core.FormationSpec{Pattern: core.PatternCircle, Radius: 1}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(data))
	var body errorBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "name", body.Field)
}

func TestMission(t *testing.T) {
	f := newFixture(t)

	plan := `{
		"mission_name": "hop",
		"actions": [
			{"action_type": "takeoff", "drone_ids": "all", "parameters": {"altitude": 1.0}, "wait_for_completion": false},
			{"action_type": "land", "drone_ids": [0, 1], "wait_for_completion": false}
		]
	}`
	resp, data := f.do(t, http.MethodPost, "/mission", plan)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(data))

	require.Eventually(t, func() bool {
		return f.runner.Status().Status().State == mission.StateCompleted
	}, 3*time.Second, 10*time.Millisecond)

	resp, data = f.do(t, http.MethodGet, "/mission", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st mission.Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, "hop", st.MissionName)
	assert.Equal(t, 2, st.Succeeded)

	resp, data = f.do(t, http.MethodDelete, "/mission", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"cancelled": false}`, string(data))
}

func TestMission_Invalid(t *testing.T) {
	f := newFixture(t)
	resp, data := f.do(t, http.MethodPost, "/mission", `{"mission_name": "empty", "actions": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(data))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&command.ValidationError{Kind: core.KindGoto}, http.StatusUnprocessableEntity},
		{&command.UnknownTargetError{Kind: core.KindLand, IDs: []int{1}}, http.StatusNotFound},
		{publisher.ErrUnavailable, http.StatusServiceUnavailable},
		{&physics.EngineError{Op: "step", Err: errors.New("nan")}, http.StatusServiceUnavailable},
		{command.ErrQueueFull, http.StatusTooManyRequests},
		{dispatcher.ErrBusy, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
