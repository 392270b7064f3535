// Package intake turns producer requests into validated commands on the
// command queue.
package intake

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/auslab/swarm/internal/command"
	"github.com/auslab/swarm/internal/dispatcher"
	"github.com/auslab/swarm/pkg/core"
)

// Defaults applied to fields a request leaves out.
const (
	DefaultSpawnCount = 5
	DefaultAltitude   = 1.0
	DefaultSpacing    = 1.0
	DefaultRadius     = 1.5
)

// DefaultCenter is the formation center used when none is given.
var DefaultCenter = mgl64.Vec3{0, 0, 1}

// StateSource is the read side of the state publisher.
type StateSource interface {
	Latest() (*core.Snapshot, error)
}

// PresetSource looks up stored formation presets by name.
type PresetSource interface {
	GetPreset(name string) (core.Preset, error)
}

// Manager owns the request decoders and admission checks.
type Manager struct {
	queue   *command.Queue
	state   StateSource
	presets PresetSource
}

// NewManager creates an intake manager. presets may be nil.
func NewManager(q *command.Queue, state StateSource, presets PresetSource) *Manager {
	return &Manager{queue: q, state: state, presets: presets}
}

// RegisterHandlers registers one handler per command kind. Every handler
// returns the command.Ticket of the admitted command.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(string(core.KindSpawn), m.handleSpawn, dispatcher.Logged())
	d.Register(string(core.KindTakeoff), m.handleTakeoff, dispatcher.Logged())
	d.Register(string(core.KindLand), m.handleLand, dispatcher.Logged())
	d.Register(string(core.KindHover), m.handleHover, dispatcher.Logged())
	d.Register(string(core.KindGoto), m.handleGoto, dispatcher.Logged())
	d.Register(string(core.KindVelocity), m.handleVelocity, dispatcher.Logged())
	d.Register(string(core.KindFormation), m.handleFormation, dispatcher.Logged())
	d.Register(string(core.KindReset), m.handleReset, dispatcher.Logged())
	d.Register(string(core.KindClick), m.handleClick, dispatcher.Logged())
}

// Submit validates cmd, checks its targets against the latest snapshot and
// enqueues it.
func (m *Manager) Submit(source string, cmd core.Command) (command.Ticket, error) {
	if err := m.queue.Limits().Validate(cmd); err != nil {
		return command.Ticket{}, err
	}
	if err := m.checkTargets(cmd); err != nil {
		return command.Ticket{}, err
	}
	return m.queue.Enqueue(source, cmd)
}

// checkTargets rejects commands naming ids absent from the latest snapshot.
// The loop checks again when it applies the command.
func (m *Manager) checkTargets(cmd core.Command) error {
	snap, err := m.state.Latest()
	if err != nil {
		return err
	}

	var ids []int
	switch c := cmd.(type) {
	case core.Takeoff:
		if !c.Targets.All {
			ids = c.Targets.IDs
		}
	case core.Land:
		if !c.Targets.All {
			ids = c.Targets.IDs
		}
	case core.Hover:
		if !c.Targets.All {
			ids = c.Targets.IDs
		}
	case core.Goto:
		ids = []int{c.ID}
	case core.Velocity:
		ids = []int{c.ID}
	}

	var unknown []int
	for _, id := range ids {
		if _, ok := snap.Agent(id); !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return &command.UnknownTargetError{Kind: cmd.Kind(), IDs: unknown}
	}
	return nil
}

// decode unmarshals a payload into v, which already carries defaults.
// An empty payload keeps the defaults.
func decode(kind core.Kind, payload json.RawMessage, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return &command.ValidationError{Kind: kind, Field: "body", Reason: err.Error()}
	}
	return nil
}

func required(kind core.Kind, field string) error {
	return &command.ValidationError{Kind: kind, Field: field, Reason: "required"}
}

type spawnRequest struct {
	Num int `json:"num"`
}

type targetsRequest struct {
	IDs core.Targets `json:"ids"`
}

type takeoffRequest struct {
	IDs      core.Targets `json:"ids"`
	Altitude float64      `json:"altitude"`
}

type gotoRequest struct {
	ID  *int    `json:"id"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z"`
	Yaw float64 `json:"yaw"`
}

type velocityRequest struct {
	ID      *int    `json:"id"`
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
	VZ      float64 `json:"vz"`
	YawRate float64 `json:"yaw_rate"`
}

type clickRequest struct {
	Coords *mgl64.Vec3 `json:"coords"`
}

func (m *Manager) handleSpawn(e dispatcher.Event) (any, error) {
	req := spawnRequest{Num: DefaultSpawnCount}
	if err := decode(core.KindSpawn, e.Payload, &req); err != nil {
		return nil, err
	}
	return m.Submit(e.Source, core.Spawn{Count: req.Num})
}

func (m *Manager) handleTakeoff(e dispatcher.Event) (any, error) {
	req := takeoffRequest{IDs: core.AllAgents(), Altitude: DefaultAltitude}
	if err := decode(core.KindTakeoff, e.Payload, &req); err != nil {
		return nil, err
	}
	return m.Submit(e.Source, core.Takeoff{Targets: req.IDs, Altitude: req.Altitude})
}

func (m *Manager) handleLand(e dispatcher.Event) (any, error) {
	req := targetsRequest{IDs: core.AllAgents()}
	if err := decode(core.KindLand, e.Payload, &req); err != nil {
		return nil, err
	}
	return m.Submit(e.Source, core.Land{Targets: req.IDs})
}

func (m *Manager) handleHover(e dispatcher.Event) (any, error) {
	req := targetsRequest{IDs: core.AllAgents()}
	if err := decode(core.KindHover, e.Payload, &req); err != nil {
		return nil, err
	}
	return m.Submit(e.Source, core.Hover{Targets: req.IDs})
}

func (m *Manager) handleGoto(e dispatcher.Event) (any, error) {
	req := gotoRequest{Z: DefaultAltitude}
	if err := decode(core.KindGoto, e.Payload, &req); err != nil {
		return nil, err
	}
	if req.ID == nil {
		return nil, required(core.KindGoto, "id")
	}
	return m.Submit(e.Source, core.Goto{
		ID:       *req.ID,
		Position: mgl64.Vec3{req.X, req.Y, req.Z},
		Yaw:      req.Yaw,
	})
}

func (m *Manager) handleVelocity(e dispatcher.Event) (any, error) {
	var req velocityRequest
	if err := decode(core.KindVelocity, e.Payload, &req); err != nil {
		return nil, err
	}
	if req.ID == nil {
		return nil, required(core.KindVelocity, "id")
	}
	return m.Submit(e.Source, core.Velocity{
		ID:       *req.ID,
		Velocity: mgl64.Vec3{req.VX, req.VY, req.VZ},
		YawRate:  req.YawRate,
	})
}

// handleFormation starts from the defaults, or from a stored preset when the
// request names one, and overlays any fields the request sets.
func (m *Manager) handleFormation(e dispatcher.Event) (any, error) {
	var ref struct {
		Preset string `json:"preset"`
	}
	if err := decode(core.KindFormation, e.Payload, &ref); err != nil {
		return nil, err
	}

	spec := core.FormationSpec{
		Center:  DefaultCenter,
		Spacing: DefaultSpacing,
		Radius:  DefaultRadius,
		Axis:    core.AxisX,
	}
	if ref.Preset != "" {
		if m.presets == nil {
			return nil, &command.ValidationError{Kind: core.KindFormation, Field: "preset", Reason: "presets are not configured"}
		}
		p, err := m.presets.GetPreset(ref.Preset)
		if err != nil {
			return nil, &command.ValidationError{Kind: core.KindFormation, Field: "preset", Reason: err.Error()}
		}
		spec = p.Spec
	}

	if err := decode(core.KindFormation, e.Payload, &spec); err != nil {
		return nil, err
	}
	if spec.Pattern == "" {
		return nil, required(core.KindFormation, "pattern")
	}
	return m.Submit(e.Source, core.Formation{Spec: spec})
}

func (m *Manager) handleReset(e dispatcher.Event) (any, error) {
	return m.Submit(e.Source, core.Reset{})
}

func (m *Manager) handleClick(e dispatcher.Event) (any, error) {
	var req clickRequest
	if err := decode(core.KindClick, e.Payload, &req); err != nil {
		return nil, err
	}
	if req.Coords == nil {
		return nil, required(core.KindClick, "coords")
	}
	return m.Submit(e.Source, core.Click{Point: *req.Coords})
}

// Ticket extracts the command ticket from a dispatcher result.
func Ticket(result any) (command.Ticket, error) {
	t, ok := result.(command.Ticket)
	if !ok {
		return command.Ticket{}, fmt.Errorf("unexpected dispatch result %T", result)
	}
	return t, nil
}
