// pkg/core/command.go
package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Kind names a command variant. It doubles as the dispatcher route.
type Kind string

const (
	KindSpawn     Kind = "spawn"
	KindTakeoff   Kind = "takeoff"
	KindLand      Kind = "land"
	KindHover     Kind = "hover"
	KindGoto      Kind = "goto"
	KindVelocity  Kind = "velocity"
	KindFormation Kind = "formation"
	KindReset     Kind = "reset"
	KindClick     Kind = "click"
)

// Kinds lists every command kind accepted by the control loop.
var Kinds = []Kind{
	KindSpawn, KindTakeoff, KindLand, KindHover, KindGoto,
	KindVelocity, KindFormation, KindReset, KindClick,
}

// Command is the closed set of instructions the control loop understands.
// Only types in this package implement it.
type Command interface {
	Kind() Kind
	isCommand()
}

// Targets selects a set of agents: either every live agent or explicit ids.
type Targets struct {
	All bool
	IDs []int
}

// AllAgents selects every live agent.
func AllAgents() Targets { return Targets{All: true} }

// Agents selects the given ids.
func Agents(ids ...int) Targets { return Targets{IDs: ids} }

// MarshalJSON encodes the selector as ["all"] or a list of ids.
func (t Targets) MarshalJSON() ([]byte, error) {
	if t.All {
		return []byte(`["all"]`), nil
	}
	if t.IDs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.IDs)
}

// UnmarshalJSON accepts "all", ["all"] or a list of integer ids.
func (t *Targets) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == `"all"` {
		*t = AllAgents()
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("ids must be \"all\" or a list of integers: %w", err)
	}

	out := Targets{IDs: make([]int, 0, len(raw))}
	for _, r := range raw {
		var s string
		if json.Unmarshal(r, &s) == nil {
			if s != "all" || len(raw) != 1 {
				return fmt.Errorf("ids must be [\"all\"] or a list of integers")
			}
			*t = AllAgents()
			return nil
		}
		var id int
		if err := json.Unmarshal(r, &id); err != nil {
			return fmt.Errorf("invalid id %s: %w", string(r), err)
		}
		out.IDs = append(out.IDs, id)
	}
	*t = out
	return nil
}

// Spawn replaces the whole swarm with Count fresh idle agents.
type Spawn struct {
	Count int
}

// Takeoff climbs the targeted agents to Altitude above their current x,y.
type Takeoff struct {
	Targets  Targets
	Altitude float64
}

// Land descends the targeted agents to the ground.
type Land struct {
	Targets Targets
}

// Hover holds the targeted agents at their current pose.
type Hover struct {
	Targets Targets
}

// Goto flies one agent to a position and heading.
type Goto struct {
	ID       int
	Position mgl64.Vec3
	Yaw      float64
}

// Velocity drives one agent with a direct velocity and yaw rate.
type Velocity struct {
	ID       int
	Velocity mgl64.Vec3
	YawRate  float64
}

// Formation assigns planned formation slots to every live agent.
type Formation struct {
	Spec FormationSpec
}

// Reset returns every agent to IDLE and clears targets and controller state.
type Reset struct{}

// Click records a picked world point as the current interaction target.
type Click struct {
	Point mgl64.Vec3
}

func (Spawn) Kind() Kind     { return KindSpawn }
func (Takeoff) Kind() Kind   { return KindTakeoff }
func (Land) Kind() Kind      { return KindLand }
func (Hover) Kind() Kind     { return KindHover }
func (Goto) Kind() Kind      { return KindGoto }
func (Velocity) Kind() Kind  { return KindVelocity }
func (Formation) Kind() Kind { return KindFormation }
func (Reset) Kind() Kind     { return KindReset }
func (Click) Kind() Kind     { return KindClick }

func (Spawn) isCommand()     {}
func (Takeoff) isCommand()   {}
func (Land) isCommand()      {}
func (Hover) isCommand()     {}
func (Goto) isCommand()      {}
func (Velocity) isCommand()  {}
func (Formation) isCommand() {}
func (Reset) isCommand()     {}
func (Click) isCommand()     {}
