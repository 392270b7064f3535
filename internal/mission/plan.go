// Package mission runs multi-step plans against the swarm through the
// dispatcher, one action at a time.
package mission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/auslab/swarm/internal/command"
	"github.com/auslab/swarm/internal/dispatcher"
	"github.com/auslab/swarm/pkg/core"
)

// Kind is the dispatcher kind plans are submitted under.
const Kind = "mission"

// Action is one step of a plan. ActionType is a command kind; Parameters
// carries that command's request body.
type Action struct {
	ActionType        core.Kind      `json:"action_type"`
	DroneIDs          core.Targets   `json:"drone_ids"`
	Parameters        map[string]any `json:"parameters,omitempty"`
	Priority          string         `json:"priority,omitempty"`
	WaitForCompletion *bool          `json:"wait_for_completion,omitempty"`
	ExpectedDuration  float64        `json:"expected_duration,omitempty"`
}

// Waits reports whether the runner pauses for ExpectedDuration after the action.
// Actions wait unless they say otherwise.
func (a Action) Waits() bool {
	return a.WaitForCompletion == nil || *a.WaitForCompletion
}

// Plan is an ordered list of actions.
type Plan struct {
	MissionName     string   `json:"mission_name"`
	Actions         []Action `json:"actions"`
	SuccessCriteria string   `json:"success_criteria,omitempty"`
	AbortOnFailure  bool     `json:"abort_on_failure,omitempty"`
	AbortConditions []string `json:"abort_conditions,omitempty"`
}

// Aborts reports whether a failed action stops the plan.
func (p Plan) Aborts() bool {
	return p.AbortOnFailure || len(p.AbortConditions) > 0
}

var actionKinds = map[core.Kind]bool{
	core.KindSpawn:     true,
	core.KindTakeoff:   true,
	core.KindLand:      true,
	core.KindHover:     true,
	core.KindGoto:      true,
	core.KindVelocity:  true,
	core.KindFormation: true,
	core.KindReset:     true,
}

// Decode parses and validates a plan.
func Decode(data []byte) (Plan, error) {
	var p Plan
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&p); err != nil {
		return Plan{}, &command.ValidationError{Kind: Kind, Field: "body", Reason: err.Error()}
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Validate checks the plan shape. Command parameters are validated when
// each action is admitted.
func (p Plan) Validate() error {
	if len(p.Actions) == 0 {
		return &command.ValidationError{Kind: Kind, Field: "actions", Reason: "must not be empty"}
	}
	for i, a := range p.Actions {
		field := fmt.Sprintf("actions[%d]", i)
		if !actionKinds[a.ActionType] {
			return &command.ValidationError{Kind: Kind, Field: field + ".action_type", Reason: fmt.Sprintf("unsupported %q", a.ActionType)}
		}
		if a.ExpectedDuration < 0 {
			return &command.ValidationError{Kind: Kind, Field: field + ".expected_duration", Reason: "must not be negative"}
		}
	}
	return nil
}

// Duration returns ExpectedDuration as a time.Duration.
func (a Action) Duration() time.Duration {
	return time.Duration(a.ExpectedDuration * float64(time.Second))
}

// Event builds the dispatcher event for the action. drone_ids (all agents
// when absent) fills the "ids" field of targeted commands, and the "id" of
// goto and velocity when it names exactly one agent. Explicit parameters win.
func (a Action) Event(source string) (dispatcher.Event, error) {
	body := make(map[string]any, len(a.Parameters)+1)
	for k, v := range a.Parameters {
		body[k] = v
	}

	ids := a.DroneIDs
	if !ids.All && ids.IDs == nil {
		ids = core.AllAgents()
	}

	switch a.ActionType {
	case core.KindTakeoff, core.KindLand, core.KindHover:
		if _, ok := body["ids"]; !ok {
			body["ids"] = ids
		}
	case core.KindGoto, core.KindVelocity:
		if _, ok := body["id"]; !ok && !ids.All && len(ids.IDs) == 1 {
			body["id"] = ids.IDs[0]
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return dispatcher.Event{}, fmt.Errorf("encoding %s parameters: %w", a.ActionType, err)
	}
	return dispatcher.Event{Kind: string(a.ActionType), Payload: payload, Source: source}, nil
}
