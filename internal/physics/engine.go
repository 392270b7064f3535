// Package physics defines the simulation collaborator used by the control
// loop and provides a kinematic reference engine.
package physics

import (
	"fmt"

	"github.com/auslab/swarm/pkg/core"
)

// Engine advances rigid bodies. Implementations are driven from a single
// goroutine and must not block beyond one step.
type Engine interface {
	// Reset replaces every body with the given initial poses.
	Reset(spawn []core.Pose) error
	// Step applies one motion command per body for dt seconds and returns
	// the resulting poses in the same order.
	Step(cmds []core.Motion, dt float64) ([]core.Pose, error)
	Close() error
}

// EngineError means the engine can no longer be trusted. The control loop
// halts on it instead of publishing more state.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("physics engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
