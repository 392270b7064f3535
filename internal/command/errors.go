package command

import (
	"errors"
	"fmt"

	"github.com/auslab/swarm/pkg/core"
)

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = errors.New("command queue full")

// ValidationError rejects a command at admission. Nothing is enqueued.
type ValidationError struct {
	Kind   core.Kind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s command: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s command: %s: %s", e.Kind, e.Field, e.Reason)
}

// UnknownTargetError names agent ids that do not exist. It is reported per
// command and never aborts the rest of a drained batch.
type UnknownTargetError struct {
	Kind core.Kind
	IDs  []int
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("%s: unknown agent ids %v", e.Kind, e.IDs)
}

func invalid(kind core.Kind, field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Reason: fmt.Sprintf(format, args...)}
}
