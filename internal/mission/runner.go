package mission

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/auslab/swarm/internal/dispatcher"
	"github.com/auslab/swarm/internal/intake"
)

// DefaultActionGap is the pause between consecutive actions.
const DefaultActionGap = 500 * time.Millisecond

// Dispatcher is the part of dispatcher.Dispatcher the runner needs.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Runner executes plans. Only one plan runs at a time.
type Runner struct {
	d      Dispatcher
	status *Context
	logger *slog.Logger

	// ActionGap is the pause between actions; zero means none.
	ActionGap time.Duration
	// ApplyTimeout bounds the wait for the control loop to apply one action.
	ApplyTimeout time.Duration

	base   context.Context
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewRunner creates a runner. base bounds every run started through the
// dispatcher; cancelling it stops the current plan.
func NewRunner(base context.Context, d Dispatcher, status *Context, logger *slog.Logger) *Runner {
	return &Runner{
		d:            d,
		status:       status,
		logger:       logger.With("component", "mission"),
		ActionGap:    DefaultActionGap,
		ApplyTimeout: 5 * time.Second,
		base:         base,
	}
}

// Status returns the mission context the runner reports into.
func (r *Runner) Status() *Context {
	return r.status
}

// Register adds the mission kind to d. Plans run one at a time in the
// dispatcher's buffer goroutine; one more may wait, further submissions
// fail with dispatcher.ErrBusy.
func (r *Runner) Register(d *dispatcher.Dispatcher) {
	d.Register(Kind, r.handle, dispatcher.Buffered(1), dispatcher.Logged())
}

func (r *Runner) handle(e dispatcher.Event) (any, error) {
	plan, err := Decode(e.Payload)
	if err != nil {
		return nil, err
	}
	return r.Run(r.base, plan)
}

// Cancel stops the plan in progress, if any.
func (r *Runner) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	return true
}

// Run executes plan synchronously and returns the final status. A failed
// action stops the plan only when the plan aborts on failure.
func (r *Runner) Run(ctx context.Context, plan Plan) (Status, error) {
	if err := plan.Validate(); err != nil {
		return Status{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	r.status.begin(plan, time.Now())
	r.logger.Info("Mission started", "mission", plan.MissionName, "actions", len(plan.Actions))

	source := "mission:" + plan.MissionName
	for i, action := range plan.Actions {
		if err := ctx.Err(); err != nil {
			return r.stop(plan, StateCancelled, err)
		}

		res := r.execute(ctx, i, action, source)
		r.status.record(res)

		if !res.OK {
			r.logger.Warn("Mission action failed", "mission", plan.MissionName, "step", i+1, "kind", res.Kind, "error", res.Error)
			if plan.Aborts() {
				return r.stop(plan, StateAborted, fmt.Errorf("action %d (%s): %s", i+1, res.Kind, res.Error))
			}
		}

		var pause time.Duration
		if action.Waits() {
			pause = action.Duration()
		}
		if i < len(plan.Actions)-1 {
			pause += r.ActionGap
		}
		if err := sleep(ctx, pause); err != nil {
			return r.stop(plan, StateCancelled, err)
		}
	}

	st := r.status.finish(StateCompleted, time.Now())
	r.logger.Info("Mission complete", "mission", plan.MissionName, "succeeded", st.Succeeded, "total", st.Total)
	return st, nil
}

func (r *Runner) stop(plan Plan, state State, cause error) (Status, error) {
	st := r.status.finish(state, time.Now())
	r.logger.Info("Mission stopped", "mission", plan.MissionName, "state", state, "step", st.Step, "error", cause)
	return st, fmt.Errorf("mission %s %s: %w", plan.MissionName, state, cause)
}

// execute admits one action and waits until the control loop has applied it.
func (r *Runner) execute(ctx context.Context, i int, a Action, source string) ActionResult {
	res := ActionResult{Index: i, Kind: string(a.ActionType), At: time.Now()}

	e, err := a.Event(source)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	out, err := r.d.Dispatch(e)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	ticket, err := intake.Ticket(out)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.ApplyTimeout)
	defer cancel()
	outcome, err := ticket.Wait(waitCtx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if outcome.Err != nil {
		res.Error = outcome.Err.Error()
		return res
	}

	res.OK = true
	res.Affected = outcome.Affected
	return res
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarshalPlan encodes a plan for submission through the dispatcher.
func MarshalPlan(p Plan) (json.RawMessage, error) {
	return json.Marshal(p)
}
