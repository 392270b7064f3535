package mission

import (
	"sync"
	"time"
)

// State is where a plan run stands.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
	StateCancelled State = "cancelled"
)

// ActionResult records how one action went.
type ActionResult struct {
	Index    int       `json:"index"`
	Kind     string    `json:"kind"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Affected []int     `json:"affected,omitempty"`
	At       time.Time `json:"at"`
}

// Status is a copy of the current or last run.
type Status struct {
	MissionName string         `json:"mission_name"`
	State       State          `json:"state"`
	Step        int            `json:"step"`
	Total       int            `json:"total"`
	Succeeded   int            `json:"succeeded"`
	Results     []ActionResult `json:"results"`
	StartedAt   time.Time      `json:"started_at,omitempty"`
	FinishedAt  time.Time      `json:"finished_at,omitempty"`
}

// Context holds the progress of the current plan
type Context struct {
	mu     sync.RWMutex
	status Status
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		status: Status{MissionName: "No mission loaded", State: StateIdle, Results: []ActionResult{}},
	}
}

// Status returns a copy of the current status.
func (mc *Context) Status() Status {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	s := mc.status
	s.Results = append([]ActionResult(nil), mc.status.Results...)
	return s
}

// Running reports whether a plan is in progress.
func (mc *Context) Running() bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.status.State == StateRunning
}

func (mc *Context) begin(p Plan, at time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.status = Status{
		MissionName: p.MissionName,
		State:       StateRunning,
		Total:       len(p.Actions),
		Results:     make([]ActionResult, 0, len(p.Actions)),
		StartedAt:   at,
	}
}

func (mc *Context) record(r ActionResult) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.status.Step = r.Index + 1
	if r.OK {
		mc.status.Succeeded++
	}
	mc.status.Results = append(mc.status.Results, r)
}

func (mc *Context) finish(state State, at time.Time) Status {
	mc.mu.Lock()
	mc.status.State = state
	mc.status.FinishedAt = at
	mc.mu.Unlock()
	return mc.Status()
}
