// Package publisher hands immutable world snapshots from the control loop to
// any number of concurrent readers.
package publisher

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/auslab/swarm/pkg/core"
)

// ErrUnavailable is returned once the control loop has halted. Readers never
// see the stale snapshot from before the failure.
var ErrUnavailable = errors.New("world state unavailable")

// state is swapped as a whole so a reader sees either a snapshot or a failure.
type state struct {
	snapshot *core.Snapshot
	failure  error
}

// Publisher stores the latest snapshot behind a single atomic pointer.
type Publisher struct {
	current atomic.Pointer[state]
}

// New creates a publisher holding an empty snapshot.
func New() *Publisher {
	p := &Publisher{}
	p.current.Store(&state{snapshot: &core.Snapshot{Agents: []core.AgentSummary{}}})
	return p
}

// Publish replaces the current snapshot. The caller must not mutate s afterwards.
// Publishing after Fail has no effect.
func (p *Publisher) Publish(s *core.Snapshot) {
	for {
		cur := p.current.Load()
		if cur.failure != nil {
			return
		}
		if p.current.CompareAndSwap(cur, &state{snapshot: s}) {
			return
		}
	}
}

// Fail marks world state as unavailable for good.
func (p *Publisher) Fail(cause error) {
	p.current.Store(&state{failure: cause})
}

// Latest returns the most recent snapshot, or an error wrapping ErrUnavailable.
func (p *Publisher) Latest() (*core.Snapshot, error) {
	cur := p.current.Load()
	if cur.failure != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, cur.failure)
	}
	return cur.snapshot, nil
}

// Failure returns the cause passed to Fail, if any.
func (p *Publisher) Failure() error {
	return p.current.Load().failure
}
