package publisher

import (
	"errors"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auslab/swarm/pkg/core"
)

func TestPublisher_InitialSnapshot(t *testing.T) {
	p := New()

	s, err := p.Latest()
	require.NoError(t, err)
	assert.Zero(t, s.Tick)
	assert.Empty(t, s.Agents)
	assert.NoError(t, p.Failure())
}

func TestPublisher_PublishAndFail(t *testing.T) {
	p := New()
	p.Publish(&core.Snapshot{Tick: 7})

	s, err := p.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), s.Tick)

	cause := errors.New("solver exploded")
	p.Fail(cause)

	_, err = p.Latest()
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "solver exploded")
	assert.Equal(t, cause, p.Failure())

	// No resurrection once failed.
	p.Publish(&core.Snapshot{Tick: 8})
	_, err = p.Latest()
	assert.ErrorIs(t, err, ErrUnavailable)
}

// Every snapshot is written with all agents at x == tick; a torn read would
// show mixed values.
func TestPublisher_NoTornReads(t *testing.T) {
	const agents = 16
	const ticks = 2000

	p := New()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for {
				select {
				case <-stop:
					return
				default:
				}
				s, err := p.Latest()
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if s.Tick < last {
					t.Errorf("tick went backwards: %d after %d", s.Tick, last)
					return
				}
				last = s.Tick
				for _, a := range s.Agents {
					if a.Position[0] != float64(s.Tick) {
						t.Errorf("torn snapshot at tick %d: agent %d x=%v", s.Tick, a.ID, a.Position[0])
						return
					}
				}
			}
		}()
	}

	for tick := uint64(1); tick <= ticks; tick++ {
		summaries := make([]core.AgentSummary, agents)
		for i := range summaries {
			summaries[i] = core.AgentSummary{ID: i, Position: mgl64.Vec3{float64(tick), 0, 1}}
		}
		p.Publish(&core.Snapshot{Tick: tick, Agents: summaries})
	}
	close(stop)
	wg.Wait()

	s, err := p.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(ticks), s.Tick)
}
