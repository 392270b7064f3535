package swarm

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/auslab/swarm/internal/controller"
	"github.com/auslab/swarm/internal/formation"
	"github.com/auslab/swarm/pkg/core"
)

// FullEnergy is the energy of a freshly spawned agent.
const FullEnergy = 100.0

type agent struct {
	id      int
	pose    core.Pose
	mode    core.Mode
	target  controller.Target
	flight  *controller.Flight
	energy  float64
	healthy bool
}

// setTarget switches mode and target and clears controller history.
func (a *agent) setTarget(mode core.Mode, t controller.Target) {
	a.mode = mode
	a.target = t
	a.flight.Reset()
}

func (a *agent) idle() {
	a.setTarget(core.ModeIdle, controller.Target{})
}

// store is the set of live agents, ordered by id. Ids are 0..n-1.
type store struct {
	agents []*agent
}

func (s *store) len() int {
	return len(s.agents)
}

func (s *store) get(id int) (*agent, bool) {
	if id < 0 || id >= len(s.agents) {
		return nil, false
	}
	return s.agents[id], true
}

// resolve splits a selector into live agents and unknown ids.
func (s *store) resolve(t core.Targets) (found []*agent, unknown []int) {
	if t.All {
		return s.agents, nil
	}
	seen := make(map[int]bool, len(t.IDs))
	for _, id := range t.IDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if a, ok := s.get(id); ok {
			found = append(found, a)
		} else {
			unknown = append(unknown, id)
		}
	}
	return found, unknown
}

func (s *store) poses() []core.Pose {
	out := make([]core.Pose, len(s.agents))
	for i, a := range s.agents {
		out[i] = a.pose
	}
	return out
}

func (s *store) ids() []int {
	out := make([]int, len(s.agents))
	for i, a := range s.agents {
		out[i] = a.id
	}
	return out
}

// spawnLayout places n agents on a centered grid at the spawn altitude.
func spawnLayout(n int, spacing, altitude float64) []mgl64.Vec3 {
	slots, err := formation.Plan(core.FormationSpec{
		Pattern: core.PatternGrid,
		Center:  mgl64.Vec3{0, 0, altitude},
		Spacing: spacing,
	}, n)
	if err != nil {
		// Grid plans only fail for negative n.
		return nil
	}
	return slots
}

func newStore(n int, cfg Config) *store {
	s := &store{agents: make([]*agent, n)}
	for i, p := range spawnLayout(n, cfg.SpawnSpacing, cfg.SpawnAltitude) {
		s.agents[i] = &agent{
			id:      i,
			pose:    core.Pose{Position: cfg.Bounds.Clamp(p)},
			mode:    core.ModeIdle,
			flight:  controller.NewFlight(cfg.Controller),
			energy:  FullEnergy,
			healthy: true,
		}
	}
	return s
}
