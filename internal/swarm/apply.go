package swarm

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/auslab/swarm/internal/command"
	"github.com/auslab/swarm/internal/controller"
	"github.com/auslab/swarm/internal/formation"
	"github.com/auslab/swarm/pkg/core"
)

// apply executes one command against the store. It returns the ids it acted
// on. Unknown ids produce an *UnknownTargetError while known ids in the same
// command are still applied.
func (l *Loop) apply(cmd core.Command) ([]int, error) {
	switch c := cmd.(type) {
	case core.Spawn:
		if err := l.respawn(c.Count); err != nil {
			return nil, err
		}
		return l.store.ids(), nil

	case core.Reset:
		if err := l.respawn(l.store.len()); err != nil {
			return nil, err
		}
		return l.store.ids(), nil

	case core.Takeoff:
		return l.each(c.Kind(), c.Targets, func(a *agent) {
			p := a.pose.Position
			goal := l.cfg.Bounds.Clamp(mgl64.Vec3{p[0], p[1], c.Altitude})
			a.setTarget(controller.OnEvent(controller.EventTakeoff), controller.PositionTarget(goal, a.pose.Yaw))
		})

	case core.Land:
		return l.each(c.Kind(), c.Targets, func(a *agent) {
			a.setTarget(controller.OnEvent(controller.EventLand), controller.LandTarget(a.pose.Position, a.pose.Yaw))
		})

	case core.Hover:
		return l.each(c.Kind(), c.Targets, func(a *agent) {
			a.setTarget(controller.OnEvent(controller.EventHover), controller.PositionTarget(a.pose.Position, a.pose.Yaw))
		})

	case core.Goto:
		a, ok := l.store.get(c.ID)
		if !ok {
			return nil, &command.UnknownTargetError{Kind: c.Kind(), IDs: []int{c.ID}}
		}
		goal := l.cfg.Bounds.Clamp(c.Position)
		a.setTarget(controller.OnEvent(controller.EventGoto), controller.PositionTarget(goal, controller.WrapAngle(c.Yaw)))
		return []int{a.id}, nil

	case core.Velocity:
		a, ok := l.store.get(c.ID)
		if !ok {
			return nil, &command.UnknownTargetError{Kind: c.Kind(), IDs: []int{c.ID}}
		}
		a.setTarget(controller.OnEvent(controller.EventVelocity), controller.VelocityTarget(c.Velocity, c.YawRate))
		return []int{a.id}, nil

	case core.Formation:
		slots, err := formation.Plan(c.Spec, l.store.len())
		if err != nil {
			return nil, fmt.Errorf("planning %s formation: %w", c.Spec.Pattern, err)
		}
		// Slots are assigned in ascending id order on every call.
		for i, a := range l.store.agents {
			a.setTarget(controller.OnEvent(controller.EventGoto), controller.PositionTarget(l.cfg.Bounds.Clamp(slots[i]), a.pose.Yaw))
		}
		return l.store.ids(), nil

	case core.Click:
		l.lastClick = &core.ClickPoint{Point: c.Point, At: time.Now().UTC()}
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
}

// each applies fn to every agent selected by t.
func (l *Loop) each(kind core.Kind, t core.Targets, fn func(*agent)) ([]int, error) {
	found, unknown := l.store.resolve(t)
	ids := make([]int, 0, len(found))
	for _, a := range found {
		fn(a)
		ids = append(ids, a.id)
	}
	if len(unknown) > 0 {
		return ids, &command.UnknownTargetError{Kind: kind, IDs: unknown}
	}
	return ids, nil
}

// respawn replaces the store and the engine bodies with n fresh idle agents.
func (l *Loop) respawn(n int) error {
	s := newStore(n, l.cfg)
	if err := l.engine.Reset(s.poses()); err != nil {
		return asEngineError("reset", err)
	}
	l.store = s
	l.logger.Info("Swarm spawned", "agents", n)
	return nil
}
