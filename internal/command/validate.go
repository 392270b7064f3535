package command

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/auslab/swarm/pkg/core"
)

// Limits are the admission ranges for command parameters.
type Limits struct {
	PositionXY   float64 `json:"positionXY" mapstructure:"positionXY"`
	AltitudeMin  float64 `json:"altitudeMin" mapstructure:"altitudeMin"`
	AltitudeMax  float64 `json:"altitudeMax" mapstructure:"altitudeMax"`
	VelocityAxis float64 `json:"velocityAxis" mapstructure:"velocityAxis"`
	YawRate      float64 `json:"yawRate" mapstructure:"yawRate"`
	MaxSpawn     int     `json:"maxSpawn" mapstructure:"maxSpawn"`
	SpacingMin   float64 `json:"spacingMin" mapstructure:"spacingMin"`
	SpacingMax   float64 `json:"spacingMax" mapstructure:"spacingMax"`
	RadiusMin    float64 `json:"radiusMin" mapstructure:"radiusMin"`
	RadiusMax    float64 `json:"radiusMax" mapstructure:"radiusMax"`
}

// DefaultLimits returns the standard operational envelope.
func DefaultLimits() Limits {
	return Limits{
		PositionXY:   10,
		AltitudeMin:  0.1,
		AltitudeMax:  5,
		VelocityAxis: 5,
		YawRate:      math.Pi,
		MaxSpawn:     50,
		SpacingMin:   0.5,
		SpacingMax:   3,
		RadiusMin:    0.5,
		RadiusMax:    5,
	}
}

// within is false for NaN.
func within(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate checks the structure and ranges of cmd. It does not look at
// which agents exist.
func (l Limits) Validate(cmd core.Command) error {
	switch c := cmd.(type) {
	case core.Spawn:
		if c.Count < 1 || c.Count > l.MaxSpawn {
			return invalid(c.Kind(), "num", "must be between 1 and %d, got %d", l.MaxSpawn, c.Count)
		}
	case core.Takeoff:
		if err := validateTargets(c.Kind(), c.Targets); err != nil {
			return err
		}
		if !within(c.Altitude, l.AltitudeMin, l.AltitudeMax) {
			return invalid(c.Kind(), "altitude", "must be between %.1f and %.1f, got %v", l.AltitudeMin, l.AltitudeMax, c.Altitude)
		}
	case core.Land:
		return validateTargets(c.Kind(), c.Targets)
	case core.Hover:
		return validateTargets(c.Kind(), c.Targets)
	case core.Goto:
		if c.ID < 0 {
			return invalid(c.Kind(), "id", "must be non-negative, got %d", c.ID)
		}
		if err := l.validatePosition(c.Kind(), "", c.Position); err != nil {
			return err
		}
		if !finite(c.Yaw) {
			return invalid(c.Kind(), "yaw", "must be finite")
		}
	case core.Velocity:
		if c.ID < 0 {
			return invalid(c.Kind(), "id", "must be non-negative, got %d", c.ID)
		}
		for i, name := range []string{"vx", "vy", "vz"} {
			if !within(c.Velocity[i], -l.VelocityAxis, l.VelocityAxis) {
				return invalid(c.Kind(), name, "must be within ±%.1f m/s, got %v", l.VelocityAxis, c.Velocity[i])
			}
		}
		if !within(c.YawRate, -l.YawRate, l.YawRate) {
			return invalid(c.Kind(), "yaw_rate", "must be within ±%.4f rad/s, got %v", l.YawRate, c.YawRate)
		}
	case core.Formation:
		return l.validateFormation(c.Kind(), c.Spec)
	case core.Reset:
	case core.Click:
		for i := range c.Point {
			if !finite(c.Point[i]) {
				return invalid(c.Kind(), "coords", "must be finite")
			}
		}
	default:
		return &ValidationError{Kind: "unknown", Reason: "unsupported command"}
	}
	return nil
}

func (l Limits) validatePosition(kind core.Kind, prefix string, p mgl64.Vec3) error {
	if !within(p[0], -l.PositionXY, l.PositionXY) {
		return invalid(kind, prefix+"x", "must be within ±%.1f, got %v", l.PositionXY, p[0])
	}
	if !within(p[1], -l.PositionXY, l.PositionXY) {
		return invalid(kind, prefix+"y", "must be within ±%.1f, got %v", l.PositionXY, p[1])
	}
	if !within(p[2], l.AltitudeMin, l.AltitudeMax) {
		return invalid(kind, prefix+"z", "must be between %.1f and %.1f, got %v", l.AltitudeMin, l.AltitudeMax, p[2])
	}
	return nil
}

func (l Limits) validateFormation(kind core.Kind, spec core.FormationSpec) error {
	if err := l.validatePosition(kind, "center.", spec.Center); err != nil {
		return err
	}

	spacing := func() error {
		if !within(spec.Spacing, l.SpacingMin, l.SpacingMax) {
			return invalid(kind, "spacing", "must be between %.1f and %.1f, got %v", l.SpacingMin, l.SpacingMax, spec.Spacing)
		}
		return nil
	}

	switch spec.Pattern {
	case core.PatternLine:
		if spec.Axis != core.AxisX && spec.Axis != core.AxisY {
			return invalid(kind, "axis", "must be x or y, got %q", spec.Axis)
		}
		return spacing()
	case core.PatternGrid:
		return spacing()
	case core.PatternV:
		if !within(spec.Angle, 0, math.Pi/2) {
			return invalid(kind, "angle", "must be between 0 and π/2, got %v", spec.Angle)
		}
		return spacing()
	case core.PatternCircle:
		if !within(spec.Radius, l.RadiusMin, l.RadiusMax) {
			return invalid(kind, "radius", "must be between %.1f and %.1f, got %v", l.RadiusMin, l.RadiusMax, spec.Radius)
		}
	default:
		return invalid(kind, "pattern", "unknown pattern %q", spec.Pattern)
	}
	return nil
}

func validateTargets(kind core.Kind, t core.Targets) error {
	if t.All {
		return nil
	}
	if len(t.IDs) == 0 {
		return invalid(kind, "ids", "must be [\"all\"] or a non-empty list of ids")
	}
	for _, id := range t.IDs {
		if id < 0 {
			return invalid(kind, "ids", "must be non-negative, got %d", id)
		}
	}
	return nil
}
