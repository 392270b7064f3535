package controller

import "github.com/go-gl/mathgl/mgl64"

// Gains are the proportional, integral and derivative coefficients of one loop.
type Gains struct {
	Kp float64 `json:"kp" mapstructure:"kp"`
	Ki float64 `json:"ki" mapstructure:"ki"`
	Kd float64 `json:"kd" mapstructure:"kd"`
}

// PID is a single-axis controller with a clamped integral.
type PID struct {
	Gains
	IntegralLimit float64

	integral  float64
	prevError float64
	primed    bool
}

// Update advances the controller by dt with the current error. When frozen
// the integral is not accumulated and the derivative contributes nothing.
// The first update after a reset has no derivative term.
func (p *PID) Update(err, dt float64, frozen bool) float64 {
	var deriv float64
	if !frozen && dt > 0 {
		p.integral = mgl64.Clamp(p.integral+err*dt, -p.IntegralLimit, p.IntegralLimit)
		if p.primed {
			deriv = (err - p.prevError) / dt
		}
	}
	p.prevError = err
	p.primed = true

	return p.Kp*err + p.Ki*p.integral + p.Kd*deriv
}

// Integral returns the accumulated integral term.
func (p *PID) Integral() float64 {
	return p.integral
}

// Reset clears accumulated state.
func (p *PID) Reset() {
	p.integral = 0
	p.prevError = 0
	p.primed = false
}
