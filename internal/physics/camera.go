package physics

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/auslab/swarm/internal/picker"
)

// CameraConfig places the observer camera.
type CameraConfig struct {
	Eye    [3]float64 `json:"eye" mapstructure:"eye"`
	Target [3]float64 `json:"target" mapstructure:"target"`
	Up     [3]float64 `json:"up" mapstructure:"up"`
	FovY   float64    `json:"fovY" mapstructure:"fovY"` // degrees
	Near   float64    `json:"near" mapstructure:"near"`
	Far    float64    `json:"far" mapstructure:"far"`
	Width  float64    `json:"width" mapstructure:"width"`
	Height float64    `json:"height" mapstructure:"height"`
}

// DefaultCameraConfig looks at the origin from behind and above.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Eye:    [3]float64{-6, -6, 6},
		Target: [3]float64{0, 0, 0},
		Up:     [3]float64{0, 0, 1},
		FovY:   60,
		Near:   0.1,
		Far:    100,
		Width:  1280,
		Height: 720,
	}
}

// FixedCamera is a camera whose placement only changes through Set.
// It is safe for concurrent use.
type FixedCamera struct {
	mu   sync.RWMutex
	view mgl64.Mat4
	proj mgl64.Mat4
	vp   picker.Viewport
}

// NewFixedCamera builds view and projection matrices from cfg.
func NewFixedCamera(cfg CameraConfig) *FixedCamera {
	c := &FixedCamera{}
	c.Set(cfg)
	return c
}

// Set replaces the camera placement.
func (c *FixedCamera) Set(cfg CameraConfig) {
	view := mgl64.LookAtV(mgl64.Vec3(cfg.Eye), mgl64.Vec3(cfg.Target), mgl64.Vec3(cfg.Up))
	proj := mgl64.Perspective(mgl64.DegToRad(cfg.FovY), cfg.Width/cfg.Height, cfg.Near, cfg.Far)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = view
	c.proj = proj
	c.vp = picker.Viewport{Width: cfg.Width, Height: cfg.Height}
}

func (c *FixedCamera) ViewMatrix() mgl64.Mat4 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

func (c *FixedCamera) ProjectionMatrix() mgl64.Mat4 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.proj
}

func (c *FixedCamera) Viewport() picker.Viewport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vp
}
