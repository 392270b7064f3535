package swarm

import (
	"github.com/auslab/swarm/internal/controller"
	"github.com/auslab/swarm/pkg/core"
)

// Config holds control loop settings.
type Config struct {
	ControlHz            int               `json:"controlHz" mapstructure:"controlHz"`
	InitialCount         int               `json:"initialCount" mapstructure:"initialCount"`
	SpawnSpacing         float64           `json:"spawnSpacing" mapstructure:"spawnSpacing"`
	SpawnAltitude        float64           `json:"spawnAltitude" mapstructure:"spawnAltitude"`
	EnergyDrainPerSecond float64           `json:"energyDrainPerSecond" mapstructure:"energyDrainPerSecond"`
	Bounds               core.Bounds       `json:"bounds" mapstructure:"bounds"`
	Controller           controller.Config `json:"controller" mapstructure:"controller"`
}

// DefaultConfig returns a 60 Hz loop spawning five agents.
func DefaultConfig() Config {
	return Config{
		ControlHz:            60,
		InitialCount:         5,
		SpawnSpacing:         0.5,
		SpawnAltitude:        0.1,
		EnergyDrainPerSecond: 0.5 / 60,
		Bounds:               core.DefaultBounds(),
		Controller:           controller.DefaultConfig(),
	}
}

func (c Config) dt() float64 {
	return 1 / float64(c.ControlHz)
}
