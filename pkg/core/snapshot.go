// pkg/core/snapshot.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// GeoPosition is an agent position in WGS84.
type GeoPosition struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// AgentSummary is the read-only view of one agent inside a Snapshot.
type AgentSummary struct {
	ID       int          `json:"id"`
	Position mgl64.Vec3   `json:"pos"`
	Velocity mgl64.Vec3   `json:"vel"`
	Yaw      float64      `json:"yaw"`
	Energy   float64      `json:"battery"`
	Healthy  bool         `json:"healthy"`
	Mode     Mode         `json:"mode"`
	Geo      *GeoPosition `json:"geo,omitempty"`
}

// ClickPoint is the most recent world point produced by the picker.
type ClickPoint struct {
	Point mgl64.Vec3 `json:"coords"`
	At    time.Time  `json:"at"`
}

// Snapshot is an immutable copy of world state taken at the end of a tick.
type Snapshot struct {
	Tick      uint64         `json:"tick"`
	SimTime   float64        `json:"sim_time"`
	Timestamp time.Time      `json:"timestamp"`
	Agents    []AgentSummary `json:"drones"`
	LastClick *ClickPoint    `json:"last_click,omitempty"`
}

// Agent looks up an agent by id.
func (s *Snapshot) Agent(id int) (AgentSummary, bool) {
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentSummary{}, false
}

// IDs returns agent ids in snapshot order.
func (s *Snapshot) IDs() []int {
	ids := make([]int, len(s.Agents))
	for i, a := range s.Agents {
		ids[i] = a.ID
	}
	return ids
}

// HealthyCount returns how many agents are healthy.
func (s *Snapshot) HealthyCount() int {
	n := 0
	for _, a := range s.Agents {
		if a.Healthy {
			n++
		}
	}
	return n
}
