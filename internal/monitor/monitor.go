// Package monitor periodically writes a status.json describing the running
// control core, for operators without a metrics stack.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/auslab/swarm/internal/mission"
	"github.com/auslab/swarm/internal/swarm"
	"github.com/auslab/swarm/pkg/core"
)

// StatusFileName is written inside the configured directory.
const StatusFileName = "status.json"

// LoopStats reports control loop progress.
type LoopStats interface {
	Stats() swarm.Stats
}

// QueueLen reports the command queue backlog.
type QueueLen interface {
	Len() int
}

// StateSource is the read side of the state publisher.
type StateSource interface {
	Latest() (*core.Snapshot, error)
}

// MissionStatus reports the current or last mission.
type MissionStatus interface {
	Status() mission.Status
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Loop     LoopStats
	Queue    QueueLen
	State    StateSource   // optional
	Missions MissionStatus // optional
	Dir      string
	Interval time.Duration
	Logger   *slog.Logger
}

// Status is the content of status.json.
type Status struct {
	Time          time.Time `json:"time"`
	Uptime        string    `json:"uptime"`
	Tick          uint64    `json:"tick"`
	SimTime       float64   `json:"simTime"`
	LoopState     string    `json:"loopState"`
	Agents        int       `json:"agents"`
	HealthyAgents int       `json:"healthyAgents"`
	QueueLength   int       `json:"queueLength"`
	Mission       string    `json:"mission,omitempty"`
	MissionState  string    `json:"missionState,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	started   time.Time
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:    deps,
		started: time.Now(),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Path returns the status file location.
func (s *Service) Path() string {
	return filepath.Join(s.deps.Dir, StatusFileName)
}

// GetProgramStatus collects the current status.
func (s *Service) GetProgramStatus() Status {
	stats := s.deps.Loop.Stats()
	st := Status{
		Time:          time.Now().UTC(),
		Uptime:        time.Since(s.started).Truncate(time.Second).String(),
		Tick:          stats.Tick,
		LoopState:     loopState(stats),
		Agents:        stats.Agents,
		HealthyAgents: stats.Healthy,
		QueueLength:   s.deps.Queue.Len(),
	}
	if s.deps.State != nil {
		if snap, err := s.deps.State.Latest(); err == nil {
			st.SimTime = snap.SimTime
		}
	}
	if s.deps.Missions != nil {
		ms := s.deps.Missions.Status()
		st.Mission = ms.MissionName
		st.MissionState = string(ms.State)
	}
	return st
}

func loopState(st swarm.Stats) string {
	switch {
	case st.Failed:
		return "failed"
	case st.Running:
		return "running"
	default:
		return "stopped"
	}
}

// WriteStatus replaces the status file with the current status.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.GetProgramStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := os.MkdirAll(s.deps.Dir, 0755); err != nil {
		return fmt.Errorf("creating status dir: %w", err)
	}

	// write next to the target and rename so readers never see a partial file
	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing status: %w", err)
	}
	return os.Rename(tmp, s.Path())
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "path", s.Path(), "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
