package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/auslab/swarm/internal/command"
	"github.com/auslab/swarm/internal/dispatcher"
	"github.com/auslab/swarm/internal/mission"
	"github.com/auslab/swarm/internal/picker"
	"github.com/auslab/swarm/internal/storage"
	"github.com/auslab/swarm/pkg/core"
)

const defaultWaitTimeout = 5 * time.Second

type commandResponse struct {
	Status    string    `json:"status"`
	Kind      core.Kind `json:"kind"`
	CommandID string    `json:"command_id"`
	Affected  []int     `json:"affected,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.State.Latest(); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.State.Latest()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &command.ValidationError{Kind: "request", Field: "body", Reason: err.Error()}
	}
	return body, nil
}

// commandHandler admits one command. With ?wait=true the response is sent
// once the control loop has applied it.
func (s *Server) commandHandler(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ticket, err := s.submit(string(kind), body, "http")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		resp := commandResponse{Status: "accepted", Kind: kind, CommandID: ticket.ID.String()}
		wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
		if !wait {
			writeJSON(w, http.StatusAccepted, resp)
			return
		}

		timeout := s.cfg.WaitTimeout
		if timeout <= 0 {
			timeout = defaultWaitTimeout
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		outcome, err := ticket.Wait(ctx)
		if err == nil {
			err = outcome.Err
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Status = "applied"
		resp.Affected = outcome.Affected
		writeJSON(w, http.StatusOK, resp)
	}
}

type pickRequest struct {
	ScreenX    float64          `json:"screen_x"`
	ScreenY    float64          `json:"screen_y"`
	View       *mgl64.Mat4      `json:"view"`
	Projection *mgl64.Mat4      `json:"projection"`
	Viewport   *picker.Viewport `json:"viewport"`
}

// pickResponse carries coords as [x,y,z], or [] when there is no result.
type pickResponse struct {
	HasResult bool       `json:"has_result"`
	Coords    []float64  `json:"coords"`
	Reason    string     `json:"reason,omitempty"`
	At        *time.Time `json:"at,omitempty"`
}

func missed(reason string) pickResponse {
	return pickResponse{Coords: []float64{}, Reason: reason}
}

func hit(p mgl64.Vec3, at *time.Time) pickResponse {
	return pickResponse{HasResult: true, Coords: p[:], At: at}
}

// pick unprojects a screen point onto the ground plane. The matrices come
// from the request when it carries all three, otherwise from the server
// camera. A hit is recorded as the last click.
func (s *Server) pick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, &command.ValidationError{Kind: core.KindClick, Field: "body", Reason: err.Error()})
		return
	}

	var res picker.Result
	switch given := countSet(req.View != nil, req.Projection != nil, req.Viewport != nil); {
	case given == 3:
		res = s.picker.Pick(req.ScreenX, req.ScreenY, *req.View, *req.Projection, *req.Viewport)
	case given > 0:
		s.writeError(w, r, &command.ValidationError{Kind: core.KindClick, Field: "view", Reason: "view, projection and viewport must be given together"})
		return
	case s.deps.Camera != nil:
		res = s.picker.PickFrom(s.deps.Camera, req.ScreenX, req.ScreenY)
	default:
		s.writeError(w, r, &command.ValidationError{Kind: core.KindClick, Field: "view", Reason: "no camera configured"})
		return
	}

	if !res.Hit {
		writeJSON(w, http.StatusOK, missed(res.Miss.String()))
		return
	}

	payload, err := json.Marshal(map[string]mgl64.Vec3{"coords": res.Point})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.submit(string(core.KindClick), payload, "pick"); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hit(res.Point, nil))
}

func countSet(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func (s *Server) lastPick(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.State.Latest()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if snap.LastClick == nil {
		writeJSON(w, http.StatusOK, missed(""))
		return
	}
	click := *snap.LastClick
	writeJSON(w, http.StatusOK, hit(click.Point, &click.At))
}

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.deps.Presets.ListPresets()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presets)
}

func (s *Server) getPreset(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Presets.GetPreset(r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// savePreset stores a named formation after the same checks a formation
// command gets at admission.
func (s *Server) savePreset(w http.ResponseWriter, r *http.Request) {
	var p core.Preset
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&p); err != nil {
		s.writeError(w, r, &command.ValidationError{Kind: core.KindFormation, Field: "body", Reason: err.Error()})
		return
	}
	if err := storage.ValidateName(p.Name); err != nil {
		s.writeError(w, r, &command.ValidationError{Kind: core.KindFormation, Field: "name", Reason: err.Error()})
		return
	}
	if err := s.deps.Limits.Validate(core.Formation{Spec: p.Spec}); err != nil {
		s.writeError(w, r, err)
		return
	}

	p.UpdatedAt = time.Now().UTC()
	if err := s.deps.Presets.SavePreset(p); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("Formation preset saved", "preset", p.Name, "pattern", p.Spec.Pattern)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) deletePreset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Presets.DeletePreset(r.PathValue("name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) missionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Missions.Status().Status())
}

// startMission validates the plan up front and queues it for the runner.
func (s *Server) startMission(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := mission.Decode(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{Kind: mission.Kind, Payload: body, Source: "http"}); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "queued",
		"mission_name": plan.MissionName,
		"actions":      len(plan.Actions),
	})
}

func (s *Server) cancelMission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.deps.Missions.Cancel()})
}
