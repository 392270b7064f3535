// Package api is an HTTP client for the swarm control daemon.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/auslab/swarm/internal/mission"
	"github.com/auslab/swarm/internal/picker"
	"github.com/auslab/swarm/pkg/core"
)

// Client talks to a running swarmd.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Error is a non-2xx response from the daemon.
type Error struct {
	StatusCode int
	Message    string `json:"error"`
	Field      string `json:"field,omitempty"`
	IDs        []int  `json:"ids,omitempty"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("swarmd returned %d: %s", e.StatusCode, e.Message)
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	return msg
}

// CommandResult is the response to an admitted command.
type CommandResult struct {
	Status    string    `json:"status"`
	Kind      core.Kind `json:"kind"`
	CommandID string    `json:"command_id"`
	Affected  []int     `json:"affected,omitempty"`
}

// PickRequest asks the daemon to resolve a screen point. Without matrices
// the daemon's own camera is used.
type PickRequest struct {
	ScreenX    float64          `json:"screen_x"`
	ScreenY    float64          `json:"screen_y"`
	View       *mgl64.Mat4      `json:"view,omitempty"`
	Projection *mgl64.Mat4      `json:"projection,omitempty"`
	Viewport   *picker.Viewport `json:"viewport,omitempty"`
}

// PickResult is a resolved or missed pick. Coords is empty on a miss.
type PickResult struct {
	HasResult bool       `json:"has_result"`
	Coords    []float64  `json:"coords"`
	Reason    string     `json:"reason,omitempty"`
	At        *time.Time `json:"at,omitempty"`
}

// Point returns the picked world point when there is one.
func (r PickResult) Point() (mgl64.Vec3, bool) {
	if !r.HasResult || len(r.Coords) != 3 {
		return mgl64.Vec3{}, false
	}
	return mgl64.Vec3{r.Coords[0], r.Coords[1], r.Coords[2]}, true
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks that the daemon is serving state.
func (c *Client) Healthcheck() error {
	return c.do(http.MethodGet, "/health", nil, nil)
}

// State returns the latest snapshot.
func (c *Client) State() (*core.Snapshot, error) {
	var s core.Snapshot
	if err := c.do(http.MethodGet, "/state", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Command submits one command. body is encoded as JSON; nil sends "{}".
// With wait the call returns once the control loop has applied it.
func (c *Client) Command(kind core.Kind, body any, wait bool) (CommandResult, error) {
	path := "/" + url.PathEscape(string(kind))
	if wait {
		path += "?wait=true"
	}
	if body == nil {
		body = struct{}{}
	}
	var res CommandResult
	err := c.do(http.MethodPost, path, body, &res)
	return res, err
}

// Pick resolves a screen point to a ground coordinate.
func (c *Client) Pick(req PickRequest) (PickResult, error) {
	var res PickResult
	err := c.do(http.MethodPost, "/pick", req, &res)
	return res, err
}

// LastPick returns the most recent click seen by the control loop.
func (c *Client) LastPick() (PickResult, error) {
	var res PickResult
	err := c.do(http.MethodGet, "/pick", nil, &res)
	return res, err
}

// ListPresets returns stored formation presets.
func (c *Client) ListPresets() ([]core.Preset, error) {
	var out []core.Preset
	err := c.do(http.MethodGet, "/formations", nil, &out)
	return out, err
}

// SavePreset stores a formation preset.
func (c *Client) SavePreset(p core.Preset) error {
	return c.do(http.MethodPost, "/formations", p, nil)
}

// DeletePreset removes a formation preset.
func (c *Client) DeletePreset(name string) error {
	return c.do(http.MethodDelete, "/formations/"+url.PathEscape(name), nil, nil)
}

// RunMission queues a mission plan.
func (c *Client) RunMission(plan mission.Plan) error {
	return c.do(http.MethodPost, "/mission", plan, nil)
}

// MissionStatus returns the current or last mission's progress.
func (c *Client) MissionStatus() (mission.Status, error) {
	var st mission.Status
	err := c.do(http.MethodGet, "/mission", nil, &st)
	return st, err
}

// CancelMission stops the running mission, reporting whether one was running.
func (c *Client) CancelMission() (bool, error) {
	var res struct {
		Cancelled bool `json:"cancelled"`
	}
	err := c.do(http.MethodDelete, "/mission", nil, &res)
	return res.Cancelled, err
}

func (c *Client) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
