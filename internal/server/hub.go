package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/metric"

	"github.com/auslab/swarm/internal/command"
	"github.com/auslab/swarm/pkg/core"
	"github.com/auslab/swarm/pkg/streaming"
)

const (
	sendChSize       = 256
	writeWait        = 10 * time.Second
	pongWait         = 30 * time.Second
	pingInterval     = pongWait * 9 / 10
	maxMessageSize   = 64 << 10
	defaultBroadcast = 50 * time.Millisecond
)

// SubmitFunc admits a command of the given kind.
type SubmitFunc func(kind string, payload json.RawMessage, source string) (command.Ticket, error)

// Hub pushes snapshots to WebSocket clients and accepts commands from them.
type Hub struct {
	state    StateSource
	submit   SubmitFunc
	interval time.Duration
	logger   *slog.Logger
	upgrader ws.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	nextID      atomic.Uint64
	unavailable atomic.Bool
}

// NewHub creates a hub broadcasting every interval.
func NewHub(state StateSource, submit SubmitFunc, interval time.Duration, logger *slog.Logger) (*Hub, error) {
	if interval <= 0 {
		interval = defaultBroadcast
	}
	h := &Hub{
		state:    state,
		submit:   submit,
		interval: interval,
		logger:   logger,
		upgrader: ws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}

	gauge, err := meter().Int64ObservableGauge(
		"server.ws.clients",
		metric.WithDescription("Connected WebSocket clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating client gauge: %w", err)
	}
	_, err = meter().RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, int64(h.Len()))
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("registering client gauge callback: %w", err)
	}
	return h, nil
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and serves the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := newClient(h.nextID.Add(1), conn, h.logger)
	if !h.add(c) {
		_ = c.close()
		return
	}
	defer func() {
		h.remove(c)
		_ = c.close()
	}()

	h.logger.Info("WebSocket client connected", "client", c.id, "remote", conn.RemoteAddr().String())
	go c.writeLoop()

	// initial snapshot so the client does not wait a full interval
	if data, err := h.stateMessage(); err == nil {
		c.send(data)
	}
	h.readLoop(c)
	h.logger.Info("WebSocket client disconnected", "client", c.id)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Run broadcasts the latest snapshot every interval until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Broadcast()
		}
	}
}

// Broadcast sends the latest snapshot to every subscribed client. Once
// state becomes unavailable a single error message is sent instead.
func (h *Hub) Broadcast() {
	data, err := h.stateMessage()
	if err != nil {
		if h.unavailable.Swap(true) {
			return
		}
		data, err = json.Marshal(streaming.ErrorMessage{Type: streaming.TypeError, Status: statusFor(err), Error: err.Error()})
		if err != nil {
			return
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.subscribed.Load() {
			c.send(data)
		}
	}
}

func (h *Hub) stateMessage() ([]byte, error) {
	snap, err := h.state.Latest()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal state payload: %w", err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: streaming.TypeState, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal state envelope: %w", err)
	}
	return data, nil
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.close()
	}
}

// readLoop handles client messages until the connection fails.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				h.logger.Warn("WebSocket read error", "client", c.id, "error", err)
			}
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.reply(streaming.ErrorMessage{Type: streaming.TypeError, Status: http.StatusBadRequest, Error: "malformed message"})
			continue
		}

		switch env.Type {
		case streaming.TypeCommand:
			h.handleCommand(c, env)
		case streaming.TypeSubscribe:
			var sub streaming.SubscribePayload
			if err := json.Unmarshal(env.Payload, &sub); err != nil {
				c.reply(streaming.ErrorMessage{Type: streaming.TypeError, For: env.ID, Status: http.StatusBadRequest, Error: err.Error()})
				continue
			}
			c.subscribed.Store(sub.State)
			c.reply(streaming.AckMessage{Type: streaming.TypeAck, For: env.ID, Kind: streaming.TypeSubscribe})
		default:
			c.reply(streaming.ErrorMessage{Type: streaming.TypeError, For: env.ID, Status: http.StatusBadRequest, Error: fmt.Sprintf("unknown message type %q", env.Type)})
		}
	}
}

// handleCommand admits one command message. Only control-loop kinds are
// accepted here; mission plans go through POST /mission.
func (h *Hub) handleCommand(c *client, env streaming.Envelope) {
	if !slices.Contains(core.Kinds, core.Kind(env.Kind)) {
		err := &command.ValidationError{Kind: core.Kind(env.Kind), Field: "kind", Reason: "not a command kind"}
		c.reply(streaming.ErrorMessage{Type: streaming.TypeError, For: env.ID, Status: statusFor(err), Error: err.Error()})
		return
	}
	ticket, err := h.submit(env.Kind, env.Payload, fmt.Sprintf("ws:%d", c.id))
	if err != nil {
		c.reply(streaming.ErrorMessage{Type: streaming.TypeError, For: env.ID, Status: statusFor(err), Error: err.Error()})
		return
	}
	c.reply(streaming.AckMessage{Type: streaming.TypeAck, For: env.ID, Kind: env.Kind, CommandID: ticket.ID.String()})
}

// client is one WebSocket connection with a single write goroutine.
type client struct {
	id     uint64
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger

	subscribed atomic.Bool
}

func newClient(id uint64, conn *ws.Conn, logger *slog.Logger) *client {
	c := &client{
		id:     id,
		conn:   conn,
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	c.subscribed.Store(true)
	return c
}

// writeLoop drains sendCh and pings the client. It is the only writer.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := c.write(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "client", c.id, "error", err)
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(ws.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (c *client) write(kind int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, data)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *client) send(data []byte) {
	select {
	case <-c.done:
	case c.sendCh <- data:
	default:
		c.logger.Debug("WebSocket send channel full, dropping message", "client", c.id)
	}
}

func (c *client) reply(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode reply", "client", c.id, "error", err)
		return
	}
	c.send(data)
}

// close sends a close frame and stops the write loop.
func (c *client) close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		err = c.conn.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}
