// Package dispatcher routes producer requests to the handler registered for
// their kind. HTTP, WebSocket and mission plans all submit through it.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/auslab/swarm/internal/command"
	"github.com/auslab/swarm/pkg/core"
)

// ErrBusy is returned by buffered handlers whose queue is full.
var ErrBusy = errors.New("handler busy")

// Event is a request from a producer: HTTP, WebSocket or a mission plan.
type Event struct {
	Kind      string
	Payload   json.RawMessage
	Source    string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*route)

// Buffered runs the handler on its own goroutine behind a queue of size
// events. Dispatch returns "queued" at once, or ErrBusy when the queue is full.
func Buffered(size int) Option {
	return func(r *route) { r.bufferSize = size }
}

// Logged adds debug logging around the handler.
func Logged() Option {
	return func(r *route) { r.logged = true }
}

type route struct {
	handle     HandlerFunc
	bufferSize int
	logged     bool
	buffer     chan Event
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[string]*route
	logger Logger
	m      *metrics
}

// New creates a dispatcher. Metrics go to the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		routes: make(map[string]*route),
		logger: logger,
	}
	m, err := newMetrics(d.bufferLengths)
	if err != nil {
		return nil, err
	}
	d.m = m
	return d, nil
}

// Register installs h for kind, replacing any previous handler.
func (d *Dispatcher) Register(kind string, h HandlerFunc, opts ...Option) {
	r := &route{handle: h}
	for _, opt := range opts {
		opt(r)
	}

	if r.logged {
		r.handle = d.logged(kind, r.handle)
	}
	if r.bufferSize > 0 {
		r.buffer = make(chan Event, r.bufferSize)
		go d.drain(kind, r.buffer, r.handle)
		r.handle = enqueue(kind, r.buffer)
	}

	d.mu.Lock()
	d.routes[kind] = r
	d.mu.Unlock()
}

// Dispatch runs the handler for e.Kind. An unknown kind is a
// *command.ValidationError.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	kindAttr := metric.WithAttributes(attribute.String("kind", e.Kind))

	d.mu.RLock()
	r := d.routes[e.Kind]
	d.mu.RUnlock()

	if r == nil {
		d.m.rejected.Add(context.Background(), 1, kindAttr)
		return nil, &command.ValidationError{Kind: core.Kind(e.Kind), Reason: "unknown command kind"}
	}

	result, err := r.handle(e)
	if err != nil {
		d.m.rejected.Add(context.Background(), 1, kindAttr)
	} else {
		d.m.processed.Add(context.Background(), 1, kindAttr)
	}
	return result, err
}

// HasHandler reports whether kind is registered.
func (d *Dispatcher) HasHandler(kind string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.routes[kind] != nil
}

// Kinds returns the registered kinds in sorted order.
func (d *Dispatcher) Kinds() []string {
	d.mu.RLock()
	kinds := make([]string, 0, len(d.routes))
	for k := range d.routes {
		kinds = append(kinds, k)
	}
	d.mu.RUnlock()
	slices.Sort(kinds)
	return kinds
}

func (d *Dispatcher) bufferLengths() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int)
	for kind, r := range d.routes {
		if r.buffer != nil {
			out[kind] = len(r.buffer)
		}
	}
	return out
}

func enqueue(kind string, buffer chan<- Event) HandlerFunc {
	return func(e Event) (any, error) {
		select {
		case buffer <- e:
			return "queued", nil
		default:
			return nil, fmt.Errorf("%w: %s", ErrBusy, kind)
		}
	}
}

func (d *Dispatcher) drain(kind string, buffer <-chan Event, h HandlerFunc) {
	for e := range buffer {
		if _, err := h(e); err != nil {
			d.logger.Error("Buffered event failed", "kind", kind, "source", e.Source, "error", err)
		}
	}
}

func (d *Dispatcher) logged(kind string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		d.logger.Debug("Dispatching", "kind", kind, "source", e.Source, "bytes", len(e.Payload))
		start := time.Now()
		result, err := h(e)
		took := time.Since(start)
		if err != nil {
			d.logger.Error("Dispatch failed", "kind", kind, "source", e.Source, "took", took, "error", err)
			return result, err
		}
		d.logger.Debug("Dispatched", "kind", kind, "took", took)
		return result, nil
	}
}
