package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/auslab/swarm/internal/queue"
	"github.com/auslab/swarm/pkg/core"
)

// Outcome is what the control loop reports back after applying a command.
type Outcome struct {
	CommandID uuid.UUID
	Kind      core.Kind
	Affected  []int
	Err       error
}

// Envelope is an admitted command waiting for the control loop.
type Envelope struct {
	ID       uuid.UUID
	Source   string
	Admitted time.Time
	Command  core.Command

	reply chan Outcome
}

// Resolve delivers the outcome to whoever holds the ticket. It never blocks.
func (e Envelope) Resolve(o Outcome) {
	if e.reply == nil {
		return
	}
	o.CommandID = e.ID
	o.Kind = e.Command.Kind()
	select {
	case e.reply <- o:
	default:
	}
}

// Ticket identifies an accepted command and lets the producer wait for its outcome.
type Ticket struct {
	ID   uuid.UUID
	Kind core.Kind
	done <-chan Outcome
}

// Wait blocks until the loop has applied the command or ctx ends.
func (t Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case o := <-t.done:
		return o, nil
	case <-ctx.Done():
		return Outcome{}, fmt.Errorf("waiting for %s %s: %w", t.Kind, t.ID, ctx.Err())
	}
}

// Queue validates commands at admission and hands them to the control loop
// in arrival order.
type Queue struct {
	items  *queue.Queue[Envelope]
	limits Limits

	enqueued metric.Int64Counter
	rejected metric.Int64Counter
}

// NewQueue creates a command queue. A capacity of 0 means unbounded.
func NewQueue(capacity int, limits Limits) (*Queue, error) {
	q := &Queue{
		items:  queue.New[Envelope](capacity),
		limits: limits,
	}

	m := meter()

	depth, err := m.Int64ObservableGauge(
		"command.queue.depth",
		metric.WithDescription("Commands admitted but not yet drained"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue depth gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		o.ObserveInt64(depth, int64(q.items.Len()))
		return nil
	}, depth)
	if err != nil {
		return nil, fmt.Errorf("registering queue depth callback: %w", err)
	}

	q.enqueued, err = m.Int64Counter(
		"command.enqueued",
		metric.WithDescription("Commands accepted at admission"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating enqueued counter: %w", err)
	}

	q.rejected, err = m.Int64Counter(
		"command.rejected",
		metric.WithDescription("Commands rejected at admission"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	return q, nil
}

// Limits returns the admission limits in force.
func (q *Queue) Limits() Limits {
	return q.limits
}

// Enqueue validates cmd and appends it. Validation runs before the lock is
// taken; a rejected command is never enqueued.
func (q *Queue) Enqueue(source string, cmd core.Command) (Ticket, error) {
	if cmd == nil {
		return Ticket{}, &ValidationError{Kind: "unknown", Reason: "nil command"}
	}
	attrs := metric.WithAttributes(attribute.String("kind", string(cmd.Kind())))

	if err := q.limits.Validate(cmd); err != nil {
		q.rejected.Add(context.Background(), 1, attrs)
		return Ticket{}, err
	}

	reply := make(chan Outcome, 1)
	env := Envelope{
		ID:       uuid.New(),
		Source:   source,
		Admitted: time.Now(),
		Command:  cmd,
		reply:    reply,
	}
	if !q.items.Push(env) {
		q.rejected.Add(context.Background(), 1, attrs)
		return Ticket{}, ErrQueueFull
	}
	q.enqueued.Add(context.Background(), 1, attrs)

	return Ticket{ID: env.ID, Kind: cmd.Kind(), done: reply}, nil
}

// DrainAll removes and returns every pending command in arrival order.
func (q *Queue) DrainAll() []Envelope {
	return q.items.Drain()
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	return q.items.Len()
}

// Clear drops pending commands, resolving each with err.
func (q *Queue) Clear(err error) {
	for _, env := range q.items.Drain() {
		env.Resolve(Outcome{Err: err})
	}
}
