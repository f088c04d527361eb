package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"census/pkg/requestcontext"
)

// ErrQueueFull is returned by Emit when an asynchronous publisher cannot
// accept more events.
var ErrQueueFull = errors.New("audit queue full")

// Sink persists or forwards audit events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher stamps audit events and hands them to a sink, either inline or
// through a bounded queue drained by a Worker.
type Publisher struct {
	sink  Sink
	queue chan Event
	now   func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithQueue makes Emit asynchronous with a buffer of size events. The queue
// must be drained with NewWorker(sink, p.Queue()).
func WithQueue(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan Event, size)
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Emit fills in the id, timestamp and request id of base and publishes it.
func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.ID == "" {
		base.ID = uuid.NewString()
	}
	if base.Timestamp.IsZero() {
		base.Timestamp = p.now()
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}
	if p.queue == nil {
		return p.sink.Append(ctx, base)
	}
	select {
	case p.queue <- base:
		return nil
	default:
		return ErrQueueFull
	}
}

// Queue exposes the asynchronous queue, or nil for an inline publisher.
func (p *Publisher) Queue() <-chan Event {
	return p.queue
}
