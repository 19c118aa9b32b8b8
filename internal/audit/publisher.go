package audit

import (
	"context"
	"errors"
	"log/slog"

	"regflow/pkg/requestcontext"
)

// ErrBufferFull is returned by a buffered publisher whose worker fell behind.
var ErrBufferFull = errors.New("audit buffer full")

// Sink is where events end up: memory for tests, Kafka in production.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher stamps events with request metadata and hands them to a sink,
// either directly or through a buffered inbox drained by a Worker.
type Publisher struct {
	sink   Sink
	inbox  chan Event
	logger *slog.Logger
}

type Option func(*Publisher)

// WithBuffer makes Emit non-blocking; run the Worker returned by Worker().
func WithBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.SessionID == "" {
		event.SessionID = requestcontext.SessionID(ctx)
	}
	if p.inbox == nil {
		return p.sink.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// Worker returns the drain loop for a buffered publisher, or nil when unbuffered.
func (p *Publisher) Worker() *Worker {
	if p.inbox == nil {
		return nil
	}
	return NewWorker(p.sink, p.inbox, p.logger)
}
