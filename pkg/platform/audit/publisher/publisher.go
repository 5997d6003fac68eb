package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "sheetport/pkg/platform/audit"
	"sheetport/pkg/platform/audit/worker"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is full.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher captures structured audit events. Without a buffer Emit writes
// straight to the store; with one, a worker drains the buffer in the
// background and Close flushes it.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	bufferSize int
	inbox      chan audit.Event
	done       chan struct{}
	closeOnce  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with a buffer of n events.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		go p.run()
	}
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	if err := worker.NewWorker(p.store, p.inbox).Run(context.Background()); err != nil && p.logger != nil {
		p.logger.Error("audit worker stopped", "error", err)
	}
}

// Emit records an event, stamping it and deriving its category when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		if p.logger != nil {
			p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
		}
		return ErrBufferFull
	}
}

func (p *Publisher) List(ctx context.Context, actorID string) ([]audit.Event, error) {
	return p.store.ListByActor(ctx, actorID)
}

// Close drains buffered events. Emit must not be called after Close.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.inbox)
		<-p.done
	})
}
