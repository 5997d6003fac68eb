package delegation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sheetport/internal/character/models"
	"sheetport/internal/delegation/metrics"
	dErrors "sheetport/pkg/domain-errors"
	"sheetport/pkg/platform/sentinel"
)

// Client is the requesting side of the protocol. One subscription and one
// dispatcher goroutine serve every in-flight request.
type Client struct {
	channel Channel
	lookup  CharacterLookup
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	mu      sync.Mutex
	pending map[string]chan Message
	sub     Subscription
	done    chan struct{}
}

type ClientOption func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a requester. Call Start before Create.
func NewClient(ch Channel, lookup CharacterLookup, opts ...ClientOption) *Client {
	c := &Client{
		channel: ch,
		lookup:  lookup,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		tracer:  otel.Tracer("sheetport/delegation"),
		pending: make(map[string]chan Message),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to the channel and launches the dispatcher. Calling it
// again while running is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return nil
	}
	sub, err := c.channel.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to delegation channel: %w", err)
	}
	c.sub = sub
	c.done = make(chan struct{})
	go c.dispatch(sub, c.done)
	return nil
}

// Close stops the dispatcher and fails every in-flight request.
func (c *Client) Close() error {
	c.mu.Lock()
	sub, done := c.sub, c.done
	c.sub = nil
	c.mu.Unlock()
	if sub == nil {
		return nil
	}
	err := sub.Close()
	<-done

	c.mu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.metrics.SetPending(0)
	c.mu.Unlock()
	return err
}

// Pending reports how many requests are awaiting a result.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) dispatch(sub Subscription, done chan<- struct{}) {
	defer close(done)
	for msg := range sub.Messages() {
		if msg.Action != ActionCreateResult || msg.RequestID == "" {
			continue
		}
		c.complete(msg)
	}
}

// complete hands msg to the waiter registered under its id. The entry is
// removed before delivery, so each request completes at most once.
func (c *Client) complete(msg Message) {
	c.mu.Lock()
	ch, ok := c.pending[msg.RequestID]
	if ok {
		delete(c.pending, msg.RequestID)
		c.metrics.SetPending(len(c.pending))
	}
	c.mu.Unlock()
	if ok {
		ch <- msg
	}
}

func (c *Client) register(id string) (chan Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		return nil, false
	}
	ch := make(chan Message, 1)
	c.pending[id] = ch
	c.metrics.SetPending(len(c.pending))
	return ch, true
}

func (c *Client) remove(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.metrics.SetPending(len(c.pending))
	c.mu.Unlock()
}

// Create asks the privileged peer to create docs and waits for its answer.
// On success it returns the character the peer reports, or an empty slice
// when that character cannot be found locally.
func (c *Client) Create(ctx context.Context, docs []models.Record, opts models.CreateOptions) ([]models.Character, error) {
	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "delegation.create", trace.WithAttributes(
		attribute.String("request_id", requestID),
		attribute.Int("docs", len(docs)),
	))
	defer span.End()

	out, outcome, err := c.create(ctx, requestID, docs, opts)
	c.metrics.IncrementRequest(outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.logger.WarnContext(ctx, "delegated creation failed",
			"request_id", requestID,
			"outcome", outcome,
			"error", err,
		)
		return nil, err
	}
	return out, nil
}

func (c *Client) create(ctx context.Context, requestID string, docs []models.Record, opts models.CreateOptions) ([]models.Character, string, error) {
	ch, ok := c.register(requestID)
	if !ok {
		return nil, "error", fmt.Errorf("delegation client: %w", sentinel.ErrClosed)
	}
	defer c.remove(requestID)

	started := time.Now()
	err := c.channel.Publish(ctx, Message{
		Action:    ActionCreate,
		RequestID: requestID,
		Docs:      docs,
		Options:   &opts,
	})
	if err != nil {
		return nil, "error", fmt.Errorf("publish creation request: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var msg Message
	select {
	case m, open := <-ch:
		if !open {
			return nil, "error", fmt.Errorf("delegation client: %w", sentinel.ErrClosed)
		}
		msg = m
	case <-timer.C:
		return nil, "timeout", dErrors.New(dErrors.CodeDelegationTimeout, errTimeout)
	case <-ctx.Done():
		return nil, "cancelled", ctx.Err()
	}
	c.metrics.ObserveWait(time.Since(started))

	if !msg.OK {
		reason := msg.Error
		if reason == "" {
			reason = errUnknownGMFailure
		}
		return nil, "rejected", dErrors.New(dErrors.CodeDelegationRejected, reason)
	}

	if msg.ActorID == "" {
		return []models.Character{}, "ok", nil
	}
	char, err := c.lookup.Get(ctx, msg.ActorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return []models.Character{}, "ok", nil
		}
		return nil, "error", fmt.Errorf("resolve delegated character %s: %w", msg.ActorID, err)
	}
	return []models.Character{*char}, "ok", nil
}
