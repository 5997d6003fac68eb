package delegation

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sheetport/internal/character/models"
	"sheetport/internal/delegation/metrics"
	audit "sheetport/pkg/platform/audit"
)

// Sanitizer re-cleans documents received from the channel.
type Sanitizer interface {
	Sanitize(ctx context.Context, rec models.Record) models.Record
}

// Peer is the privileged side of the protocol. It creates characters for
// requesters that may not, and answers each request exactly once.
type Peer struct {
	channel   Channel
	creator   Creator
	sanitizer Sanitizer
	local     models.Actor
	logger    *slog.Logger
	metrics   *metrics.Metrics
	auditor   AuditPublisher
	tracer    trace.Tracer
}

type PeerOption func(*Peer)

func WithPeerLogger(logger *slog.Logger) PeerOption {
	return func(p *Peer) {
		p.logger = logger
	}
}

func WithPeerMetrics(m *metrics.Metrics) PeerOption {
	return func(p *Peer) {
		p.metrics = m
	}
}

func WithAuditPublisher(a AuditPublisher) PeerOption {
	return func(p *Peer) {
		p.auditor = a
	}
}

// NewPeer builds a peer acting as local. Requests are only served while
// local holds the GM role.
func NewPeer(ch Channel, creator Creator, sanitizer Sanitizer, local models.Actor, opts ...PeerOption) *Peer {
	p := &Peer{
		channel:   ch,
		creator:   creator,
		sanitizer: sanitizer,
		local:     local,
		logger:    slog.Default(),
		tracer:    otel.Tracer("sheetport/delegation"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run serves creation requests until ctx is done or the subscription ends.
func (p *Peer) Run(ctx context.Context) error {
	sub, err := p.channel.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to delegation channel: %w", err)
	}
	defer sub.Close()

	p.logger.InfoContext(ctx, "delegation peer listening", "actor_id", p.local.ID, "role", p.local.Role)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			p.handle(ctx, msg)
		}
	}
}

func (p *Peer) handle(ctx context.Context, msg Message) {
	if msg.Action != ActionCreate || msg.Docs == nil {
		return
	}
	if !p.local.IsGM() {
		return
	}

	ctx, span := p.tracer.Start(ctx, "delegation.serve", trace.WithAttributes(
		attribute.String("request_id", msg.RequestID),
		attribute.Int("docs", len(msg.Docs)),
	))
	defer span.End()

	result := p.serve(ctx, msg)
	if err := p.channel.Publish(ctx, result); err != nil {
		span.RecordError(err)
		p.logger.ErrorContext(ctx, "failed to publish creation result",
			"request_id", msg.RequestID,
			"error", err,
		)
	}
}

func (p *Peer) serve(ctx context.Context, msg Message) Message {
	result := Message{Action: ActionCreateResult, RequestID: msg.RequestID}

	docs := make([]models.Record, 0, len(msg.Docs))
	for _, doc := range msg.Docs {
		docs = append(docs, p.sanitizer.Sanitize(ctx, doc))
	}
	var opts models.CreateOptions
	if msg.Options != nil {
		opts = *msg.Options
	}

	created, err := p.creator.Create(ctx, docs, opts)
	switch {
	case err != nil:
		result.Error = err.Error()
		if result.Error == "" {
			result.Error = errUnknownGMFailure
		}
		p.metrics.IncrementPeerRequest("failed")
		p.logger.WarnContext(ctx, "delegated creation failed",
			"request_id", msg.RequestID,
			"error", err,
		)
	case len(created) == 0:
		result.Error = errNoActorCreated
		p.metrics.IncrementPeerRequest("empty")
	default:
		result.OK = true
		result.ActorID = created[0].ID
		p.metrics.IncrementPeerRequest("created")
		p.logger.InfoContext(ctx, "delegated creation served",
			"request_id", msg.RequestID,
			"character_id", created[0].ID,
			"count", len(created),
		)
		p.emitServed(ctx, msg.RequestID, created[0])
	}
	return result
}

func (p *Peer) emitServed(ctx context.Context, requestID string, c models.Character) {
	if p.auditor == nil {
		return
	}
	err := p.auditor.Emit(ctx, audit.Event{
		ActorID:   p.local.ID,
		Subject:   c.Name,
		Action:    string(audit.EventDelegatedCreationServed),
		Decision:  c.ID,
		RequestID: requestID,
	})
	if err != nil {
		p.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
	}
}
