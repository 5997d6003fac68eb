// Package delegation lets an actor without creation rights get a character
// created by a privileged peer (the GM) over a broadcast channel.
//
// Every participant sees every message. Requesters only act on results
// carrying a request id they issued; peers only act on creation requests.
package delegation

import (
	"context"
	"time"

	"sheetport/internal/character/models"
	audit "sheetport/pkg/platform/audit"
)

const (
	// ChannelName is the shared channel both sides publish on.
	ChannelName = "module.gcs-sr6-eden-importer"

	ActionCreate       = "createActor"
	ActionCreateResult = "createActorResult"

	// DefaultTimeout bounds how long a requester waits for a result.
	DefaultTimeout = 15 * time.Second
)

// Peer-side failure messages carried in Message.Error.
const (
	errNoActorCreated   = "No actor created"
	errUnknownGMFailure = "Unknown GM creation error"
	errTimeout          = "GM did not respond to creation request (timeout)."
)

// Message is the wire format on the delegation channel.
type Message struct {
	Action    string                `json:"action"`
	RequestID string                `json:"requestId"`
	Docs      []models.Record       `json:"docs,omitempty"`
	Options   *models.CreateOptions `json:"options,omitempty"`
	OK        bool                  `json:"ok,omitempty"`
	ActorID   string                `json:"actorId,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// Channel is a broadcast medium: every subscription receives every message
// published after it was established, including the publisher's own.
type Channel interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription delivers messages until Close. Close closes the Messages
// channel once the subscription has stopped.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// CharacterLookup resolves the id a peer reports back.
type CharacterLookup interface {
	Get(ctx context.Context, id string) (*models.Character, error)
}

// Creator creates characters directly. The store satisfies it.
type Creator interface {
	Create(ctx context.Context, docs []models.Record, opts models.CreateOptions) ([]models.Character, error)
}

// AuditPublisher records served delegations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
