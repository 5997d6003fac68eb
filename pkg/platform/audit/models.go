package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks
// can apply different retention.
type EventCategory string

const (
	// CategorySecurity covers refused or failed actions worth alerting on.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity. It can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// ActorID is the user on whose behalf the action ran.
	ActorID string
	// Subject is the character name or id the action touched.
	Subject  string
	Action   string
	Decision string
	Reason   string
	// RequestID correlates the event with an HTTP request or delegation round trip.
	RequestID string
}

type AuditEvent string

const (
	EventCharacterImported       AuditEvent = "character_imported"
	EventCharacterImportFailed   AuditEvent = "character_import_failed"
	EventDelegatedCreationServed AuditEvent = "delegated_creation_served"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCharacterImported:       CategoryOperations,
	EventCharacterImportFailed:   CategorySecurity,
	EventDelegatedCreationServed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actorID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
