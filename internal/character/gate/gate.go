// Package gate answers whether an actor may create characters directly.
package gate

import (
	"context"
	"log/slog"

	"sheetport/internal/character/models"
)

// PermissionChecker is the host's permission predicate for character creation.
type PermissionChecker interface {
	CanCreateCharacter(ctx context.Context, actor models.Actor) (bool, error)
}

// Gate is the capability check in front of direct creation.
type Gate struct {
	checker PermissionChecker
	logger  *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger used when the checker fails.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// New builds a Gate. A nil checker falls back to the GM role.
func New(checker PermissionChecker, opts ...Option) *Gate {
	g := &Gate{checker: checker}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CanCreate asks the checker first. When no checker is configured, or it
// fails, only a GM may create; an actor with no role never may.
func (g *Gate) CanCreate(ctx context.Context, actor models.Actor) bool {
	if g.checker != nil {
		ok, err := g.checker.CanCreateCharacter(ctx, actor)
		if err == nil {
			return ok
		}
		if g.logger != nil {
			g.logger.WarnContext(ctx, "permission check failed, falling back to role",
				"actor_id", actor.ID,
				"error", err,
			)
		}
	}
	return actor.IsGM()
}

// StaticPolicy is a world-level setting: GMs always create, players only when
// AllowPlayers is set. Actors without a role are denied.
type StaticPolicy struct {
	AllowPlayers bool
}

// CanCreateCharacter implements PermissionChecker.
func (p StaticPolicy) CanCreateCharacter(_ context.Context, actor models.Actor) (bool, error) {
	switch actor.Role {
	case models.RoleGM:
		return true, nil
	case models.RolePlayer:
		return p.AllowPlayers, nil
	default:
		return false, nil
	}
}
