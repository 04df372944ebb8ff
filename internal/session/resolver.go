// Package session resolves the current identity from the backend's session
// endpoint. Absence of a player is a valid steady state, never an error.
package session

import (
	"context"
	"log/slog"

	"github.com/ctfquest/internal/domain"
)

// Checker checks the backend session.
type Checker interface {
	CheckSession(ctx context.Context) (*domain.Player, error)
}

// Resolver resolves the current player, if any.
type Resolver struct {
	api    Checker
	logger *slog.Logger
}

// New creates a session resolver.
func New(api Checker, logger *slog.Logger) *Resolver {
	return &Resolver{api: api, logger: logger}
}

// Resolve returns the current player, or nil when no authenticated player
// session exists. Network and authorization failures degrade to nil: every
// downstream component treats "no player" as a non-error state.
func (r *Resolver) Resolve(ctx context.Context) *domain.Player {
	player, err := r.api.CheckSession(ctx)
	if err != nil {
		r.logger.Warn("session resolution failed, continuing without player", "error", err)
		return nil
	}
	if player == nil {
		r.logger.Debug("no player session")
		return nil
	}
	r.logger.Info("player session resolved",
		"player", player.DisplayName(),
		"numeric_id", player.NumericID,
	)
	return player
}
