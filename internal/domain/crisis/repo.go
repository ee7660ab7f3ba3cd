package crisis

import (
	"context"

	"github.com/google/uuid"
)

// StateRepository persists per-session crisis state.
type StateRepository interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*State, error)
	// GetForUpdate returns the session's state row under a row lock, lazily
	// creating it on first reference. Must be called inside a transaction;
	// the lock serializes concurrent dispatcher runs for one session.
	GetForUpdate(ctx context.Context, sessionID uuid.UUID) (*State, error)
	Update(ctx context.Context, s *State) error
	// ListActive returns flagged sessions sorted by risk desc, then recency.
	ListActive(ctx context.Context, limit, offset int) ([]*State, int, error)
}

// EventRepository persists the append-only audit trail.
type EventRepository interface {
	Create(ctx context.Context, e *Event) error
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Event, int, error)
}

// InterventionRepository persists intervention action records.
type InterventionRepository interface {
	Create(ctx context.Context, a *Intervention) error
	UpdateOutcome(ctx context.Context, id uuid.UUID, outcome, notes string) error
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Intervention, int, error)
}
