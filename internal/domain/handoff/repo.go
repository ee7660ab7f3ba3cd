package handoff

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists handoff records.
type Repository interface {
	Create(ctx context.Context, h *Handoff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Handoff, error)
	// UpdateStatus applies the update only if the stored status still equals
	// expectedStatus, reporting errs.Concurrency otherwise.
	UpdateStatus(ctx context.Context, h *Handoff, expectedStatus string) error
	// ListPending returns pending handoffs sorted by risk desc, then
	// initiation time asc.
	ListPending(ctx context.Context, limit, offset int) ([]*Handoff, int, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Handoff, int, error)
}
