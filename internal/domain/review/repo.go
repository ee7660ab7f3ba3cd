package review

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists clinical review records.
type Repository interface {
	Create(ctx context.Context, r *Review) error
	GetByID(ctx context.Context, id uuid.UUID) (*Review, error)
	// UpdateStatus applies the update only if the stored status still equals
	// expectedStatus, reporting errs.Concurrency otherwise.
	UpdateStatus(ctx context.Context, r *Review, expectedStatus string) error
	// ListPending returns open reviews sorted by risk desc, then request
	// time asc.
	ListPending(ctx context.Context, limit, offset int) ([]*Review, int, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Review, int, error)
}
