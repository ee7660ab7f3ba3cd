package risk

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists the risk score time series.
type Repository interface {
	Create(ctx context.Context, h *ScoreHistory) error
	// ListRecent returns the most recent history records for a session in
	// chronological order of calculation, at most limit entries.
	ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*ScoreHistory, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*ScoreHistory, int, error)
}
