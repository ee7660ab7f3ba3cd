package message

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists and retrieves session messages.
type Repository interface {
	Create(ctx context.Context, m *SessionMessage) error
	// ListRecent returns the most recent user-and-assistant messages for a
	// session in chronological order, at most limit entries.
	ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*SessionMessage, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*SessionMessage, int, error)
}
