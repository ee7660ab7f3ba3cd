package message

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/vigil/vigil/pkg/errs"
)

var validRoles = map[string]bool{
	RoleUser:      true,
	RoleAssistant: true,
	RoleSystem:    true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record validates and stores a session message.
func (s *Service) Record(ctx context.Context, m *SessionMessage) error {
	if m.SessionID == uuid.Nil {
		return errs.Validation("session_id is required")
	}
	if !validRoles[m.Role] {
		return errs.Validation("role must be user, assistant, or system")
	}
	if strings.TrimSpace(m.Text) == "" {
		return errs.Validation("text is required")
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return errs.Persistence("create message", err)
	}
	return nil
}

// ListBySession returns a page of a session's transcript in chronological
// order.
func (s *Service) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*SessionMessage, int, error) {
	items, total, err := s.repo.ListBySession(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, 0, errs.Persistence("list messages", err)
	}
	return items, total, nil
}
