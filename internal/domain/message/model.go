package message

import (
	"time"

	"github.com/google/uuid"
)

// Role of a conversation participant.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// SessionMessage is one message inside a conversation session. Messages are
// the raw material the risk analyzer reads.
type SessionMessage struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
