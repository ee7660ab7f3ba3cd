package handoff

import (
	"time"

	"github.com/google/uuid"
)

// Handoff channel types.
const (
	TypeCrisisHotline        = "crisis_hotline"
	TypeClinicalReview       = "clinical_review"
	TypeEmergencyServices    = "emergency_services"
	TypeSupervisorEscalation = "supervisor_escalation"
)

// Lifecycle states. Completed and cancelled are terminal.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Handoff tracks the transfer of a session to a human-staffed channel.
type Handoff struct {
	ID                uuid.UUID  `json:"id"`
	SessionID         uuid.UUID  `json:"session_id"`
	RiskScore         int        `json:"risk_score"`
	HandoffType       string     `json:"handoff_type"`
	Status            string     `json:"status"`
	InitiatedAt       time.Time  `json:"initiated_at"`
	InitiatedBy       string     `json:"initiated_by"`
	AssignedTo        string     `json:"assigned_to,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Outcome           string     `json:"outcome,omitempty"`
	ExternalReference string     `json:"external_reference,omitempty"`
	Notes             string     `json:"notes,omitempty"`
}

// IsTerminal reports whether a status permits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusInProgress: true,
		StatusCancelled:  true,
	},
	StatusInProgress: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to string) bool {
	return validTransitions[from][to]
}
