package review

import (
	"time"

	"github.com/google/uuid"
)

// Review types.
const (
	TypePostCrisis           = "post_crisis"
	TypeQualityAssurance     = "quality_assurance"
	TypeComplianceAudit      = "compliance_audit"
	TypeTherapeuticOversight = "therapeutic_oversight"
)

// Lifecycle states. Completed is terminal.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Compliance verdicts, settable only when a review completes.
const (
	ComplianceCompliant     = "compliant"
	ComplianceNonCompliant  = "non_compliant"
	ComplianceNeedsFollowup = "needs_followup"
)

// Review tracks a retrospective human evaluation of a flagged session.
type Review struct {
	ID               uuid.UUID  `json:"id"`
	SessionID        uuid.UUID  `json:"session_id"`
	RiskScore        int        `json:"risk_score"`
	ReviewReason     string     `json:"review_reason"`
	ReviewType       string     `json:"review_type"`
	Status           string     `json:"status"`
	RequestedAt      time.Time  `json:"requested_at"`
	RequestedBy      string     `json:"requested_by"`
	AssignedTo       string     `json:"assigned_to,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	Findings         string     `json:"findings,omitempty"`
	Recommendations  string     `json:"recommendations,omitempty"`
	ComplianceStatus string     `json:"compliance_status,omitempty"`
}

// IsTerminal reports whether a status permits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusCompleted
}

var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusInProgress: true,
	},
	StatusInProgress: {
		StatusCompleted: true,
	},
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to string) bool {
	return validTransitions[from][to]
}
