package crisis

import (
	"time"

	"github.com/google/uuid"

	"github.com/vigil/vigil/internal/domain/risk"
)

// Crisis event types, one per state-affecting operation.
const (
	EventFlagged                 = "flagged"
	EventUnflagged               = "unflagged"
	EventSeverityChanged         = "severity_changed"
	EventRiskScoreUpdated        = "risk_score_updated"
	EventInterventionTriggered   = "intervention_triggered"
	EventHandoffInitiated        = "handoff_initiated"
	EventClinicalReviewRequested = "clinical_review_requested"
)

// How a transition was triggered.
const (
	TriggerAuto   = "auto"
	TriggerManual = "manual"
	TriggerSystem = "system"
)

// Monitoring cadence for a session, derived from severity.
const (
	MonitoringNormal   = "normal"
	MonitoringHigh     = "high"
	MonitoringCritical = "critical"
)

// MonitoringFor derives the monitoring cadence from a severity tier.
func MonitoringFor(severity string) string {
	switch severity {
	case risk.SeverityHigh:
		return MonitoringCritical
	case risk.SeverityMedium:
		return MonitoringHigh
	default:
		return MonitoringNormal
	}
}

// State is the per-session crisis state. One row per session, mutated only
// by the dispatcher, never deleted.
type State struct {
	SessionID           uuid.UUID  `json:"session_id"`
	Flagged             bool       `json:"flagged"`
	Severity            string     `json:"severity"`
	RiskScore           int        `json:"risk_score"`
	MonitoringFrequency string     `json:"monitoring_frequency"`
	FlaggedAt           *time.Time `json:"flagged_at,omitempty"`
	FlaggedBy           string     `json:"flagged_by,omitempty"`
	UnflaggedAt         *time.Time `json:"unflagged_at,omitempty"`
	UnflaggedBy         string     `json:"unflagged_by,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Event is one append-only audit record. Immutable once written.
type Event struct {
	ID                  uuid.UUID              `json:"id"`
	SessionID           uuid.UUID              `json:"session_id"`
	EventType           string                 `json:"event_type"`
	Severity            string                 `json:"severity"`
	PreviousSeverity    string                 `json:"previous_severity"`
	RiskScore           int                    `json:"risk_score"`
	PreviousRiskScore   int                    `json:"previous_risk_score"`
	TriggeredBy         string                 `json:"triggered_by"`
	TriggerMethod       string                 `json:"trigger_method"`
	MessageRef          *uuid.UUID             `json:"message_ref,omitempty"`
	RiskFactors         []string               `json:"risk_factors"`
	InterventionDetails map[string]interface{} `json:"intervention_details,omitempty"`
	Notes               string                 `json:"notes,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
}

// Intervention is the record of one executor firing. outcome and notes are
// settable later by an operator.
type Intervention struct {
	ID          uuid.UUID              `json:"id"`
	SessionID   uuid.UUID              `json:"session_id"`
	ActionType  string                 `json:"action_type"`
	RiskScore   int                    `json:"risk_score"`
	Details     map[string]interface{} `json:"details,omitempty"`
	PerformedBy string                 `json:"performed_by"`
	PerformedAt time.Time              `json:"performed_at"`
	Outcome     string                 `json:"outcome,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
}

// Intervention action types keyed by severity.
const (
	ActionSelfHelpResources  = "self_help_resources"
	ActionSupervisorAlert    = "supervisor_alert"
	ActionEmergencyResources = "emergency_resources"
)
