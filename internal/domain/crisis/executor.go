package crisis

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/risk"
	"github.com/vigil/vigil/internal/platform/alerting"
	"github.com/vigil/vigil/internal/platform/db"
	"github.com/vigil/vigil/pkg/errs"
)

// Self-help and emergency resource references delivered to sessions. The
// collaborator resolves them to actual content.
var (
	selfHelpResources = []string{
		"grounding-techniques", "breathing-exercise", "coping-strategies",
	}
	emergencyResources = []string{
		"crisis-hotline-988", "crisis-text-line", "emergency-services-911",
	}
)

// HandoffInitiator starts a human handoff for a high-severity session. The
// handoff workflow implements this; the indirection keeps the executor free
// of a dependency on that package.
type HandoffInitiator interface {
	InitiateAuto(ctx context.Context, sessionID uuid.UUID, riskScore int) error
}

// Executor performs the severity-keyed intervention after an escalation. It
// decides what to do and records that it happened; delivery itself is the
// notifier's job.
type Executor struct {
	interventions InterventionRepository
	events        EventRepository
	notifier      alerting.Notifier
	handoffs      HandoffInitiator
	inTx          db.TxRunner
	logger        zerolog.Logger
}

func NewExecutor(interventions InterventionRepository, events EventRepository, notifier alerting.Notifier, handoffs HandoffInitiator, inTx db.TxRunner, logger zerolog.Logger) *Executor {
	return &Executor{
		interventions: interventions,
		events:        events,
		notifier:      notifier,
		handoffs:      handoffs,
		inTx:          inTx,
		logger:        logger,
	}
}

// Execute dispatches the intervention for one escalation and writes exactly
// one intervention record plus its audit event. Notification delivery
// failures are logged and do not fail the intervention; a failed handoff
// initiation does.
func (e *Executor) Execute(ctx context.Context, sessionID uuid.UUID, severity string, riskScore int) (*Intervention, error) {
	var (
		actionType string
		details    = map[string]interface{}{"severity": severity}
	)

	switch severity {
	case risk.SeverityLow:
		actionType = ActionSelfHelpResources
		details["resources"] = selfHelpResources
		if err := e.notifier.DeliverResources(ctx, sessionID, selfHelpResources); err != nil {
			e.logger.Warn().Err(err).Str("session_id", sessionID.String()).
				Msg("self-help resource delivery failed")
		}

	case risk.SeverityMedium:
		actionType = ActionSupervisorAlert
		details["monitoring_frequency"] = MonitoringFor(severity)
		if err := e.notifier.AlertSupervisor(ctx, sessionID, severity, riskScore); err != nil {
			e.logger.Warn().Err(err).Str("session_id", sessionID.String()).
				Msg("supervisor alert failed")
		}

	case risk.SeverityHigh:
		actionType = ActionEmergencyResources
		details["resources"] = emergencyResources
		if err := e.notifier.DeliverResources(ctx, sessionID, emergencyResources); err != nil {
			e.logger.Warn().Err(err).Str("session_id", sessionID.String()).
				Msg("emergency resource delivery failed")
		}
		if err := e.notifier.BroadcastCritical(ctx, sessionID, riskScore); err != nil {
			e.logger.Warn().Err(err).Str("session_id", sessionID.String()).
				Msg("critical broadcast failed")
		}
		if err := e.handoffs.InitiateAuto(ctx, sessionID, riskScore); err != nil {
			return nil, err
		}

	default:
		return nil, errs.Validation("no intervention defined for severity %q", severity)
	}

	// The record and its audit event commit together or not at all.
	action := &Intervention{
		SessionID:  sessionID,
		ActionType: actionType,
		RiskScore:  riskScore,
		Details:    details,
	}
	err := e.inTx(ctx, func(ctx context.Context) error {
		if err := e.interventions.Create(ctx, action); err != nil {
			return errs.Persistence("record intervention", err)
		}
		if err := e.events.Create(ctx, &Event{
			SessionID:           sessionID,
			EventType:           EventInterventionTriggered,
			Severity:            severity,
			PreviousSeverity:    severity,
			RiskScore:           riskScore,
			PreviousRiskScore:   riskScore,
			TriggeredBy:         "system",
			TriggerMethod:       TriggerSystem,
			InterventionDetails: details,
		}); err != nil {
			return errs.Persistence("append intervention event", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

// LogAction records a manually performed intervention.
func (e *Executor) LogAction(ctx context.Context, sessionID uuid.UUID, actionType string, riskScore int, details map[string]interface{}, performedBy string) (*Intervention, error) {
	if actionType == "" {
		return nil, errs.Validation("action type is required")
	}
	action := &Intervention{
		SessionID:   sessionID,
		ActionType:  actionType,
		RiskScore:   riskScore,
		Details:     details,
		PerformedBy: performedBy,
	}
	if err := e.interventions.Create(ctx, action); err != nil {
		return nil, errs.Persistence("record intervention", err)
	}
	return action, nil
}

// UpdateOutcome sets the operator-recorded outcome of an intervention.
func (e *Executor) UpdateOutcome(ctx context.Context, id uuid.UUID, outcome, notes string) error {
	if outcome == "" {
		return errs.Validation("outcome is required")
	}
	return e.interventions.UpdateOutcome(ctx, id, outcome, notes)
}

// ListBySession returns a session's intervention log, newest first.
func (e *Executor) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Intervention, int, error) {
	items, total, err := e.interventions.ListBySession(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, 0, errs.Persistence("list interventions", err)
	}
	return items, total, nil
}
