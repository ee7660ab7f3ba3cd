// Package alerting delivers crisis notifications to care channels: in-session
// resource delivery, supervisor alerts, and critical broadcasts.
package alerting

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier is the interface interventions and handoffs use to reach humans
// and downstream channels.
type Notifier interface {
	// DeliverResources pushes coping/support resource references into the
	// conversation session.
	DeliverResources(ctx context.Context, sessionID uuid.UUID, resources []string) error

	// AlertSupervisor notifies the on-duty supervisor about an elevated
	// session.
	AlertSupervisor(ctx context.Context, sessionID uuid.UUID, severity string, riskScore int) error

	// BroadcastCritical alerts the whole care team about a high-severity
	// session.
	BroadcastCritical(ctx context.Context, sessionID uuid.UUID, riskScore int) error

	// NotifyHandoff announces a handoff lifecycle change to the assigned
	// responder channel.
	NotifyHandoff(ctx context.Context, handoffID, sessionID uuid.UUID, status string) error
}

// LogNotifier writes notifications to the structured log. It stands in for
// real channel integrations (chat gateway, paging) in development and small
// deployments.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) DeliverResources(_ context.Context, sessionID uuid.UUID, resources []string) error {
	n.logger.Info().
		Str("session_id", sessionID.String()).
		Strs("resources", resources).
		Msg("delivering support resources to session")
	return nil
}

func (n *LogNotifier) AlertSupervisor(_ context.Context, sessionID uuid.UUID, severity string, riskScore int) error {
	n.logger.Warn().
		Str("session_id", sessionID.String()).
		Str("severity", severity).
		Int("risk_score", riskScore).
		Msg("supervisor alert")
	return nil
}

func (n *LogNotifier) BroadcastCritical(_ context.Context, sessionID uuid.UUID, riskScore int) error {
	n.logger.Error().
		Str("session_id", sessionID.String()).
		Int("risk_score", riskScore).
		Msg("critical crisis broadcast")
	return nil
}

func (n *LogNotifier) NotifyHandoff(_ context.Context, handoffID, sessionID uuid.UUID, status string) error {
	n.logger.Info().
		Str("handoff_id", handoffID.String()).
		Str("session_id", sessionID.String()).
		Str("status", status).
		Msg("handoff status notification")
	return nil
}
