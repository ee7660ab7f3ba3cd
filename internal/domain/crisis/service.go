package crisis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/risk"
	"github.com/vigil/vigil/internal/platform/db"
	"github.com/vigil/vigil/pkg/errs"
)

var validSeverities = map[string]bool{
	risk.SeverityLow:    true,
	risk.SeverityMedium: true,
	risk.SeverityHigh:   true,
}

var validTriggerMethods = map[string]bool{
	TriggerAuto:   true,
	TriggerManual: true,
	TriggerSystem: true,
}

// Tunables are the dispatcher's escalation constants.
type Tunables struct {
	// FlagThreshold is the score a message must exceed before any
	// escalation fires.
	FlagThreshold int
	// HysteresisDelta is the margin a new score must exceed the stored
	// score by before an already-flagged session re-escalates.
	HysteresisDelta int
}

func DefaultTunables() Tunables {
	return Tunables{FlagThreshold: 30, HysteresisDelta: 10}
}

// Decision is the outcome of one dispatcher run.
type Decision struct {
	Escalated bool   `json:"escalated"`
	State     *State `json:"state"`
	Event     *Event `json:"event,omitempty"`
}

// Service is the escalation dispatcher: the only writer of session crisis
// state. Every state mutation and its audit event are committed in one
// transaction, with the state row locked for the duration so concurrent
// analyses of the same session cannot double-fire.
type Service struct {
	states   StateRepository
	events   EventRepository
	inTx     db.TxRunner
	tunables Tunables
	logger   zerolog.Logger
}

func NewService(states StateRepository, events EventRepository, inTx db.TxRunner, tunables Tunables, logger zerolog.Logger) *Service {
	return &Service{
		states:   states,
		events:   events,
		inTx:     inTx,
		tunables: tunables,
		logger:   logger,
	}
}

// ProcessAssessment applies the hysteresis rule to a fresh assessment.
// Escalate iff newScore exceeds the flag threshold AND the session is
// either unflagged or the score grew past the stored score by more than the
// hysteresis delta. A decision that changes nothing writes nothing.
func (s *Service) ProcessAssessment(ctx context.Context, sessionID uuid.UUID, a *risk.Assessment, messageRef *uuid.UUID) (*Decision, error) {
	var decision Decision
	err := s.inTx(ctx, func(ctx context.Context) error {
		st, err := s.states.GetForUpdate(ctx, sessionID)
		if err != nil {
			return errs.Persistence("lock session state", err)
		}

		escalate := a.RiskScore > s.tunables.FlagThreshold &&
			(!st.Flagged || a.RiskScore > st.RiskScore+s.tunables.HysteresisDelta)
		if !escalate {
			decision = Decision{Escalated: false, State: st}
			return nil
		}

		eventType := EventFlagged
		if st.Flagged {
			if st.Severity != a.Severity {
				eventType = EventSeverityChanged
			} else {
				eventType = EventRiskScoreUpdated
			}
		}

		prevSeverity, prevScore := st.Severity, st.RiskScore
		now := time.Now().UTC()
		if !st.Flagged {
			st.FlaggedAt = &now
			st.FlaggedBy = "system"
		}
		st.Flagged = true
		st.Severity = a.Severity
		st.RiskScore = a.RiskScore
		st.MonitoringFrequency = MonitoringFor(a.Severity)

		if err := s.states.Update(ctx, st); err != nil {
			return errs.Persistence("update session state", err)
		}

		event := &Event{
			SessionID:         sessionID,
			EventType:         eventType,
			Severity:          a.Severity,
			PreviousSeverity:  prevSeverity,
			RiskScore:         a.RiskScore,
			PreviousRiskScore: prevScore,
			TriggeredBy:       "system",
			TriggerMethod:     TriggerAuto,
			MessageRef:        messageRef,
			RiskFactors:       a.Factors,
		}
		if err := s.events.Create(ctx, event); err != nil {
			return errs.Persistence("append crisis event", err)
		}

		decision = Decision{Escalated: true, State: st, Event: event}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &decision, nil
}

// FlagSession is the manual operator flag. Follows the same atomic pattern
// as automatic escalation, skipping the hysteresis rule.
func (s *Service) FlagSession(ctx context.Context, sessionID uuid.UUID, severity string, riskScore int, triggeredBy, triggerMethod string, messageRef *uuid.UUID, factors []string, notes string) (*State, error) {
	if !validSeverities[severity] {
		return nil, errs.Validation("severity must be low, medium, or high, got %q", severity)
	}
	if riskScore < 0 || riskScore > 100 {
		return nil, errs.Validation("risk score must be in [0,100], got %d", riskScore)
	}
	if triggerMethod == "" {
		triggerMethod = TriggerManual
	}
	if !validTriggerMethods[triggerMethod] {
		return nil, errs.Validation("trigger method must be auto, manual, or system, got %q", triggerMethod)
	}

	var result *State
	err := s.inTx(ctx, func(ctx context.Context) error {
		st, err := s.states.GetForUpdate(ctx, sessionID)
		if err != nil {
			return errs.Persistence("lock session state", err)
		}

		if st.Flagged && st.Severity == severity && st.RiskScore == riskScore {
			result = st
			return nil
		}

		eventType := EventFlagged
		if st.Flagged {
			if st.Severity != severity {
				eventType = EventSeverityChanged
			} else {
				eventType = EventRiskScoreUpdated
			}
		}

		prevSeverity, prevScore := st.Severity, st.RiskScore
		now := time.Now().UTC()
		if !st.Flagged {
			st.FlaggedAt = &now
			st.FlaggedBy = triggeredBy
		}
		st.Flagged = true
		st.Severity = severity
		st.RiskScore = riskScore
		st.MonitoringFrequency = MonitoringFor(severity)

		if err := s.states.Update(ctx, st); err != nil {
			return errs.Persistence("update session state", err)
		}
		if err := s.events.Create(ctx, &Event{
			SessionID:         sessionID,
			EventType:         eventType,
			Severity:          severity,
			PreviousSeverity:  prevSeverity,
			RiskScore:         riskScore,
			PreviousRiskScore: prevScore,
			TriggeredBy:       triggeredBy,
			TriggerMethod:     triggerMethod,
			MessageRef:        messageRef,
			RiskFactors:       factors,
			Notes:             notes,
		}); err != nil {
			return errs.Persistence("append crisis event", err)
		}
		result = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UnflagSession clears the crisis flag and resets monitoring to normal.
// Unflagging an already-unflagged session is a no-op.
func (s *Service) UnflagSession(ctx context.Context, sessionID uuid.UUID, unflaggedBy, notes string) (*State, error) {
	var result *State
	err := s.inTx(ctx, func(ctx context.Context) error {
		st, err := s.states.GetForUpdate(ctx, sessionID)
		if err != nil {
			return errs.Persistence("lock session state", err)
		}
		if !st.Flagged {
			result = st
			return nil
		}

		prevSeverity, prevScore := st.Severity, st.RiskScore
		now := time.Now().UTC()
		st.Flagged = false
		st.Severity = risk.SeverityNone
		st.MonitoringFrequency = MonitoringNormal
		st.UnflaggedAt = &now
		st.UnflaggedBy = unflaggedBy

		if err := s.states.Update(ctx, st); err != nil {
			return errs.Persistence("update session state", err)
		}
		if err := s.events.Create(ctx, &Event{
			SessionID:         sessionID,
			EventType:         EventUnflagged,
			Severity:          risk.SeverityNone,
			PreviousSeverity:  prevSeverity,
			RiskScore:         st.RiskScore,
			PreviousRiskScore: prevScore,
			TriggeredBy:       unflaggedBy,
			TriggerMethod:     TriggerManual,
			Notes:             notes,
		}); err != nil {
			return errs.Persistence("append crisis event", err)
		}
		result = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateRiskScore adjusts a session's stored score and severity without
// changing its flag, for operator corrections. Writes nothing when the
// values are unchanged.
func (s *Service) UpdateRiskScore(ctx context.Context, sessionID uuid.UUID, newScore int, newSeverity, changedBy, notes string) (*State, error) {
	if !validSeverities[newSeverity] {
		return nil, errs.Validation("severity must be low, medium, or high, got %q", newSeverity)
	}
	if newScore < 0 || newScore > 100 {
		return nil, errs.Validation("risk score must be in [0,100], got %d", newScore)
	}

	var result *State
	err := s.inTx(ctx, func(ctx context.Context) error {
		st, err := s.states.GetForUpdate(ctx, sessionID)
		if err != nil {
			return errs.Persistence("lock session state", err)
		}
		if st.Severity == newSeverity && st.RiskScore == newScore {
			result = st
			return nil
		}

		eventType := EventRiskScoreUpdated
		if st.Severity != newSeverity {
			eventType = EventSeverityChanged
		}

		prevSeverity, prevScore := st.Severity, st.RiskScore
		st.Severity = newSeverity
		st.RiskScore = newScore
		st.MonitoringFrequency = MonitoringFor(newSeverity)

		if err := s.states.Update(ctx, st); err != nil {
			return errs.Persistence("update session state", err)
		}
		if err := s.events.Create(ctx, &Event{
			SessionID:         sessionID,
			EventType:         eventType,
			Severity:          newSeverity,
			PreviousSeverity:  prevSeverity,
			RiskScore:         newScore,
			PreviousRiskScore: prevScore,
			TriggeredBy:       changedBy,
			TriggerMethod:     TriggerManual,
			Notes:             notes,
		}); err != nil {
			return errs.Persistence("append crisis event", err)
		}
		result = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetState returns a session's crisis state.
func (s *Service) GetState(ctx context.Context, sessionID uuid.UUID) (*State, error) {
	return s.states.Get(ctx, sessionID)
}

// ListActive returns flagged sessions, highest risk first.
func (s *Service) ListActive(ctx context.Context, limit, offset int) ([]*State, int, error) {
	items, total, err := s.states.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, 0, errs.Persistence("list active sessions", err)
	}
	return items, total, nil
}

// ListEvents returns a session's audit trail, newest first.
func (s *Service) ListEvents(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	items, total, err := s.events.ListBySession(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, 0, errs.Persistence("list crisis events", err)
	}
	return items, total, nil
}
