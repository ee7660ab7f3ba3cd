package crisis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/risk"
	"github.com/vigil/vigil/pkg/errs"
)

type mockStateRepo struct {
	states map[uuid.UUID]*State
}

func newMockStateRepo() *mockStateRepo {
	return &mockStateRepo{states: make(map[uuid.UUID]*State)}
}

func (m *mockStateRepo) Get(_ context.Context, sessionID uuid.UUID) (*State, error) {
	st, ok := m.states[sessionID]
	if !ok {
		return nil, errs.NotFound("session crisis state", sessionID.String())
	}
	return st, nil
}

func (m *mockStateRepo) GetForUpdate(_ context.Context, sessionID uuid.UUID) (*State, error) {
	if st, ok := m.states[sessionID]; ok {
		return st, nil
	}
	st := &State{
		SessionID:           sessionID,
		Severity:            risk.SeverityNone,
		MonitoringFrequency: MonitoringNormal,
		UpdatedAt:           time.Now().UTC(),
	}
	m.states[sessionID] = st
	return st, nil
}

func (m *mockStateRepo) Update(_ context.Context, s *State) error {
	m.states[s.SessionID] = s
	return nil
}

func (m *mockStateRepo) ListActive(_ context.Context, limit, offset int) ([]*State, int, error) {
	var active []*State
	for _, st := range m.states {
		if st.Flagged {
			active = append(active, st)
		}
	}
	return active, len(active), nil
}

type mockEventRepo struct {
	events    []*Event
	createErr error
}

func (m *mockEventRepo) Create(_ context.Context, e *Event) error {
	if m.createErr != nil {
		return m.createErr
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	m.events = append(m.events, e)
	return nil
}

func (m *mockEventRepo) ListBySession(_ context.Context, sessionID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	var out []*Event
	for _, e := range m.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func passTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockStateRepo, *mockEventRepo) {
	states := newMockStateRepo()
	events := &mockEventRepo{}
	svc := NewService(states, events, passTx, DefaultTunables(), zerolog.Nop())
	return svc, states, events
}

func assessment(score int) *risk.Assessment {
	return &risk.Assessment{
		RiskScore: score,
		Severity:  risk.DefaultThresholds().SeverityFor(score),
	}
}

func TestProcessAssessment_HysteresisFlagsOnce(t *testing.T) {
	svc, _, events := newTestService()
	sid := uuid.New()
	ctx := context.Background()

	// 20: below threshold, nothing happens.
	d, err := svc.ProcessAssessment(ctx, sid, assessment(20), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Escalated {
		t.Error("score 20 must not escalate")
	}

	// 35: crosses the threshold, flags.
	d, err = svc.ProcessAssessment(ctx, sid, assessment(35), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Escalated || d.Event.EventType != EventFlagged {
		t.Fatalf("expected flagged escalation, got %+v", d)
	}

	// 38: delta of 3 is inside the hysteresis margin, no re-fire.
	d, err = svc.ProcessAssessment(ctx, sid, assessment(38), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Escalated {
		t.Error("delta below hysteresis margin must not re-fire")
	}

	if len(events.events) != 1 {
		t.Errorf("expected exactly one crisis event, got %d", len(events.events))
	}
}

func TestProcessAssessment_HysteresisRefires(t *testing.T) {
	svc, _, events := newTestService()
	sid := uuid.New()
	ctx := context.Background()

	if _, err := svc.ProcessAssessment(ctx, sid, assessment(35), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, err := svc.ProcessAssessment(ctx, sid, assessment(50), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Escalated {
		t.Fatal("delta of 15 must re-fire")
	}
	// Same severity tier (medium), so the second event is a score update.
	if d.Event.EventType != EventRiskScoreUpdated {
		t.Errorf("expected risk_score_updated, got %s", d.Event.EventType)
	}
	if len(events.events) != 2 {
		t.Errorf("expected two events, got %d", len(events.events))
	}
}

func TestProcessAssessment_SeverityChangeEvent(t *testing.T) {
	svc, _, _ := newTestService()
	sid := uuid.New()
	ctx := context.Background()

	if _, err := svc.ProcessAssessment(ctx, sid, assessment(40), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, err := svc.ProcessAssessment(ctx, sid, assessment(85), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Event.EventType != EventSeverityChanged {
		t.Errorf("expected severity_changed, got %s", d.Event.EventType)
	}
	if d.Event.PreviousSeverity != risk.SeverityMedium || d.Event.Severity != risk.SeverityHigh {
		t.Errorf("event must capture both severities: %+v", d.Event)
	}
	if d.State.MonitoringFrequency != MonitoringCritical {
		t.Errorf("high severity must set critical monitoring, got %s", d.State.MonitoringFrequency)
	}
}

func TestProcessAssessment_UnchangedDecisionWritesNothing(t *testing.T) {
	svc, _, events := newTestService()
	sid := uuid.New()
	ctx := context.Background()

	if _, err := svc.ProcessAssessment(ctx, sid, assessment(50), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, err := svc.ProcessAssessment(ctx, sid, assessment(50), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Escalated {
		t.Error("identical score must not escalate again")
	}
	if len(events.events) != 1 {
		t.Errorf("expected one event, got %d", len(events.events))
	}
}

func TestFlagSession_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.FlagSession(ctx, uuid.New(), "extreme", 50, "op", TriggerManual, nil, nil, "")
	if !errs.IsValidation(err) {
		t.Errorf("expected validation error for bad severity, got %v", err)
	}
	_, err = svc.FlagSession(ctx, uuid.New(), risk.SeverityHigh, 120, "op", TriggerManual, nil, nil, "")
	if !errs.IsValidation(err) {
		t.Errorf("expected validation error for score 120, got %v", err)
	}
}

func TestFlagSession_ManualFlagAndIdempotence(t *testing.T) {
	svc, states, events := newTestService()
	sid := uuid.New()
	ctx := context.Background()

	st, err := svc.FlagSession(ctx, sid, risk.SeverityMedium, 45, "op-1", TriggerManual, nil, []string{"operator_judgment"}, "worrying transcript")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Flagged || st.FlaggedBy != "op-1" {
		t.Errorf("unexpected state after manual flag: %+v", st)
	}
	if len(events.events) != 1 || events.events[0].TriggerMethod != TriggerManual {
		t.Fatalf("expected one manual event, got %+v", events.events)
	}

	// Same severity and score again: no second event.
	if _, err := svc.FlagSession(ctx, sid, risk.SeverityMedium, 45, "op-2", TriggerManual, nil, nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events.events) != 1 {
		t.Errorf("idempotent manual flag must not append an event, got %d", len(events.events))
	}
	if states.states[sid].FlaggedBy != "op-1" {
		t.Error("no-op flag must not overwrite the original flagger")
	}
}

func TestUnflagSession(t *testing.T) {
	svc, _, events := newTestService()
	sid := uuid.New()
	ctx := context.Background()

	if _, err := svc.FlagSession(ctx, sid, risk.SeverityHigh, 80, "op", TriggerManual, nil, nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, err := svc.UnflagSession(ctx, sid, "op-2", "resolved after call")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Flagged {
		t.Error("expected session unflagged")
	}
	if st.Severity != risk.SeverityNone {
		t.Errorf("expected severity none, got %s", st.Severity)
	}
	if st.MonitoringFrequency != MonitoringNormal {
		t.Errorf("unflag must reset monitoring to normal, got %s", st.MonitoringFrequency)
	}

	var unflagEvents int
	for _, e := range events.events {
		if e.EventType == EventUnflagged {
			unflagEvents++
			if e.TriggerMethod != TriggerManual || e.TriggeredBy != "op-2" {
				t.Errorf("unexpected unflag event: %+v", e)
			}
		}
	}
	if unflagEvents != 1 {
		t.Errorf("expected exactly one unflagged event, got %d", unflagEvents)
	}

	// Unflagging again is a no-op.
	before := len(events.events)
	if _, err := svc.UnflagSession(ctx, sid, "op-2", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events.events) != before {
		t.Error("repeated unflag must not append an event")
	}
}

func TestUpdateRiskScore(t *testing.T) {
	svc, _, events := newTestService()
	sid := uuid.New()
	ctx := context.Background()

	if _, err := svc.FlagSession(ctx, sid, risk.SeverityMedium, 50, "op", TriggerManual, nil, nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Unchanged values write nothing.
	before := len(events.events)
	if _, err := svc.UpdateRiskScore(ctx, sid, 50, risk.SeverityMedium, "op", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events.events) != before {
		t.Error("unchanged score update must not append an event")
	}

	st, err := svc.UpdateRiskScore(ctx, sid, 75, risk.SeverityHigh, "op", "recomputed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.RiskScore != 75 || st.Severity != risk.SeverityHigh {
		t.Errorf("unexpected state: %+v", st)
	}
	last := events.events[len(events.events)-1]
	if last.EventType != EventSeverityChanged {
		t.Errorf("severity change must record severity_changed, got %s", last.EventType)
	}
}

func TestMonitoringFor(t *testing.T) {
	cases := map[string]string{
		risk.SeverityHigh:   MonitoringCritical,
		risk.SeverityMedium: MonitoringHigh,
		risk.SeverityLow:    MonitoringNormal,
		risk.SeverityNone:   MonitoringNormal,
	}
	for severity, want := range cases {
		if got := MonitoringFor(severity); got != want {
			t.Errorf("MonitoringFor(%s): expected %s, got %s", severity, want, got)
		}
	}
}
