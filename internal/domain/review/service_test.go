package review

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/domain/risk"
	"github.com/vigil/vigil/pkg/errs"
)

type mockRepo struct {
	reviews map[uuid.UUID]*Review
	// storedStatus simulates what another reviewer may have written.
	storedStatus map[uuid.UUID]string
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		reviews:      make(map[uuid.UUID]*Review),
		storedStatus: make(map[uuid.UUID]string),
	}
}

func (m *mockRepo) Create(_ context.Context, rv *Review) error {
	rv.ID = uuid.New()
	rv.RequestedAt = time.Now().UTC()
	clone := *rv
	m.reviews[rv.ID] = &clone
	m.storedStatus[rv.ID] = rv.Status
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Review, error) {
	rv, ok := m.reviews[id]
	if !ok {
		return nil, errs.NotFound("clinical review", id.String())
	}
	clone := *rv
	return &clone, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, rv *Review, expectedStatus string) error {
	if m.storedStatus[rv.ID] != expectedStatus {
		return errs.Concurrency("clinical review %s changed status concurrently (expected %s)", rv.ID, expectedStatus)
	}
	clone := *rv
	m.reviews[rv.ID] = &clone
	m.storedStatus[rv.ID] = rv.Status
	return nil
}

func (m *mockRepo) ListPending(_ context.Context, limit, offset int) ([]*Review, int, error) {
	var out []*Review
	for _, rv := range m.reviews {
		if rv.Status == StatusPending {
			out = append(out, rv)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListBySession(_ context.Context, sessionID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	var out []*Review
	for _, rv := range m.reviews {
		if rv.SessionID == sessionID {
			out = append(out, rv)
		}
	}
	return out, len(out), nil
}

type mockEventRepo struct {
	events []*crisis.Event
}

func (m *mockEventRepo) Create(_ context.Context, e *crisis.Event) error {
	e.ID = uuid.New()
	m.events = append(m.events, e)
	return nil
}

func (m *mockEventRepo) ListBySession(_ context.Context, sessionID uuid.UUID, limit, offset int) ([]*crisis.Event, int, error) {
	return m.events, len(m.events), nil
}

func passTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockRepo, *mockEventRepo) {
	repo := newMockRepo()
	events := &mockEventRepo{}
	svc := NewService(repo, events, passTx, risk.DefaultThresholds(), zerolog.Nop())
	return svc, repo, events
}

func TestRequest_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Request(ctx, uuid.New(), 50, "why", "peer_review", "op"); !errs.IsValidation(err) {
		t.Errorf("expected validation error for unknown type, got %v", err)
	}
	if _, err := svc.Request(ctx, uuid.New(), -1, "why", TypeQualityAssurance, "op"); !errs.IsValidation(err) {
		t.Errorf("expected validation error for negative score, got %v", err)
	}
	if _, err := svc.Request(ctx, uuid.New(), 50, "", TypeQualityAssurance, "op"); !errs.IsValidation(err) {
		t.Errorf("expected validation error for empty reason, got %v", err)
	}
}

func TestRequest_WritesRecordAndEvent(t *testing.T) {
	svc, _, events := newTestService()
	sid := uuid.New()

	rv, err := svc.Request(context.Background(), sid, 40, "spot check", TypeQualityAssurance, "sup-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rv.Status != StatusPending || rv.RequestedBy != "sup-2" {
		t.Errorf("unexpected review: %+v", rv)
	}
	if len(events.events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(events.events))
	}
	e := events.events[0]
	if e.EventType != crisis.EventClinicalReviewRequested || e.TriggerMethod != crisis.TriggerManual {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestRequest_EventSeverityUsesConfiguredThresholds(t *testing.T) {
	repo := newMockRepo()
	events := &mockEventRepo{}
	// Retuned cut points: 60 is high here, medium under the defaults.
	thresholds := risk.Thresholds{MediumMin: 20, HighMin: 50}
	svc := NewService(repo, events, passTx, thresholds, zerolog.Nop())

	if _, err := svc.Request(context.Background(), uuid.New(), 60, "spot check", TypeQualityAssurance, "sup"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events.events) != 1 || events.events[0].Severity != risk.SeverityHigh {
		t.Errorf("expected high severity under retuned thresholds, got %+v", events.events)
	}
}

func TestRequestAuto_PostCrisisBySystem(t *testing.T) {
	svc, repo, events := newTestService()
	sid := uuid.New()

	if err := svc.RequestAuto(context.Background(), sid, 85, "high-risk handoff"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, rv := range repo.reviews {
		if rv.ReviewType != TypePostCrisis || rv.RequestedBy != "system" {
			t.Errorf("auto review must be a system post_crisis, got %+v", rv)
		}
	}
	if len(events.events) != 1 || events.events[0].TriggerMethod != crisis.TriggerSystem {
		t.Errorf("expected one system-triggered event, got %+v", events.events)
	}
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	svc, _, _ := newTestService()

	rv, err := svc.Request(context.Background(), uuid.New(), 80, "post-incident", TypePostCrisis, "sup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rv, err = svc.UpdateStatus(context.Background(), rv.ID, StatusUpdate{Status: StatusInProgress, AssignedTo: "clin-3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rv.Status != StatusInProgress || rv.AssignedTo != "clin-3" {
		t.Errorf("unexpected state: %+v", rv)
	}

	rv, err = svc.UpdateStatus(context.Background(), rv.ID, StatusUpdate{
		Status:           StatusCompleted,
		Findings:         "protocol followed",
		Recommendations:  "none",
		ComplianceStatus: ComplianceCompliant,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rv.ReviewedAt == nil {
		t.Error("completion must set reviewed_at")
	}
	if rv.ComplianceStatus != ComplianceCompliant {
		t.Errorf("expected compliant verdict, got %q", rv.ComplianceStatus)
	}
}

func TestUpdateStatus_SkippedStepRejected(t *testing.T) {
	svc, _, _ := newTestService()

	rv, err := svc.Request(context.Background(), uuid.New(), 60, "audit", TypeComplianceAudit, "sup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// pending → completed skips in_progress.
	if _, err := svc.UpdateStatus(context.Background(), rv.ID, StatusUpdate{Status: StatusCompleted}); !errs.IsValidation(err) {
		t.Errorf("expected validation error for illegal step, got %v", err)
	}
}

func TestUpdateStatus_ComplianceOnlyAtCompletion(t *testing.T) {
	svc, _, _ := newTestService()

	rv, err := svc.Request(context.Background(), uuid.New(), 60, "audit", TypeComplianceAudit, "sup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = svc.UpdateStatus(context.Background(), rv.ID, StatusUpdate{
		Status:           StatusInProgress,
		ComplianceStatus: ComplianceCompliant,
	})
	if !errs.IsValidation(err) {
		t.Errorf("compliance verdict before completion must be rejected, got %v", err)
	}

	rv, err = svc.UpdateStatus(context.Background(), rv.ID, StatusUpdate{Status: StatusInProgress})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = svc.UpdateStatus(context.Background(), rv.ID, StatusUpdate{
		Status:           StatusCompleted,
		ComplianceStatus: "mostly_fine",
	})
	if !errs.IsValidation(err) {
		t.Errorf("unknown compliance verdict must be rejected, got %v", err)
	}
}

func TestUpdateStatus_TerminalRejected(t *testing.T) {
	svc, _, _ := newTestService()

	rv, err := svc.Request(context.Background(), uuid.New(), 60, "audit", TypeComplianceAudit, "sup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), rv.ID, StatusUpdate{Status: StatusInProgress}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), rv.ID, StatusUpdate{Status: StatusCompleted}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), rv.ID, StatusUpdate{Status: StatusInProgress})
	if !errs.IsConcurrency(err) {
		t.Errorf("transition from terminal state must be a concurrency error, got %v", err)
	}
}

func TestUpdateStatus_ConcurrentTransition(t *testing.T) {
	svc, repo, _ := newTestService()

	rv, err := svc.Request(context.Background(), uuid.New(), 60, "audit", TypeComplianceAudit, "sup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Another reviewer moved it underneath us.
	repo.storedStatus[rv.ID] = StatusInProgress

	_, err = svc.UpdateStatus(context.Background(), rv.ID, StatusUpdate{Status: StatusInProgress})
	if !errs.IsConcurrency(err) {
		t.Errorf("expected concurrency error, got %v", err)
	}
}
