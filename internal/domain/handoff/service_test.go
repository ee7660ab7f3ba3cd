package handoff

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/domain/risk"
	"github.com/vigil/vigil/internal/platform/alerting"
	"github.com/vigil/vigil/pkg/errs"
)

type mockRepo struct {
	handoffs map[uuid.UUID]*Handoff
	// storedStatus simulates what another operator may have written.
	storedStatus map[uuid.UUID]string
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		handoffs:     make(map[uuid.UUID]*Handoff),
		storedStatus: make(map[uuid.UUID]string),
	}
}

func (m *mockRepo) Create(_ context.Context, h *Handoff) error {
	h.ID = uuid.New()
	h.InitiatedAt = time.Now().UTC()
	clone := *h
	m.handoffs[h.ID] = &clone
	m.storedStatus[h.ID] = h.Status
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Handoff, error) {
	h, ok := m.handoffs[id]
	if !ok {
		return nil, errs.NotFound("handoff", id.String())
	}
	clone := *h
	return &clone, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, h *Handoff, expectedStatus string) error {
	if m.storedStatus[h.ID] != expectedStatus {
		return errs.Concurrency("handoff %s changed status concurrently (expected %s)", h.ID, expectedStatus)
	}
	clone := *h
	m.handoffs[h.ID] = &clone
	m.storedStatus[h.ID] = h.Status
	return nil
}

func (m *mockRepo) ListPending(_ context.Context, limit, offset int) ([]*Handoff, int, error) {
	var out []*Handoff
	for _, h := range m.handoffs {
		if h.Status == StatusPending {
			out = append(out, h)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListBySession(_ context.Context, sessionID uuid.UUID, limit, offset int) ([]*Handoff, int, error) {
	var out []*Handoff
	for _, h := range m.handoffs {
		if h.SessionID == sessionID {
			out = append(out, h)
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

type mockReviewRequester struct {
	requests []uuid.UUID
	err      error
}

func (m *mockReviewRequester) RequestAuto(_ context.Context, sessionID uuid.UUID, riskScore int, reason string) error {
	if m.err != nil {
		return m.err
	}
	m.requests = append(m.requests, sessionID)
	return nil
}

func passTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockRepo, *mockEventRepo, *mockReviewRequester, *alerting.MockNotifier) {
	repo := newMockRepo()
	events := &mockEventRepo{}
	reviews := &mockReviewRequester{}
	notifier := &alerting.MockNotifier{}
	svc := NewService(repo, events, reviews, notifier, passTx, risk.DefaultThresholds(), zerolog.Nop())
	return svc, repo, events, reviews, notifier
}

func TestInitiate_Validation(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, uuid.New(), 50, "carrier_pigeon", "op"); !errs.IsValidation(err) {
		t.Errorf("expected validation error for unknown type, got %v", err)
	}
	if _, err := svc.Initiate(ctx, uuid.New(), 150, TypeCrisisHotline, "op"); !errs.IsValidation(err) {
		t.Errorf("expected validation error for score 150, got %v", err)
	}
}

func TestInitiate_WritesRecordAndEvent(t *testing.T) {
	svc, _, events, reviews, notifier := newTestService()
	sid := uuid.New()

	h, err := svc.Initiate(context.Background(), sid, 60, TypeSupervisorEscalation, "op-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Status != StatusPending {
		t.Errorf("new handoff must be pending, got %s", h.Status)
	}
	if len(events.events) != 1 || events.events[0].EventType != crisis.EventHandoffInitiated {
		t.Errorf("expected one handoff_initiated event, got %+v", events.events)
	}
	// Score below the review threshold: no auto review.
	if len(reviews.requests) != 0 {
		t.Errorf("score 60 must not open a review, got %v", reviews.requests)
	}
	calls := notifier.Calls()
	if len(calls) != 1 || calls[0].Kind != "handoff" || calls[0].Status != StatusPending {
		t.Errorf("expected pending handoff notification, got %+v", calls)
	}
}

func TestInitiate_EventSeverityUsesConfiguredThresholds(t *testing.T) {
	repo := newMockRepo()
	events := &mockEventRepo{}
	// Retuned cut points: 60 is high here, medium under the defaults.
	thresholds := risk.Thresholds{MediumMin: 20, HighMin: 50}
	svc := NewService(repo, events, &mockReviewRequester{}, &alerting.MockNotifier{}, passTx, thresholds, zerolog.Nop())

	if _, err := svc.Initiate(context.Background(), uuid.New(), 60, TypeCrisisHotline, "op"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events.events) != 1 || events.events[0].Severity != risk.SeverityHigh {
		t.Errorf("expected high severity under retuned thresholds, got %+v", events.events)
	}
}

func TestInitiateAuto_HighScoreOpensReview(t *testing.T) {
	svc, repo, _, reviews, _ := newTestService()
	sid := uuid.New()

	if err := svc.InitiateAuto(context.Background(), sid, 85); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reviews.requests) != 1 || reviews.requests[0] != sid {
		t.Errorf("score 85 must open a post-crisis review, got %v", reviews.requests)
	}
	for _, h := range repo.handoffs {
		if h.HandoffType != TypeCrisisHotline || h.InitiatedBy != "system" {
			t.Errorf("auto handoff must be a system crisis_hotline, got %+v", h)
		}
	}
}

func TestInitiate_ReviewFailureRollsUp(t *testing.T) {
	svc, _, _, reviews, _ := newTestService()
	reviews.err = errs.Persistence("create review", context.DeadlineExceeded)

	if _, err := svc.Initiate(context.Background(), uuid.New(), 90, TypeCrisisHotline, "system"); err == nil {
		t.Fatal("review failure inside the transaction must propagate")
	}
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	svc, _, _, _, notifier := newTestService()
	sid := uuid.New()

	h, err := svc.Initiate(context.Background(), sid, 50, TypeCrisisHotline, "op")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, err = svc.UpdateStatus(context.Background(), h.ID, StatusUpdate{Status: StatusInProgress, AssignedTo: "responder-7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Status != StatusInProgress || h.AssignedTo != "responder-7" {
		t.Errorf("unexpected state: %+v", h)
	}

	h, err = svc.UpdateStatus(context.Background(), h.ID, StatusUpdate{Status: StatusCompleted, Outcome: "connected to hotline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.CompletedAt == nil {
		t.Error("terminal transition must set completed_at")
	}

	// One notification per lifecycle change plus the initiation.
	if got := len(notifier.Calls()); got != 3 {
		t.Errorf("expected 3 notifications, got %d", got)
	}
}

func TestUpdateStatus_TerminalRejected(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	h, err := svc.Initiate(context.Background(), uuid.New(), 50, TypeCrisisHotline, "op")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), h.ID, StatusUpdate{Status: StatusCancelled}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), h.ID, StatusUpdate{Status: StatusInProgress})
	if !errs.IsConcurrency(err) {
		t.Errorf("transition from terminal state must be a concurrency error, got %v", err)
	}
}

func TestUpdateStatus_InvalidStep(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	h, err := svc.Initiate(context.Background(), uuid.New(), 50, TypeCrisisHotline, "op")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// pending → completed skips in_progress.
	if _, err := svc.UpdateStatus(context.Background(), h.ID, StatusUpdate{Status: StatusCompleted}); !errs.IsValidation(err) {
		t.Errorf("expected validation error for illegal step, got %v", err)
	}
}

func TestUpdateStatus_ConcurrentTransition(t *testing.T) {
	svc, repo, _, _, _ := newTestService()

	h, err := svc.Initiate(context.Background(), uuid.New(), 50, TypeCrisisHotline, "op")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Another operator moved it underneath us.
	repo.storedStatus[h.ID] = StatusInProgress

	_, err = svc.UpdateStatus(context.Background(), h.ID, StatusUpdate{Status: StatusInProgress})
	if !errs.IsConcurrency(err) {
		t.Errorf("expected concurrency error, got %v", err)
	}
}
