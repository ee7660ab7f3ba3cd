package review

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/domain/risk"
	"github.com/vigil/vigil/internal/platform/db"
	"github.com/vigil/vigil/pkg/errs"
)

var validTypes = map[string]bool{
	TypePostCrisis:           true,
	TypeQualityAssurance:     true,
	TypeComplianceAudit:      true,
	TypeTherapeuticOversight: true,
}

var validStatuses = map[string]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
}

var validCompliance = map[string]bool{
	ComplianceCompliant:     true,
	ComplianceNonCompliant:  true,
	ComplianceNeedsFollowup: true,
}

// StatusUpdate carries the reviewer-settable fields of a status transition.
// ComplianceStatus is accepted only on completion.
type StatusUpdate struct {
	Status           string `json:"status"`
	AssignedTo       string `json:"assigned_to,omitempty"`
	Findings         string `json:"findings,omitempty"`
	Recommendations  string `json:"recommendations,omitempty"`
	ComplianceStatus string `json:"compliance_status,omitempty"`
}

// Service manages the clinical review lifecycle.
type Service struct {
	repo       Repository
	events     crisis.EventRepository
	inTx       db.TxRunner
	thresholds risk.Thresholds
	logger     zerolog.Logger
}

func NewService(repo Repository, events crisis.EventRepository, inTx db.TxRunner, thresholds risk.Thresholds, logger zerolog.Logger) *Service {
	return &Service{repo: repo, events: events, inTx: inTx, thresholds: thresholds, logger: logger}
}

// RequestAuto opens the post-crisis review that accompanies a high-risk
// handoff. Runs inside the caller's transaction when one is open.
func (s *Service) RequestAuto(ctx context.Context, sessionID uuid.UUID, riskScore int, reason string) error {
	rv := &Review{
		SessionID:    sessionID,
		RiskScore:    riskScore,
		ReviewReason: reason,
		ReviewType:   TypePostCrisis,
		Status:       StatusPending,
		RequestedBy:  "system",
	}
	if err := s.repo.Create(ctx, rv); err != nil {
		return errs.Persistence("create clinical review", err)
	}
	if err := s.events.Create(ctx, &crisis.Event{
		SessionID:     sessionID,
		EventType:     crisis.EventClinicalReviewRequested,
		Severity:      s.thresholds.SeverityFor(riskScore),
		RiskScore:     riskScore,
		TriggeredBy:   "system",
		TriggerMethod: crisis.TriggerSystem,
		Notes:         reason,
	}); err != nil {
		return errs.Persistence("append review event", err)
	}
	return nil
}

// Request opens a review on operator demand.
func (s *Service) Request(ctx context.Context, sessionID uuid.UUID, riskScore int, reason, reviewType, requestedBy string) (*Review, error) {
	if !validTypes[reviewType] {
		return nil, errs.Validation("unknown review type %q", reviewType)
	}
	if riskScore < 0 || riskScore > 100 {
		return nil, errs.Validation("risk score must be in [0,100], got %d", riskScore)
	}
	if reason == "" {
		return nil, errs.Validation("review reason is required")
	}

	rv := &Review{
		SessionID:    sessionID,
		RiskScore:    riskScore,
		ReviewReason: reason,
		ReviewType:   reviewType,
		Status:       StatusPending,
		RequestedBy:  requestedBy,
	}
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, rv); err != nil {
			return errs.Persistence("create clinical review", err)
		}
		if err := s.events.Create(ctx, &crisis.Event{
			SessionID:     sessionID,
			EventType:     crisis.EventClinicalReviewRequested,
			Severity:      s.thresholds.SeverityFor(riskScore),
			RiskScore:     riskScore,
			TriggeredBy:   requestedBy,
			TriggerMethod: crisis.TriggerManual,
			Notes:         reason,
		}); err != nil {
			return errs.Persistence("append review event", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rv, nil
}

// UpdateStatus applies a guarded lifecycle transition. A compliance verdict
// is only meaningful when the review completes and is rejected earlier.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, upd StatusUpdate) (*Review, error) {
	if !validStatuses[upd.Status] {
		return nil, errs.Validation("unknown review status %q", upd.Status)
	}
	if upd.ComplianceStatus != "" {
		if upd.Status != StatusCompleted {
			return nil, errs.Validation("compliance status can only be set on completion")
		}
		if !validCompliance[upd.ComplianceStatus] {
			return nil, errs.Validation("unknown compliance status %q", upd.ComplianceStatus)
		}
	}

	rv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(rv.Status) {
		return nil, errs.Concurrency("clinical review %s is already %s", id, rv.Status)
	}
	if !CanTransition(rv.Status, upd.Status) {
		return nil, errs.Validation("cannot transition review from %s to %s", rv.Status, upd.Status)
	}

	expected := rv.Status
	rv.Status = upd.Status
	if upd.AssignedTo != "" {
		rv.AssignedTo = upd.AssignedTo
	}
	if upd.Findings != "" {
		rv.Findings = upd.Findings
	}
	if upd.Recommendations != "" {
		rv.Recommendations = upd.Recommendations
	}
	if upd.Status == StatusCompleted {
		now := time.Now().UTC()
		rv.ReviewedAt = &now
		rv.ComplianceStatus = upd.ComplianceStatus
	}

	if err := s.repo.UpdateStatus(ctx, rv, expected); err != nil {
		return nil, err
	}
	return rv, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Review, error) {
	return s.repo.GetByID(ctx, id)
}

// ListPending returns open reviews, highest risk first, oldest first within
// a score.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*Review, int, error) {
	items, total, err := s.repo.ListPending(ctx, limit, offset)
	if err != nil {
		return nil, 0, errs.Persistence("list pending reviews", err)
	}
	return items, total, nil
}

func (s *Service) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	items, total, err := s.repo.ListBySession(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, 0, errs.Persistence("list session reviews", err)
	}
	return items, total, nil
}
