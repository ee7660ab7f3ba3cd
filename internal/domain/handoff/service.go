package handoff

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/domain/risk"
	"github.com/vigil/vigil/internal/platform/alerting"
	"github.com/vigil/vigil/internal/platform/db"
	"github.com/vigil/vigil/pkg/errs"
)

// Handoffs with a risk score at or above this get an automatic post-crisis
// clinical review.
const reviewScoreThreshold = 70

var validTypes = map[string]bool{
	TypeCrisisHotline:        true,
	TypeClinicalReview:       true,
	TypeEmergencyServices:    true,
	TypeSupervisorEscalation: true,
}

var validStatuses = map[string]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

// ClinicalReviewRequester opens a clinical review for a session. The review
// workflow implements this.
type ClinicalReviewRequester interface {
	RequestAuto(ctx context.Context, sessionID uuid.UUID, riskScore int, reason string) error
}

// StatusUpdate carries the operator-settable fields of a status transition.
type StatusUpdate struct {
	Status            string `json:"status"`
	AssignedTo        string `json:"assigned_to,omitempty"`
	Outcome           string `json:"outcome,omitempty"`
	ExternalReference string `json:"external_reference,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// Service manages the human handoff lifecycle.
type Service struct {
	repo       Repository
	events     crisis.EventRepository
	reviews    ClinicalReviewRequester
	notifier   alerting.Notifier
	inTx       db.TxRunner
	thresholds risk.Thresholds
	logger     zerolog.Logger
}

func NewService(repo Repository, events crisis.EventRepository, reviews ClinicalReviewRequester, notifier alerting.Notifier, inTx db.TxRunner, thresholds risk.Thresholds, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		events:     events,
		reviews:    reviews,
		notifier:   notifier,
		inTx:       inTx,
		thresholds: thresholds,
		logger:     logger,
	}
}

// InitiateAuto starts the default crisis-hotline handoff for a high-severity
// escalation.
func (s *Service) InitiateAuto(ctx context.Context, sessionID uuid.UUID, riskScore int) error {
	_, err := s.Initiate(ctx, sessionID, riskScore, TypeCrisisHotline, "system")
	return err
}

// Initiate creates a handoff in pending state, writes its audit event, and
// opens a post-crisis clinical review when the risk score warrants one. All
// writes commit atomically.
func (s *Service) Initiate(ctx context.Context, sessionID uuid.UUID, riskScore int, handoffType, initiatedBy string) (*Handoff, error) {
	if !validTypes[handoffType] {
		return nil, errs.Validation("unknown handoff type %q", handoffType)
	}
	if riskScore < 0 || riskScore > 100 {
		return nil, errs.Validation("risk score must be in [0,100], got %d", riskScore)
	}

	method := crisis.TriggerManual
	if initiatedBy == "system" {
		method = crisis.TriggerSystem
	}
	h := &Handoff{
		SessionID:   sessionID,
		RiskScore:   riskScore,
		HandoffType: handoffType,
		Status:      StatusPending,
		InitiatedBy: initiatedBy,
	}
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, h); err != nil {
			return errs.Persistence("create handoff", err)
		}
		if err := s.events.Create(ctx, &crisis.Event{
			SessionID:     sessionID,
			EventType:     crisis.EventHandoffInitiated,
			Severity:      s.thresholds.SeverityFor(riskScore),
			RiskScore:     riskScore,
			TriggeredBy:   initiatedBy,
			TriggerMethod: method,
			Notes:         fmt.Sprintf("handoff type %s", handoffType),
		}); err != nil {
			return errs.Persistence("append handoff event", err)
		}
		if riskScore >= reviewScoreThreshold {
			reason := fmt.Sprintf("automatic post-crisis review, handoff %s at score %d", handoffType, riskScore)
			if err := s.reviews.RequestAuto(ctx, sessionID, riskScore, reason); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyHandoff(ctx, h.ID, sessionID, h.Status); err != nil {
		s.logger.Warn().Err(err).Str("handoff_id", h.ID.String()).
			Msg("handoff notification failed")
	}
	return h, nil
}

// UpdateStatus applies a guarded lifecycle transition. Transitions out of a
// terminal state are rejected; a concurrent transition surfaces as a
// ConcurrencyError for the caller to re-fetch and retry.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, upd StatusUpdate) (*Handoff, error) {
	if !validStatuses[upd.Status] {
		return nil, errs.Validation("unknown handoff status %q", upd.Status)
	}

	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(h.Status) {
		return nil, errs.Concurrency("handoff %s is already %s", id, h.Status)
	}
	if !CanTransition(h.Status, upd.Status) {
		return nil, errs.Validation("cannot transition handoff from %s to %s", h.Status, upd.Status)
	}

	expected := h.Status
	h.Status = upd.Status
	if upd.AssignedTo != "" {
		h.AssignedTo = upd.AssignedTo
	}
	if upd.Outcome != "" {
		h.Outcome = upd.Outcome
	}
	if upd.ExternalReference != "" {
		h.ExternalReference = upd.ExternalReference
	}
	if upd.Notes != "" {
		h.Notes = upd.Notes
	}
	if IsTerminal(upd.Status) {
		now := time.Now().UTC()
		h.CompletedAt = &now
	}

	if err := s.repo.UpdateStatus(ctx, h, expected); err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyHandoff(ctx, h.ID, h.SessionID, h.Status); err != nil {
		s.logger.Warn().Err(err).Str("handoff_id", h.ID.String()).
			Msg("handoff notification failed")
	}
	return h, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Handoff, error) {
	return s.repo.GetByID(ctx, id)
}

// ListPending returns open handoffs, highest risk first, oldest first
// within a score.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*Handoff, int, error) {
	items, total, err := s.repo.ListPending(ctx, limit, offset)
	if err != nil {
		return nil, 0, errs.Persistence("list pending handoffs", err)
	}
	return items, total, nil
}

func (s *Service) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Handoff, int, error) {
	items, total, err := s.repo.ListBySession(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, 0, errs.Persistence("list session handoffs", err)
	}
	return items, total, nil
}
