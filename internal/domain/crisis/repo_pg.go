package crisis

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vigil/vigil/internal/platform/db"
	"github.com/vigil/vigil/pkg/errs"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== State Repository ===========

type stateRepoPG struct{ pool *pgxpool.Pool }

func NewStateRepoPG(pool *pgxpool.Pool) StateRepository {
	return &stateRepoPG{pool: pool}
}

func (r *stateRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const stateCols = `session_id, flagged, severity, risk_score, monitoring_frequency,
	flagged_at, flagged_by, unflagged_at, unflagged_by, updated_at`

func scanState(row pgx.Row) (*State, error) {
	var s State
	err := row.Scan(&s.SessionID, &s.Flagged, &s.Severity, &s.RiskScore, &s.MonitoringFrequency,
		&s.FlaggedAt, &s.FlaggedBy, &s.UnflaggedAt, &s.UnflaggedBy, &s.UpdatedAt)
	return &s, err
}

func (r *stateRepoPG) Get(ctx context.Context, sessionID uuid.UUID) (*State, error) {
	s, err := scanState(r.conn(ctx).QueryRow(ctx,
		`SELECT `+stateCols+` FROM session_crisis_state WHERE session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("session crisis state", sessionID.String())
	}
	return s, err
}

func (r *stateRepoPG) GetForUpdate(ctx context.Context, sessionID uuid.UUID) (*State, error) {
	// First reference creates the row so there is always something to lock.
	if _, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO session_crisis_state (session_id) VALUES ($1)
		ON CONFLICT (session_id) DO NOTHING`, sessionID); err != nil {
		return nil, err
	}
	return scanState(r.conn(ctx).QueryRow(ctx,
		`SELECT `+stateCols+` FROM session_crisis_state WHERE session_id = $1 FOR UPDATE`, sessionID))
}

func (r *stateRepoPG) Update(ctx context.Context, s *State) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE session_crisis_state SET flagged=$2, severity=$3, risk_score=$4,
			monitoring_frequency=$5, flagged_at=$6, flagged_by=$7,
			unflagged_at=$8, unflagged_by=$9, updated_at=NOW()
		WHERE session_id = $1`,
		s.SessionID, s.Flagged, s.Severity, s.RiskScore,
		s.MonitoringFrequency, s.FlaggedAt, s.FlaggedBy,
		s.UnflaggedAt, s.UnflaggedBy)
	return err
}

func (r *stateRepoPG) ListActive(ctx context.Context, limit, offset int) ([]*State, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM session_crisis_state WHERE flagged`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+stateCols+` FROM session_crisis_state
		WHERE flagged ORDER BY risk_score DESC, updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*State
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// =========== Event Repository ===========

type eventRepoPG struct{ pool *pgxpool.Pool }

func NewEventRepoPG(pool *pgxpool.Pool) EventRepository {
	return &eventRepoPG{pool: pool}
}

func (r *eventRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const eventCols = `id, session_id, event_type, severity, previous_severity,
	risk_score, previous_risk_score, triggered_by, trigger_method, message_ref,
	risk_factors, intervention_details, notes, created_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.SessionID, &e.EventType, &e.Severity, &e.PreviousSeverity,
		&e.RiskScore, &e.PreviousRiskScore, &e.TriggeredBy, &e.TriggerMethod, &e.MessageRef,
		&e.RiskFactors, &e.InterventionDetails, &e.Notes, &e.CreatedAt)
	return &e, err
}

func (r *eventRepoPG) Create(ctx context.Context, e *Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	factors := e.RiskFactors
	if factors == nil {
		factors = []string{}
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO crisis_event (id, session_id, event_type, severity, previous_severity,
			risk_score, previous_risk_score, triggered_by, trigger_method, message_ref,
			risk_factors, intervention_details, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at`,
		e.ID, e.SessionID, e.EventType, e.Severity, e.PreviousSeverity,
		e.RiskScore, e.PreviousRiskScore, e.TriggeredBy, e.TriggerMethod, e.MessageRef,
		factors, e.InterventionDetails, e.Notes).Scan(&e.CreatedAt)
}

func (r *eventRepoPG) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM crisis_event WHERE session_id = $1`, sessionID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+eventCols+` FROM crisis_event
		WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

// =========== Intervention Repository ===========

type interventionRepoPG struct{ pool *pgxpool.Pool }

func NewInterventionRepoPG(pool *pgxpool.Pool) InterventionRepository {
	return &interventionRepoPG{pool: pool}
}

func (r *interventionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const interventionCols = `id, session_id, action_type, risk_score, details,
	performed_by, performed_at, outcome, notes`

func scanIntervention(row pgx.Row) (*Intervention, error) {
	var a Intervention
	err := row.Scan(&a.ID, &a.SessionID, &a.ActionType, &a.RiskScore, &a.Details,
		&a.PerformedBy, &a.PerformedAt, &a.Outcome, &a.Notes)
	return &a, err
}

func (r *interventionRepoPG) Create(ctx context.Context, a *Intervention) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.PerformedBy == "" {
		a.PerformedBy = "system"
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO intervention_action (id, session_id, action_type, risk_score,
			details, performed_by, outcome, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING performed_at`,
		a.ID, a.SessionID, a.ActionType, a.RiskScore,
		a.Details, a.PerformedBy, a.Outcome, a.Notes).Scan(&a.PerformedAt)
}

func (r *interventionRepoPG) UpdateOutcome(ctx context.Context, id uuid.UUID, outcome, notes string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE intervention_action SET outcome=$2, notes=$3 WHERE id = $1`,
		id, outcome, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("intervention action", id.String())
	}
	return nil
}

func (r *interventionRepoPG) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Intervention, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM intervention_action WHERE session_id = $1`, sessionID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+interventionCols+` FROM intervention_action
		WHERE session_id = $1 ORDER BY performed_at DESC LIMIT $2 OFFSET $3`,
		sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Intervention
	for rows.Next() {
		a, err := scanIntervention(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
