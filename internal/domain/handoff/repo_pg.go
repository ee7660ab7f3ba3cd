package handoff

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const handoffCols = `id, session_id, risk_score, handoff_type, status, initiated_at,
	initiated_by, assigned_to, completed_at, outcome, external_reference, notes`

func scanHandoff(row pgx.Row) (*Handoff, error) {
	var h Handoff
	err := row.Scan(&h.ID, &h.SessionID, &h.RiskScore, &h.HandoffType, &h.Status, &h.InitiatedAt,
		&h.InitiatedBy, &h.AssignedTo, &h.CompletedAt, &h.Outcome, &h.ExternalReference, &h.Notes)
	return &h, err
}

func (r *repoPG) Create(ctx context.Context, h *Handoff) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO human_handoff (id, session_id, risk_score, handoff_type, status,
			initiated_by, assigned_to, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING initiated_at`,
		h.ID, h.SessionID, h.RiskScore, h.HandoffType, h.Status,
		h.InitiatedBy, h.AssignedTo, h.Notes).Scan(&h.InitiatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Handoff, error) {
	h, err := scanHandoff(r.conn(ctx).QueryRow(ctx,
		`SELECT `+handoffCols+` FROM human_handoff WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("handoff", id.String())
	}
	return h, err
}

func (r *repoPG) UpdateStatus(ctx context.Context, h *Handoff, expectedStatus string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE human_handoff SET status=$2, assigned_to=$3, completed_at=$4,
			outcome=$5, external_reference=$6, notes=$7
		WHERE id = $1 AND status = $8`,
		h.ID, h.Status, h.AssignedTo, h.CompletedAt,
		h.Outcome, h.ExternalReference, h.Notes, expectedStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Concurrency("handoff %s changed status concurrently (expected %s)", h.ID, expectedStatus)
	}
	return nil
}

func (r *repoPG) ListPending(ctx context.Context, limit, offset int) ([]*Handoff, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM human_handoff WHERE status = $1`, StatusPending).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+handoffCols+` FROM human_handoff
		WHERE status = $1 ORDER BY risk_score DESC, initiated_at ASC LIMIT $2 OFFSET $3`,
		StatusPending, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectHandoffs(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Handoff, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM human_handoff WHERE session_id = $1`, sessionID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+handoffCols+` FROM human_handoff
		WHERE session_id = $1 ORDER BY initiated_at DESC LIMIT $2 OFFSET $3`,
		sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectHandoffs(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collectHandoffs(rows pgx.Rows) ([]*Handoff, error) {
	var items []*Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}
