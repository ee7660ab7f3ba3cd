package review

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

const reviewCols = `id, session_id, risk_score, review_reason, review_type, status,
	requested_at, requested_by, assigned_to, reviewed_at, findings,
	recommendations, compliance_status`

func scanReview(row pgx.Row) (*Review, error) {
	var rv Review
	err := row.Scan(&rv.ID, &rv.SessionID, &rv.RiskScore, &rv.ReviewReason, &rv.ReviewType, &rv.Status,
		&rv.RequestedAt, &rv.RequestedBy, &rv.AssignedTo, &rv.ReviewedAt, &rv.Findings,
		&rv.Recommendations, &rv.ComplianceStatus)
	return &rv, err
}

func (r *repoPG) Create(ctx context.Context, rv *Review) error {
	if rv.ID == uuid.Nil {
		rv.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_review (id, session_id, risk_score, review_reason,
			review_type, status, requested_by, assigned_to)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING requested_at`,
		rv.ID, rv.SessionID, rv.RiskScore, rv.ReviewReason,
		rv.ReviewType, rv.Status, rv.RequestedBy, rv.AssignedTo).Scan(&rv.RequestedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Review, error) {
	rv, err := scanReview(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reviewCols+` FROM clinical_review WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("clinical review", id.String())
	}
	return rv, err
}

func (r *repoPG) UpdateStatus(ctx context.Context, rv *Review, expectedStatus string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_review SET status=$2, assigned_to=$3, reviewed_at=$4,
			findings=$5, recommendations=$6, compliance_status=$7
		WHERE id = $1 AND status = $8`,
		rv.ID, rv.Status, rv.AssignedTo, rv.ReviewedAt,
		rv.Findings, rv.Recommendations, rv.ComplianceStatus, expectedStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Concurrency("clinical review %s changed status concurrently (expected %s)", rv.ID, expectedStatus)
	}
	return nil
}

func (r *repoPG) ListPending(ctx context.Context, limit, offset int) ([]*Review, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM clinical_review WHERE status = $1`, StatusPending).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+reviewCols+` FROM clinical_review
		WHERE status = $1 ORDER BY risk_score DESC, requested_at ASC LIMIT $2 OFFSET $3`,
		StatusPending, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectReviews(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM clinical_review WHERE session_id = $1`, sessionID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+reviewCols+` FROM clinical_review
		WHERE session_id = $1 ORDER BY requested_at DESC LIMIT $2 OFFSET $3`,
		sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectReviews(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collectReviews(rows pgx.Rows) ([]*Review, error) {
	var items []*Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rv)
	}
	return items, rows.Err()
}
