package risk

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vigil/vigil/internal/platform/db"
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

const historyCols = `id, session_id, risk_score, severity, keyword_score, sentiment_score,
	context_score, trajectory_score, matched_keywords, trend, calculated_at`

func scanHistory(row pgx.Row) (*ScoreHistory, error) {
	var h ScoreHistory
	err := row.Scan(&h.ID, &h.SessionID, &h.RiskScore, &h.Severity,
		&h.Factors.KeywordScore, &h.Factors.SentimentScore,
		&h.Factors.ContextScore, &h.Factors.TrajectoryScore,
		&h.Factors.MatchedKeywords, &h.Factors.Trend, &h.CalculatedAt)
	return &h, err
}

func (r *repoPG) Create(ctx context.Context, h *ScoreHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	matched := h.Factors.MatchedKeywords
	if matched == nil {
		matched = []string{}
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO risk_score_history (id, session_id, risk_score, severity,
			keyword_score, sentiment_score, context_score, trajectory_score,
			matched_keywords, trend)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING calculated_at`,
		h.ID, h.SessionID, h.RiskScore, h.Severity,
		h.Factors.KeywordScore, h.Factors.SentimentScore,
		h.Factors.ContextScore, h.Factors.TrajectoryScore,
		matched, h.Factors.Trend).Scan(&h.CalculatedAt)
}

func (r *repoPG) ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*ScoreHistory, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+historyCols+` FROM (
			SELECT `+historyCols+` FROM risk_score_history
			WHERE session_id = $1
			ORDER BY calculated_at DESC LIMIT $2
		) recent ORDER BY calculated_at ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHistory(rows)
}

func (r *repoPG) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*ScoreHistory, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM risk_score_history WHERE session_id = $1`, sessionID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+historyCols+` FROM risk_score_history
		WHERE session_id = $1 ORDER BY calculated_at DESC LIMIT $2 OFFSET $3`,
		sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectHistory(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collectHistory(rows pgx.Rows) ([]*ScoreHistory, error) {
	var items []*ScoreHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}
