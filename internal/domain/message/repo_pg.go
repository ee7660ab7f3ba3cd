package message

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

const messageCols = `id, session_id, role, text, created_at`

func scanMessage(row pgx.Row) (*SessionMessage, error) {
	var m SessionMessage
	err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Text, &m.CreatedAt)
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *SessionMessage) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO session_message (id, session_id, role, text)
			VALUES ($1,$2,$3,$4)`,
			m.ID, m.SessionID, m.Role, m.Text)
		return err
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO session_message (id, session_id, role, text, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		m.ID, m.SessionID, m.Role, m.Text, m.CreatedAt)
	return err
}

func (r *repoPG) ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*SessionMessage, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+messageCols+` FROM (
			SELECT `+messageCols+` FROM session_message
			WHERE session_id = $1 AND role IN ('user', 'assistant')
			ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*SessionMessage, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM session_message WHERE session_id = $1`, sessionID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+messageCols+` FROM session_message
		WHERE session_id = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collect(rows pgx.Rows) ([]*SessionMessage, error) {
	var items []*SessionMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
