package activity

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed activity log.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Append(ctx context.Context, e *Entry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_logs (email, action, created_at) VALUES ($1, $2, $3)`,
		e.Email, e.Action, e.At)
	return err
}

func (r *repoPG) List(ctx context.Context) ([]*Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT email, action, created_at FROM activity_logs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Email, &e.Action, &e.At); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
