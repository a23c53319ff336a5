package store

import (
	"context"
	"database/sql"

	"github.com/kode4food/courier/pkg/api"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresBackend keeps plans in the courier_plans table, one row per plan
type PostgresBackend struct {
	db *sql.DB
}

const (
	pgCreateTable = `
CREATE TABLE IF NOT EXISTS courier_plans (
	id         TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	pgUpsert = `
INSERT INTO courier_plans (id, body, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE
SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`

	pgDelete = `DELETE FROM courier_plans WHERE id = $1`

	pgSelectAll = `SELECT id, body FROM courier_plans ORDER BY id`
)

var _ Backend = (*PostgresBackend)(nil)

// NewPostgresBackend connects through the pgx driver and ensures the plan
// table exists
func NewPostgresBackend(
	ctx context.Context, dsn string,
) (*PostgresBackend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, pgCreateTable); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresBackend{db: db}, nil
}

func (b *PostgresBackend) Put(
	ctx context.Context, id api.PlanID, data []byte,
) error {
	_, err := b.db.ExecContext(ctx, pgUpsert, string(id), string(data))
	return err
}

func (b *PostgresBackend) Delete(ctx context.Context, id api.PlanID) error {
	_, err := b.db.ExecContext(ctx, pgDelete, string(id))
	return err
}

func (b *PostgresBackend) LoadAll(ctx context.Context) ([]Record, error) {
	rows, err := b.db.QueryContext(ctx, pgSelectAll)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []Record
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		res = append(res, Record{ID: api.PlanID(id), Data: []byte(body)})
	}
	return res, rows.Err()
}

func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
