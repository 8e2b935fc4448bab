package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createTable = `
CREATE TABLE IF NOT EXISTS deliveries (
id TEXT PRIMARY KEY,
chat_id TEXT NOT NULL,
kind TEXT NOT NULL,
item_id TEXT,
status TEXT NOT NULL,
error TEXT,
created_at TIMESTAMPTZ NOT NULL
)
`

const insertDelivery = `
INSERT INTO deliveries (
id,
chat_id,
kind,
item_id,
status,
error,
created_at
) VALUES ($1,$2,$3,NULLIF($4,''),$5,NULLIF($6,''),$7)
ON CONFLICT (id) DO NOTHING
`

var ErrNotConfigured = errors.New("postgres repository requires a non-nil pool")

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) (*PostgresRepository, error) {
	if pool == nil {
		return nil, ErrNotConfigured
	}
	return &PostgresRepository{pool: pool}, nil
}

// EnsureSchema creates the deliveries table when it does not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create deliveries table: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SaveDelivery(ctx context.Context, d Delivery) error {
	_, err := r.pool.Exec(ctx, insertDelivery,
		d.ID,
		d.ChatID,
		string(d.Kind),
		d.ItemID,
		d.Status,
		d.Error,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}
