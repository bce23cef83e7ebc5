package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps documents in the auth_kv table created by migrations/0001_auth_kv.sql.
type Postgres struct {
	pool   *pgxpool.Pool
	prefix string
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool, prefix string) *Postgres {
	return &Postgres{pool: pool, prefix: prefix}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM auth_kv WHERE key=$1`
	var value string
	if err := p.pool.QueryRow(ctx, query, p.prefix+key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(value), nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	const query = `
        INSERT INTO auth_kv (key, value, updated_at)
        VALUES ($1, $2::jsonb, NOW())
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`
	_, err := p.pool.Exec(ctx, query, p.prefix+key, string(value))
	return err
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM auth_kv WHERE key=$1`
	_, err := p.pool.Exec(ctx, query, p.prefix+key)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
