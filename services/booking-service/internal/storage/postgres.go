package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of *db.Pool the postgres backend needs.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS booking_kv (
	namespace  text PRIMARY KEY,
	payload    jsonb NOT NULL DEFAULT '{}'::jsonb,
	version    bigint NOT NULL DEFAULT 0,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// PostgresBackend keeps one booking_kv row per namespace and serializes writers with a row lock.
type PostgresBackend struct {
	pool      PgxPool
	namespace string
}

func NewPostgresBackend(pool PgxPool, namespace string) *PostgresBackend {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &PostgresBackend{pool: pool, namespace: namespace}
}

func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, schemaSQL)
	return err
}

func (b *PostgresBackend) Load(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := b.pool.QueryRow(ctx, `SELECT payload FROM booking_kv WHERE namespace = $1`, b.namespace).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return payload, err
}

func (b *PostgresBackend) Update(ctx context.Context, fn func([]byte) ([]byte, error)) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_kv (namespace) VALUES ($1)
		ON CONFLICT (namespace) DO NOTHING
	`, b.namespace)
	if err != nil {
		return err
	}

	var cur []byte
	if err := tx.QueryRow(ctx, `
		SELECT payload FROM booking_kv WHERE namespace = $1 FOR UPDATE
	`, b.namespace).Scan(&cur); err != nil {
		return err
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE booking_kv
		SET payload = $2,
			version = version + 1,
			updated_at = now()
		WHERE namespace = $1
	`, b.namespace, next); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}
