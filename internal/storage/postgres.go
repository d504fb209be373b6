package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var _ Storage = (*PostgresStorage)(nil)

type PostgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage makes sure the document table exists. Close closes the pool.
func NewPostgresStorage(ctx context.Context, db *pgxpool.Pool) (*PostgresStorage, error) {
	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS gymtracker_document (
			key        TEXT PRIMARY KEY,
			payload    JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	); err != nil {
		return nil, fmt.Errorf("create document table: %w", err)
	}

	return &PostgresStorage{
		db: db,
	}, nil
}

func (p *PostgresStorage) Pool() *pgxpool.Pool {
	return p.db
}

func (p *PostgresStorage) Get(ctx context.Context, key string) (_ []byte, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "storage.postgres.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("key", key))

	var payload []byte
	err = p.db.QueryRow(
		ctx,
		`SELECT payload FROM gymtracker_document WHERE key = $1`,
		key,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select document [%s]: %w", key, err)
	}
	return payload, nil
}

func (p *PostgresStorage) Set(ctx context.Context, key string, value []byte) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "storage.postgres.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("key", key))

	_, err = p.db.Exec(
		ctx,
		`INSERT INTO gymtracker_document (key, payload, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert document [%s]: %w", key, err)
	}
	return nil
}

func (p *PostgresStorage) Close() error {
	if p.db != nil {
		p.db.Close()
	}
	return nil
}
