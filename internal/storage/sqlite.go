package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ Storage = (*SqliteStorage)(nil)

// SqliteStorage keeps every document as a JSON blob row in a single table.
type SqliteStorage struct {
	db *sql.DB
}

func NewSqliteStorage(ctx context.Context, path string) (*SqliteStorage, error) {
	if path == "" {
		path = "gymtracker.db"
	}
	if err := pkg.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes the two store writers, sqlite allows one writer anyway
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS document (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create document table: %w", err)
	}

	return &SqliteStorage{db: db}, nil
}

func (s *SqliteStorage) Get(ctx context.Context, key string) (_ []byte, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "storage.sqlite.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("key", key))

	var payload []byte
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM document WHERE key = ?`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select document [%s]: %w", key, err)
	}
	return payload, nil
}

func (s *SqliteStorage) Set(ctx context.Context, key string, value []byte) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "storage.sqlite.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("key", key))

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO document (key, payload, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert document [%s]: %w", key, err)
	}
	return nil
}

func (s *SqliteStorage) Close() error {
	return s.db.Close()
}
