package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/carejournal/libs/db"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS journal_blobs (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// PostgresBlobStore stores blobs as rows of journal_blobs.
type PostgresBlobStore struct {
	q db.Querier
}

func NewPostgresBlobStore(q db.Querier) *PostgresBlobStore {
	return &PostgresBlobStore{q: q}
}

func (s *PostgresBlobStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create journal_blobs: %w", err)
	}
	return nil
}

func (s *PostgresBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.q.QueryRow(ctx, `
		SELECT value
		FROM journal_blobs
		WHERE key = $1
	`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *PostgresBlobStore) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO journal_blobs (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	return err
}

func (s *PostgresBlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM journal_blobs WHERE key = $1`, key)
	return err
}
