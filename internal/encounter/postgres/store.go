// Package postgres writes encounters to the "Encounter" table.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"live-captions-service/internal/models"
)

// DB is the subset of *pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the tables the service reads and writes when they do not
// exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS "Term" (
    id                  BIGSERIAL PRIMARY KEY,
    term                TEXT,
    translation_spanish TEXT
);
CREATE TABLE IF NOT EXISTS "Encounter" (
    id         BIGSERIAL PRIMARY KEY,
    context    TEXT NOT NULL,
    term_id    BIGINT NOT NULL REFERENCES "Term"(id),
    location   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const insertEncounter = `INSERT INTO "Encounter" (context, term_id, location) VALUES ($1, $2, $3)`

// Store is an encounter.Recorder backed by PostgreSQL.
type Store struct {
	db DB
}

// NewStore returns a Store using db.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("encounter/postgres: migrate: %w", err)
	}
	return nil
}

// Record inserts one encounter row.
func (s *Store) Record(ctx context.Context, enc models.Encounter) error {
	if _, err := s.db.Exec(ctx, insertEncounter, enc.Context, enc.TermID, enc.Location); err != nil {
		return fmt.Errorf("encounter/postgres: insert term %d: %w", enc.TermID, err)
	}
	return nil
}
