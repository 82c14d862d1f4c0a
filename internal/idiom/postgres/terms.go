// Package postgres loads the saying dictionary from the "Term" table.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"live-captions-service/internal/idiom"
)

// DB is the subset of *pgxpool.Pool used by LoadDictionary.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const selectTerms = `SELECT id, term, translation_spanish FROM "Term" ORDER BY id`

// LoadDictionary reads every term ordered by id. Rows with an empty term or
// translation are skipped.
func LoadDictionary(ctx context.Context, db DB) (*idiom.Dictionary, error) {
	rows, err := db.Query(ctx, selectTerms)
	if err != nil {
		return nil, fmt.Errorf("idiom/postgres: query terms: %w", err)
	}
	defer rows.Close()

	var entries []idiom.Entry
	for rows.Next() {
		var (
			id          int64
			term        *string
			translation *string
		)
		if err := rows.Scan(&id, &term, &translation); err != nil {
			return nil, fmt.Errorf("idiom/postgres: scan term: %w", err)
		}
		if term == nil || translation == nil || strings.TrimSpace(*term) == "" || *translation == "" {
			continue
		}
		entries = append(entries, idiom.Entry{Phrase: *term, ID: id, Translation: *translation})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("idiom/postgres: iterate terms: %w", err)
	}
	return idiom.NewDictionary(entries...), nil
}
