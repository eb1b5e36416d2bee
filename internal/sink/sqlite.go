package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jgourd/leadharvest/internal/harvest"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS leads (
	identity_key  TEXT PRIMARY KEY,
	company_name  TEXT NOT NULL,
	source_url    TEXT NOT NULL,
	first_seen_at TEXT NOT NULL
)`

// SQLiteSink appends lead batches to an embedded database. Unlike the CSV
// sink it accumulates across runs: the identity key keeps re-harvested
// leads from duplicating, and the original first-seen timestamp survives.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (creating if needed) the database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Write upserts the batch in one transaction.
func (s *SQLiteSink) Write(ctx context.Context, records []harvest.LeadRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO leads (identity_key, company_name, source_url, first_seen_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (identity_key) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare sqlite insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Key(), r.Company, r.URL, r.FirstSeenAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert lead %q: %w", r.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite tx: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
