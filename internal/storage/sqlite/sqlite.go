// Package sqlite stores fetch records in SQLite through the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/internsift/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS fetch_records (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	source TEXT NOT NULL,
	terms TEXT NOT NULL,
	location TEXT NOT NULL,
	max_results INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	detected_bot BOOLEAN NOT NULL,
	detection_src TEXT NOT NULL,
	fetched INTEGER NOT NULL,
	matched INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	error TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS fetch_records_created_at ON fetch_records (created_at);
`

const columns = `id, run_id, source, terms, location, max_results, outcome, status_code,
	detected_bot, detection_src, fetched, matched, duration_ms, created_at, error`

// pragmas apply to the single pooled connection. busy_timeout covers other
// processes writing to the same file.
const pragmas = `
PRAGMA busy_timeout = 5000;
PRAGMA journal_mode = WAL;
`

// New opens (creating if needed) the database at dsn. Writes are
// serialized through one connection, so concurrent Saves queue instead of
// failing with SQLITE_BUSY.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(pragmas); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, r *storage.FetchRecord) error {
	query := `INSERT INTO fetch_records (` + columns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := b.db.ExecContext(ctx, query,
		r.ID,
		r.RunID,
		r.Source,
		r.Terms,
		r.Location,
		r.MaxResults,
		r.Outcome,
		r.StatusCode,
		r.DetectedBot,
		r.DetectionSrc,
		r.Fetched,
		r.Matched,
		r.Duration.Milliseconds(),
		r.CreatedAt.UTC(),
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save %s: %w", r.ID, err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	var where []string
	var args []any

	if filter.Source != "" {
		where = append(where, `source = ?`)
		args = append(args, filter.Source)
	}
	if filter.Outcome != "" {
		where = append(where, `outcome = ?`)
		args = append(args, filter.Outcome)
	}
	if filter.RunID != "" {
		where = append(where, `run_id = ?`)
		args = append(args, filter.RunID)
	}
	if filter.DetectedBot != nil {
		where = append(where, `detected_bot = ?`)
		args = append(args, *filter.DetectedBot)
	}
	if filter.Since != nil {
		where = append(where, `created_at >= ?`)
		args = append(args, filter.Since.UTC())
	}

	query := `SELECT ` + columns + ` FROM fetch_records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY created_at DESC`

	// SQLite only accepts OFFSET after LIMIT; -1 means no limit.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(filter.Offset, 0))
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var results []*storage.FetchRecord
	for rows.Next() {
		var r storage.FetchRecord
		var durationMs int64

		err := rows.Scan(
			&r.ID, &r.RunID, &r.Source, &r.Terms, &r.Location, &r.MaxResults, &r.Outcome, &r.StatusCode,
			&r.DetectedBot, &r.DetectionSrc, &r.Fetched, &r.Matched, &durationMs, &r.CreatedAt, &r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}
	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
