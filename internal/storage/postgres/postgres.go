// Package postgres stores fetch records in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/internsift/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
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
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	error TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS fetch_records_created_at ON fetch_records (created_at DESC);
`

const columns = `id, run_id, source, terms, location, max_results, outcome, status_code,
	detected_bot, detection_src, fetched, matched, duration_ms, created_at, error`

// New connects to dsn and creates the schema if needed.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, r *storage.FetchRecord) error {
	query := `INSERT INTO fetch_records (` + columns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := b.pool.Exec(ctx, query,
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
		r.CreatedAt,
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: save %s: %w", r.ID, err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	var where []string
	args := pgx.NamedArgs{}

	if filter.Source != "" {
		where = append(where, `source = @source`)
		args["source"] = filter.Source
	}
	if filter.Outcome != "" {
		where = append(where, `outcome = @outcome`)
		args["outcome"] = filter.Outcome
	}
	if filter.RunID != "" {
		where = append(where, `run_id = @run_id`)
		args["run_id"] = filter.RunID
	}
	if filter.DetectedBot != nil {
		where = append(where, `detected_bot = @detected_bot`)
		args["detected_bot"] = *filter.DetectedBot
	}
	if filter.Since != nil {
		where = append(where, `created_at >= @since`)
		args["since"] = *filter.Since
	}

	query := `SELECT ` + columns + ` FROM fetch_records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT @limit`
		args["limit"] = filter.Limit
	}
	if filter.Offset > 0 {
		query += ` OFFSET @offset`
		args["offset"] = filter.Offset
	}

	rows, err := b.pool.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*storage.FetchRecord, error) {
		var r storage.FetchRecord
		var durationMs int64
		err := row.Scan(
			&r.ID, &r.RunID, &r.Source, &r.Terms, &r.Location, &r.MaxResults, &r.Outcome, &r.StatusCode,
			&r.DetectedBot, &r.DetectionSrc, &r.Fetched, &r.Matched, &durationMs, &r.CreatedAt, &r.Error,
		)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		return &r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan: %w", err)
	}
	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
