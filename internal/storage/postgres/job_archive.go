// Package postgres archives published jobs in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/council-jobs-feed/internal/crawler"
)

const defaultTable = "council_jobs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ArchiveConfig controls the Postgres connection pool used for job rows.
type ArchiveConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// JobArchive writes jobs into a table keyed by job identity. Re-inserting a
// known identity is a no-op.
type JobArchive struct {
	pool  execCloser
	table string
}

// NewJobArchive connects to Postgres and creates the table if it is missing.
func NewJobArchive(ctx context.Context, cfg ArchiveConfig) (*JobArchive, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("archive.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	archive := &JobArchive{pool: pool, table: table}
	if err := archive.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return archive, nil
}

// NewJobArchiveWithPool constructs an archive from an existing pool (primarily for testing).
func NewJobArchiveWithPool(pool execCloser, table string) (*JobArchive, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &JobArchive{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the archive table when absent.
func (a *JobArchive) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	site          TEXT NOT NULL,
	location      TEXT NOT NULL,
	salary        TEXT NOT NULL,
	pay_band      TEXT NOT NULL,
	closing       TEXT NOT NULL,
	description   TEXT NOT NULL,
	discovered_at TIMESTAMPTZ NOT NULL
)`, a.table)
	if _, err := a.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", a.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (a *JobArchive) Close() {
	if a == nil || a.pool == nil {
		return
	}
	a.pool.Close()
}

// StoreJobs inserts jobs and returns how many rows were new.
func (a *JobArchive) StoreJobs(ctx context.Context, jobs []crawler.Job) (int, error) {
	if a == nil || a.pool == nil {
		return 0, fmt.Errorf("job archive is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	title,
	site,
	location,
	salary,
	pay_band,
	closing,
	description,
	discovered_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT (id) DO NOTHING`, a.table)

	inserted := 0
	for _, job := range jobs {
		tag, err := a.pool.Exec(ctx, query,
			job.ID,
			job.Title,
			job.Site,
			job.Location,
			job.Salary,
			job.PayBand,
			job.Closing,
			job.Description,
			job.DiscoveredAt,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert job %s: %w", job.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
