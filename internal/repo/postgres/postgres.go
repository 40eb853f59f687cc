package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/webmon/internal/domain"
	"github.com/hamed0406/webmon/internal/registry"
	"github.com/hamed0406/webmon/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger

	target      string // quoted
	healthcheck string // quoted
	tables      repo.Tables
}

// New opens a pool capped at opts.PoolSize connections and pings it.
func New(ctx context.Context, dsn string, opts repo.Options, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.PoolSize < 1 {
		opts.PoolSize = 1
	}
	cfg.MaxConns = int32(opts.PoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	t := opts.Tables.OrDefault()
	return &Store{
		pool:        pool,
		log:         log,
		target:      repo.Quote(t.Target),
		healthcheck: repo.Quote(t.Healthcheck),
		tables:      t,
	}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// ---- schema ----

func (s *Store) schema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  target_id  BIGSERIAL PRIMARY KEY,
  url        TEXT NOT NULL UNIQUE,
  interval_s INTEGER NOT NULL CHECK (interval_s > 0),
  pattern    TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.target),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  check_id      BIGSERIAL PRIMARY KEY,
  target_id     BIGINT NOT NULL REFERENCES %s (target_id),
  checked_at    TIMESTAMPTZ NOT NULL,
  status_code   INTEGER NOT NULL,
  success       BOOLEAN NOT NULL,
  pattern_match SMALLINT NOT NULL,
  latency_ms    DOUBLE PRECISION NULL,
  attempts      INTEGER NOT NULL,
  error_message TEXT NULL
)`, s.healthcheck, s.target),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (target_id, checked_at DESC)`,
			repo.Quote(s.tables.Healthcheck+"_target_time_idx"), s.healthcheck),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (checked_at DESC)`,
			repo.Quote(s.tables.Healthcheck+"_checked_at_idx"), s.healthcheck),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (status_code)`,
			repo.Quote(s.tables.Healthcheck+"_status_idx"), s.healthcheck),
	}
}

func (s *Store) Bootstrap(ctx context.Context, mode repo.BootstrapMode) error {
	if mode == repo.BootstrapRecreate {
		if err := s.Drop(ctx); err != nil {
			return err
		}
	}
	for _, stmt := range s.schema() {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}
	s.log.Info("schema_ready", zap.String("mode", mode.String()),
		zap.String("target_table", s.tables.Target), zap.String("healthcheck_table", s.tables.Healthcheck))
	return nil
}

func (s *Store) Drop(ctx context.Context) error {
	for _, tbl := range []string{s.healthcheck, s.target} {
		if _, err := s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+tbl); err != nil {
			return fmt.Errorf("drop %s: %w", tbl, err)
		}
	}
	return nil
}

// ---- targets ----

func (s *Store) UpsertTargets(ctx context.Context, entries []registry.Entry) ([]domain.Target, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := fmt.Sprintf(`INSERT INTO %s (url, interval_s, pattern)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (url) DO UPDATE
		   SET interval_s = EXCLUDED.interval_s, pattern = EXCLUDED.pattern
		 RETURNING target_id, created_at`, s.target)

	out := make([]domain.Target, 0, len(entries))
	for _, e := range entries {
		t := domain.Target{URL: e.URL, IntervalSeconds: e.IntervalSeconds, Pattern: e.Pattern}
		if err := tx.QueryRow(ctx, q, e.URL, e.IntervalSeconds, e.Pattern).Scan(&t.ID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("upsert target %s: %w", e.URL, err)
		}
		out = append(out, t)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (s *Store) ListTargets(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT target_id, url, interval_s, pattern, created_at
		   FROM %s
		  ORDER BY target_id`, s.target))
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		var t domain.Target
		if err := rows.Scan(&t.ID, &t.URL, &t.IntervalSeconds, &t.Pattern, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---- results ----

func (s *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		`INSERT INTO %s
		   (target_id, checked_at, status_code, success, pattern_match, latency_ms, attempts, error_message)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING check_id`, s.healthcheck),
		int64(r.TargetID), r.CheckedAt, r.StatusCode, r.Success, int16(r.PatternMatch),
		r.LatencyMS, r.Attempts, r.ErrorMessage,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Results returns the stored results for one target, oldest first.
func (s *Store) Results(ctx context.Context, id domain.TargetID) ([]domain.CheckResult, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT check_id, target_id, checked_at, status_code, success, pattern_match, latency_ms, attempts, error_message
		   FROM %s
		  WHERE target_id = $1
		  ORDER BY check_id`, s.healthcheck), int64(id))
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckResult
	for rows.Next() {
		var (
			r  domain.CheckResult
			pm int16
		)
		if err := rows.Scan(&r.ID, &r.TargetID, &r.CheckedAt, &r.StatusCode, &r.Success, &pm,
			&r.LatencyMS, &r.Attempts, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.PatternMatch = domain.PatternMatch(pm)
		out = append(out, r)
	}
	return out, rows.Err()
}
