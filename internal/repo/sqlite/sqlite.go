package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/webmon/internal/domain"
	"github.com/hamed0406/webmon/internal/registry"
	"github.com/hamed0406/webmon/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// timeLayout is RFC 3339 with a fixed nine-digit fraction, so stored text
// sorts in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store keeps targets and results in a single SQLite file. Timestamps are
// stored as fixed-width RFC 3339 text in UTC.
type Store struct {
	db  *sql.DB
	log *zap.Logger

	target      string // quoted
	healthcheck string // quoted
	tables      repo.Tables
}

func New(ctx context.Context, path string, opts repo.Options, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if opts.PoolSize < 1 {
		opts.PoolSize = 1
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		opts.PoolSize = 1
	}
	db.SetMaxOpenConns(opts.PoolSize)
	db.SetMaxIdleConns(opts.PoolSize)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	t := opts.Tables.OrDefault()
	return &Store{
		db:          db,
		log:         log,
		target:      repo.Quote(t.Target),
		healthcheck: repo.Quote(t.Healthcheck),
		tables:      t,
	}, nil
}

func dsn(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + pragmas
}

func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Warn("sqlite_close_error", zap.Error(err))
	}
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) schema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	target_id  INTEGER PRIMARY KEY AUTOINCREMENT,
	url        TEXT NOT NULL UNIQUE,
	interval_s INTEGER NOT NULL CHECK (interval_s > 0),
	pattern    TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
)`, s.target),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	check_id      INTEGER PRIMARY KEY AUTOINCREMENT,
	target_id     INTEGER NOT NULL REFERENCES %s (target_id),
	checked_at    TEXT NOT NULL,
	status_code   INTEGER NOT NULL,
	success       INTEGER NOT NULL,
	pattern_match INTEGER NOT NULL,
	latency_ms    REAL,
	attempts      INTEGER NOT NULL,
	error_message TEXT
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
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}
	s.log.Info("schema_ready", zap.String("mode", mode.String()),
		zap.String("target_table", s.tables.Target), zap.String("healthcheck_table", s.tables.Healthcheck))
	return nil
}

func (s *Store) Drop(ctx context.Context) error {
	for _, tbl := range []string{s.healthcheck, s.target} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+tbl); err != nil {
			return fmt.Errorf("drop %s: %w", tbl, err)
		}
	}
	return nil
}

func (s *Store) UpsertTargets(ctx context.Context, entries []registry.Entry) ([]domain.Target, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := fmt.Sprintf(`
INSERT INTO %s (url, interval_s, pattern, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET interval_s = excluded.interval_s, pattern = excluded.pattern
RETURNING target_id, created_at`, s.target)

	out := make([]domain.Target, 0, len(entries))
	now := time.Now().UTC().Format(timeLayout)
	for _, e := range entries {
		t := domain.Target{URL: e.URL, IntervalSeconds: e.IntervalSeconds, Pattern: e.Pattern}
		var (
			id        int64
			createdAt string
		)
		if err := tx.QueryRowContext(ctx, q, e.URL, e.IntervalSeconds, e.Pattern, now).Scan(&id, &createdAt); err != nil {
			return nil, fmt.Errorf("upsert target %s: %w", e.URL, err)
		}
		t.ID = domain.TargetID(id)
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, t)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return out, nil
}

func (s *Store) ListTargets(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT target_id, url, interval_s, pattern, created_at FROM %s ORDER BY target_id`, s.target))
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()
	var out []domain.Target
	for rows.Next() {
		var (
			t         domain.Target
			id        int64
			createdAt string
		)
		if err := rows.Scan(&id, &t.URL, &t.IntervalSeconds, &t.Pattern, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan target row: %w", err)
		}
		t.ID = domain.TargetID(id)
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (target_id, checked_at, status_code, success, pattern_match, latency_ms, attempts, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.healthcheck),
		int64(r.TargetID), r.CheckedAt.UTC().Format(timeLayout), r.StatusCode, r.Success,
		int(r.PatternMatch), r.LatencyMS, r.Attempts, r.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

// Results returns the stored results for one target, oldest first.
func (s *Store) Results(ctx context.Context, id domain.TargetID) ([]domain.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT check_id, checked_at, status_code, success, pattern_match, latency_ms, attempts, error_message
		   FROM %s WHERE target_id = ? ORDER BY check_id`, s.healthcheck), int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()
	var out []domain.CheckResult
	for rows.Next() {
		r := domain.CheckResult{TargetID: id}
		var (
			checkedAt string
			pm        int
			latency   sql.NullFloat64
			msg       sql.NullString
		)
		if err := rows.Scan(&r.ID, &checkedAt, &r.StatusCode, &r.Success, &pm, &latency, &r.Attempts, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		r.CheckedAt, _ = time.Parse(time.RFC3339Nano, checkedAt)
		r.PatternMatch = domain.PatternMatch(pm)
		if latency.Valid {
			r.LatencyMS = &latency.Float64
		}
		if msg.Valid {
			r.ErrorMessage = &msg.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
