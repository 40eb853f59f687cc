package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/webmon/internal/domain"
	"github.com/hamed0406/webmon/internal/registry"
)

var ErrUnknownTarget = errors.New("result references unknown target")

type BootstrapMode int

const (
	// BootstrapCreate creates missing tables and leaves existing rows alone.
	BootstrapCreate BootstrapMode = iota
	// BootstrapRecreate drops both tables first. Destructive.
	BootstrapRecreate
)

func (m BootstrapMode) String() string {
	if m == BootstrapRecreate {
		return "recreate"
	}
	return "create"
}

// Tables names the two tables a store writes to.
type Tables struct {
	Target      string
	Healthcheck string
}

func DefaultTables() Tables { return Tables{Target: "target", Healthcheck: "healthcheck"} }

// OrDefault fills empty names with the defaults.
func (t Tables) OrDefault() Tables {
	d := DefaultTables()
	if t.Target == "" {
		t.Target = d.Target
	}
	if t.Healthcheck == "" {
		t.Healthcheck = d.Healthcheck
	}
	return t
}

// Options configures a SQL store.
type Options struct {
	PoolSize int // max open connections; below 1 means 1
	Tables   Tables
}

// Quote returns name as a double-quoted SQL identifier. Postgres and SQLite
// share the quoting rules.
func Quote(name string) string { return pgx.Identifier{name}.Sanitize() }

// Store is the port every backend implements. Implementations are safe for
// concurrent use; Append is the hot path and draws from a bounded pool.
type Store interface {
	Bootstrap(ctx context.Context, mode BootstrapMode) error
	Drop(ctx context.Context) error
	// UpsertTargets inserts or refreshes the listing and returns the stored
	// rows, IDs included, in input order.
	UpsertTargets(ctx context.Context, entries []registry.Entry) ([]domain.Target, error)
	ListTargets(ctx context.Context) ([]domain.Target, error)
	Append(ctx context.Context, r *domain.CheckResult) error
	Ping(ctx context.Context) error
	Close()
}
