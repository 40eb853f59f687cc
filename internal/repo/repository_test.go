package repo_test

import (
	"testing"

	"github.com/hamed0406/webmon/internal/repo"
	"github.com/hamed0406/webmon/internal/repo/memory"
	pg "github.com/hamed0406/webmon/internal/repo/postgres"
	"github.com/hamed0406/webmon/internal/repo/sqlite"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.Store = memory.New()
	var _ repo.Store = (*pg.Store)(nil)
	var _ repo.Store = (*sqlite.Store)(nil)
}

func TestTables(t *testing.T) {
	got := repo.Tables{Healthcheck: "hc_test"}.OrDefault()
	if got.Target != "target" || got.Healthcheck != "hc_test" {
		t.Fatalf("OrDefault: %+v", got)
	}
	if q := repo.Quote(`we"ird`); q != `"we""ird"` {
		t.Fatalf("Quote: %s", q)
	}
	if repo.BootstrapRecreate.String() != "recreate" || repo.BootstrapCreate.String() != "create" {
		t.Fatal("BootstrapMode names")
	}
}
