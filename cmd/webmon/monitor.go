package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/webmon/internal/gate"
	"github.com/hamed0406/webmon/internal/httpapi"
	"github.com/hamed0406/webmon/internal/probe"
	"github.com/hamed0406/webmon/internal/registry"
	"github.com/hamed0406/webmon/internal/repo"
	"github.com/hamed0406/webmon/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

var errInterrupted = errors.New("run interrupted before all checks completed")

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Probe the listed sites and record every check",
	Long: `Probe every listed site on its own interval and record each check.

Sites come from a CSV file (--sites-csv), which is also stored in the target
table, or from the target table of a previous run (--sites-table).

The run ends after --number-healthchecks checks per site, when --duration
elapses, or on SIGINT/SIGTERM. Checks already on the wire are allowed to
finish and their results are flushed before the store is closed.

Exit codes:
  0 - all checks completed, or an unlimited run was stopped
  1 - startup failed, or a bounded run was interrupted

Example:
  webmon monitor --db-config secrets/db.json --sites-csv data/sites.csv --number-healthchecks 5
  webmon monitor --db-config secrets/db.json --sites-table --number-healthchecks -1`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	f := monitorCmd.Flags()
	f.String("sites-csv", "", "CSV file with url,interval[,pattern] rows")
	f.Bool("sites-table", false, "use the targets stored by a previous run")
	f.Int("number-healthchecks", 0, "checks per site; -1 for unlimited")
	f.Duration("duration", 0, "stop after this long (0 = no limit)")
	f.Bool("recreate-tables", false, "drop and recreate both tables before starting")
	f.String("ops-addr", "", "bind address for /healthz, /readyz and /metrics (default from OPS_ADDR)")
	_ = monitorCmd.MarkFlagRequired("number-healthchecks")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	sitesCSV, _ := flags.GetString("sites-csv")
	fromTable, _ := flags.GetBool("sites-table")
	checks, _ := flags.GetInt("number-healthchecks")
	duration, _ := flags.GetDuration("duration")
	recreate, _ := flags.GetBool("recreate-tables")

	if sitesCSV == "" && !fromTable {
		return errors.New("one of --sites-csv or --sites-table is required")
	}
	if checks == 0 || checks < -1 {
		return errors.New("--number-healthchecks must be positive, or -1 for unlimited")
	}

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if flags.Changed("ops-addr") {
		cfg.OpsAddr, _ = flags.GetString("ops-addr")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	writer := repo.NewWriter(store, log, cfg.WriteTimeout)
	defer writer.Close()

	mode := repo.BootstrapCreate
	if recreate {
		mode = repo.BootstrapRecreate
	}
	if err := store.Bootstrap(ctx, mode); err != nil {
		return err
	}
	targets, err := loadTargets(ctx, store, sitesCSV, fromTable, log)
	if err != nil {
		return err
	}
	reg, err := registry.New(targets)
	if err != nil {
		return err
	}

	if cfg.OpsAddr != "" {
		ops := httpapi.NewServer(log, writer.Ready)
		if _, err := ops.Start(cfg.OpsAddr); err != nil {
			return fmt.Errorf("ops server: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = ops.Shutdown(sctx)
		}()
	}

	if checks < 0 {
		checks = 0
	}
	g := gate.New(cfg.MaxConcurrentChecks)
	sup := scheduler.NewSupervisor(g, writer, log, scheduler.Config{
		ChecksPerTarget: checks,
		CheckBudget:     cfg.CheckBudget,
		Retry: probe.RetryPolicy{
			Attempts:       cfg.RetryAttempts,
			Backoff:        cfg.RetryBackoff,
			MaxBackoff:     cfg.RetryMaxBackoff,
			AttemptTimeout: cfg.ProbeTimeout,
		},
		Session: probe.SessionOptions{BodyLimit: cfg.BodyLimit, UserAgent: cfg.UserAgent},
	})

	log.Info("monitor_starting",
		zap.Int("targets", reg.Len()),
		zap.Int("max_concurrent_checks", cfg.MaxConcurrentChecks),
		zap.Int("db_pool_size", cfg.DBPoolSize),
		zap.String("driver", cfg.DatabaseDriver))

	sum, err := sup.Run(ctx, reg)
	if err != nil {
		return err
	}
	log.Info("monitor_finished",
		zap.String("run_id", sum.RunID),
		zap.Int("gate_peak", g.Peak()),
		zap.Int("gate_in_flight", g.InFlight()),
		zap.Int("panics", sum.Panics))
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d targets, %d checks, %d failed, %d write errors\n",
		sum.RunID, sum.Targets, sum.Checks, sum.Failures, sum.WriteErrors)
	if checks > 0 && !sum.Completed {
		return errInterrupted
	}
	return nil
}
