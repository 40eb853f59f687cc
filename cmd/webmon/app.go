package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/webmon/internal/config"
	"github.com/hamed0406/webmon/internal/domain"
	"github.com/hamed0406/webmon/internal/logging"
	"github.com/hamed0406/webmon/internal/registry"
	"github.com/hamed0406/webmon/internal/repo"
	"github.com/hamed0406/webmon/internal/repo/postgres"
	"github.com/hamed0406/webmon/internal/repo/sqlite"
)

// loadConfig reads the environment and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.FromEnv()
	flags := cmd.Flags()
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if flags.Changed("log-dir") {
		cfg.LogDir, _ = flags.GetString("log-dir")
	}
	if path, _ := flags.GetString("db-config"); path != "" {
		dbc, err := config.LoadDBConfig(path)
		if err != nil {
			return cfg, err
		}
		dbc.Apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no store configured: pass --db-config or set DATABASE_URL")
	}
	opts := repo.Options{PoolSize: cfg.DBPoolSize}
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		s, err := sqlite.New(ctx, cfg.DatabaseURL, opts, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
		return s, nil
	default:
		s, err := postgres.New(ctx, cfg.DatabaseURL, opts, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		return s, nil
	}
}

func parseSites(path string) ([]registry.Entry, []registry.Skipped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sites: %w", err)
	}
	defer f.Close()
	entries, skipped, err := registry.ParseCSV(f)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, skipped, nil
}

// readSites parses a CSV listing and logs the rows it skipped.
func readSites(path string, log *zap.Logger) ([]registry.Entry, error) {
	entries, skipped, err := parseSites(path)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		log.Warn("site_skipped", zap.Int("line", s.Entry.Line), zap.String("url", s.Entry.URL), zap.String("reason", s.Reason))
	}
	return entries, nil
}

// loadTargets builds the target list from a CSV file (upserted first so
// results can reference the rows) or from the existing target table.
func loadTargets(ctx context.Context, store repo.Store, sitesCSV string, fromTable bool, log *zap.Logger) ([]domain.Target, error) {
	if sitesCSV != "" {
		entries, err := readSites(sitesCSV, log)
		if err != nil {
			return nil, err
		}
		targets, err := store.UpsertTargets(ctx, entries)
		if err != nil {
			return nil, fmt.Errorf("store targets: %w", err)
		}
		if !fromTable {
			return targets, nil
		}
	}
	targets, err := store.ListTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("read target table: %w", err)
	}
	return targets, nil
}
