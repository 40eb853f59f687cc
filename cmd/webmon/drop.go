package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dropCmd = &cobra.Command{
	Use:   "drop-tables",
	Short: "Drop the target and healthcheck tables",
	Long: `Drop both tables, results first. All recorded checks are lost.

Example:
  webmon drop-tables --db-config secrets/db.json`,
	RunE: runDrop,
}

func init() {
	rootCmd.AddCommand(dropCmd)
}

func runDrop(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Drop(ctx); err != nil {
		return err
	}
	log.Info("tables_dropped", zap.String("driver", cfg.DatabaseDriver))
	fmt.Fprintln(cmd.OutOrStdout(), "tables dropped")
	return nil
}
