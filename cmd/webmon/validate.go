package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd checks the listing and config without touching the network.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a site listing and the configuration",
	Long: `Parse the site listing and the configuration without probing anything
or connecting to the store.

Exit codes:
  0 - listing and config are valid
  1 - something is invalid (details printed to stderr)

Example:
  webmon validate --sites-csv data/sites.csv
  webmon validate --sites-csv data/sites.csv --db-config secrets/db.json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().String("sites-csv", "", "CSV file with url,interval[,pattern] rows (required)")
	_ = validateCmd.MarkFlagRequired("sites-csv")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("sites-csv")
	entries, skipped, err := parseSites(path)
	if err != nil {
		return fmt.Errorf("invalid listing: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Listing is valid!\n")
	fmt.Fprintf(out, "  Sites:            %d\n", len(entries))
	fmt.Fprintf(out, "  Skipped:          %d\n", len(skipped))
	for _, s := range skipped {
		fmt.Fprintf(out, "    line %d: %s (%s)\n", s.Entry.Line, s.Entry.URL, s.Reason)
	}
	fmt.Fprintf(out, "  Store driver:     %s\n", cfg.DatabaseDriver)
	fmt.Fprintf(out, "  Max concurrency:  %d\n", cfg.MaxConcurrentChecks)
	fmt.Fprintf(out, "  Retry attempts:   %d\n", cfg.RetryAttempts)
	return nil
}
