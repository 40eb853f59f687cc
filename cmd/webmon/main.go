// Package main is the entry point for the webmon CLI.
//
// Usage:
//
//	webmon monitor --db-config db.json --sites-csv sites.csv --number-healthchecks 5
//	webmon monitor --db-config db.json --sites-table --number-healthchecks -1
//	webmon drop-tables --db-config db.json
//	webmon validate --sites-csv sites.csv
//	webmon version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "webmon",
	Short: "Concurrent website health-check poller",
	Long: `webmon probes a list of websites, each on its own interval, and records
every check in a relational store (PostgreSQL or SQLite).

Each row of the site listing is: URL, interval in seconds, optional pattern.
A check succeeds when the site answers 200 and, if a pattern is set, the
body matches it. DNS failures, timeouts and other transport errors are
recorded with the synthetic status codes 530, 598 and 555.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "webmon %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("db-config", "", "JSON or YAML file with store credentials (db_type, db_user, ...)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL or info)")
	rootCmd.PersistentFlags().String("log-dir", "", "directory for the rotated JSON log (default from LOG_DIR)")
	rootCmd.AddCommand(versionCmd)
}
