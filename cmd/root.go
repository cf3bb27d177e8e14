/*
Copyright © 2026 SRPLAN AUTHORS
*/
package cmd

import (
	"os"
	"runtime/debug"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
)

var Version = "dev"

func init() {
	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
	}
	rootCmd.Version = Version
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
}

var rootCmd = &cobra.Command{
	Use:          "srplan",
	SilenceUsage: true,
	Short:        "Analyze and compare OLAP query profiles",
	Long: `srplan parses query profile dumps from StarRocks-compatible engines and
diagnoses performance problems: data skew, memory pressure, oversized
transfers, slow scans and regressed plans.

Profiles can come from a file, stdin, or be fetched live from a cluster
by query id.`,
	Example: `  # Analyze a saved profile dump
  srplan analyze profile.txt

  # Fetch a profile from a cluster and analyze it
  srplan analyze --cluster prod --query-id 7c4e..

  # Compare two runs of the same query
  srplan compare before.txt after.txt

  # Save a cluster connection
  srplan cluster add prod "root:pw@tcp(fe1:9030)/"`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from the persistent log-level flag.
// Diagnostics go to stderr so result output stays pipeable.
func newLogger(cmd *cobra.Command) log.Logger {
	lvl, _ := cmd.Flags().GetString("log-level")
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.Allow(level.ParseDefault(lvl, level.WarnValue())))
	return log.With(logger, "ts", log.DefaultTimestampUTC)
}
