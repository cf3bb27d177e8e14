/*
Copyright © 2026 SRPLAN AUTHORS
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/olapctl/srplan/internal/analyzer"
	"github.com/olapctl/srplan/internal/cluster"
	"github.com/olapctl/srplan/internal/output"
	"github.com/olapctl/srplan/internal/profile"
)

const engineTimeout = 30 * time.Second

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a query profile",
	Long: `Analyze one query profile dump and report hotspots and diagnostics.

Input is a profile text file as produced by SHOW PROFILELIST / ANALYZE
PROFILE or the web console's profile page. Use "-" to read from stdin.
With --query-id the profile is fetched live from the connected cluster
instead. If no input is given, enters interactive mode.

When a cluster connection is available, live session variables and
backend sizing sharpen the diagnostic thresholds.`,
	Example: `  # Analyze from file
  srplan analyze profile.txt

  # Read from stdin
  cat profile.txt | srplan analyze -

  # Fetch by query id from the saved default cluster
  srplan analyze --query-id 7c4e3b2a-1f00-4d6e

  # Explicit connection, JSON output
  srplan analyze profile.txt --db "root:pw@tcp(fe1:9030)/" --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _ := cmd.Flags().GetString("db")
		clusterName, _ := cmd.Flags().GetString("cluster")
		queryID, _ := cmd.Flags().GetString("query-id")
		format, _ := cmd.Flags().GetString("format")

		if format != "text" && format != "json" {
			return fmt.Errorf("invalid output format %q: must be \"text\" or \"json\"", format)
		}

		logger := newLogger(cmd)

		dsn, err := cluster.ResolveDSN(db, clusterName)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), engineTimeout)
		defer cancel()

		var engine *cluster.Engine
		if dsn != "" {
			engine, err = cluster.Connect(dsn, logger)
			if err != nil {
				return err
			}
			defer engine.Close()
		}

		var p *profile.Profile
		if queryID != "" {
			if engine == nil {
				return fmt.Errorf("--query-id requires a cluster connection (--db, --cluster, or a saved default)")
			}
			text, err := engine.QueryProfile(ctx, queryID)
			if err != nil {
				return err
			}
			p, err = profile.Parse(text, logger)
			if err != nil {
				return err
			}
		} else {
			var file string
			if len(args) > 0 {
				file = args[0]
			}
			p, err = profile.Resolve(file, logger)
			if err != nil {
				return err
			}
		}

		var variables map[string]string
		var info *analyzer.ClusterInfo
		if engine != nil {
			if variables, err = engine.SessionVariables(ctx); err != nil {
				level.Warn(logger).Log("msg", "could not fetch session variables", "err", err)
			}
			if info, err = engine.Info(ctx); err != nil {
				level.Warn(logger).Log("msg", "could not fetch backend sizing", "err", err)
			}
		}

		clusterID := clusterName
		if clusterID == "" && dsn != "" {
			if clusterID, err = cluster.DefaultName(); err != nil {
				return err
			}
		}

		a := analyzer.New(logger)
		result, err := a.Analyze(p, variables, info, clusterID)
		if err != nil {
			return err
		}

		if store, ok := a.Baselines.(*analyzer.BaselineStore); ok && clusterID != "" {
			store.Observe(clusterID, result.Complexity, result.TotalTime)
		}

		switch format {
		case "json":
			return output.RenderJSON(os.Stdout, *result)
		case "text":
			return output.RenderAnalysisText(os.Stdout, *result)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("db", "d", "", "MySQL-protocol DSN of a frontend node")
	analyzeCmd.Flags().StringP("cluster", "c", "", "Use named cluster from config")
	analyzeCmd.Flags().StringP("query-id", "q", "", "Fetch the profile for this query id from the cluster")
	analyzeCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	analyzeCmd.MarkFlagsMutuallyExclusive("db", "cluster")
}
