/*
Copyright © 2026 SRPLAN AUTHORS
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/olapctl/srplan/internal/comparator"
	"github.com/olapctl/srplan/internal/output"
	"github.com/olapctl/srplan/internal/profile"
)

var compareCmd = &cobra.Command{
	Use:   "compare <before> <after>",
	Short: "Compare two query profiles",
	Long: `Compare two profile dumps of the same query, matching plan nodes by
plan node id and reporting per-node time, row, memory and skew changes.

Either file (but not both) can be "-" to read from stdin.`,
	Example: `  # Compare two runs
  srplan compare before.txt after.txt

  # Read the new run from stdin
  cat after.txt | srplan compare before.txt -

  # Only report changes above 10%
  srplan compare before.txt after.txt --threshold 10`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		threshold, _ := cmd.Flags().GetFloat64("threshold")

		if format != "text" && format != "json" {
			return fmt.Errorf("invalid output format %q: must be \"text\" or \"json\"", format)
		}
		if args[0] == "-" && args[1] == "-" {
			return fmt.Errorf("only one input can be read from stdin")
		}

		logger := newLogger(cmd)

		oldProfile, err := profile.Resolve(args[0], logger)
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		newProfile, err := profile.Resolve(args[1], logger)
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}

		oldRun, err := comparator.NewRun(oldProfile, logger)
		if err != nil {
			return err
		}
		newRun, err := comparator.NewRun(newProfile, logger)
		if err != nil {
			return err
		}

		c := &comparator.Comparator{Threshold: threshold}
		result := c.Compare(oldRun, newRun)

		switch format {
		case "json":
			return output.RenderJSON(os.Stdout, result)
		case "text":
			return output.RenderComparisonText(os.Stdout, result)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	compareCmd.Flags().Float64P("threshold", "t", 0, "Significance threshold in percent (default 5)")
}
