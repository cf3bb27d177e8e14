/*
Copyright © 2026 SRPLAN AUTHORS
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olapctl/srplan/internal/cluster"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage saved cluster connections",
	Long:  `Manage saved cluster connections so you don't have to pass a DSN on every invocation.`,
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved clusters",
	Example: `  srplan cluster list
  srplan cluster list --show`,
	RunE: func(cmd *cobra.Command, args []string) error {
		show, _ := cmd.Flags().GetBool("show")

		clusters, err := cluster.List()
		if err != nil {
			return err
		}

		if len(clusters) == 0 {
			fmt.Println("No clusters configured. Run 'srplan cluster add <name> <dsn>' to create one.")
			return nil
		}

		defaultName, err := cluster.DefaultName()
		if err != nil {
			return err
		}

		for _, c := range clusters {
			marker := " "
			if c.Name == defaultName {
				marker = "*"
			}
			if show {
				fmt.Printf("%s %s\t%s\n", marker, c.Name, c.DSN)
			} else {
				fmt.Printf("%s %s\n", marker, c.Name)
			}
		}
		return nil
	},
}

var clusterAddCmd = &cobra.Command{
	Use:     "add <name> <dsn>",
	Short:   "Add or update a cluster connection",
	Example: `  srplan cluster add prod "root:pw@tcp(fe1:9030)/"`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cluster.Add(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Cluster %q saved.\n", args[0])
		return nil
	},
}

var clusterRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a cluster connection",
	Example: `  srplan cluster remove prod`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cluster.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("Cluster %q removed.\n", args[0])
		return nil
	},
}

var clusterDefaultCmd = &cobra.Command{
	Use:     "default <name>",
	Short:   "Set the default cluster",
	Example: `  srplan cluster default prod`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cluster.SetDefault(args[0]); err != nil {
			return err
		}
		fmt.Printf("Default cluster set to %q.\n", args[0])
		return nil
	},
}

var clusterClearDefaultCmd = &cobra.Command{
	Use:     "clear-default",
	Short:   "Clear the default cluster",
	Example: `  srplan cluster clear-default`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cluster.ClearDefault(); err != nil {
			return err
		}
		fmt.Println("Default cluster cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterCmd.AddCommand(clusterListCmd)
	clusterCmd.AddCommand(clusterAddCmd)
	clusterCmd.AddCommand(clusterRemoveCmd)
	clusterCmd.AddCommand(clusterDefaultCmd)
	clusterCmd.AddCommand(clusterClearDefaultCmd)
	clusterListCmd.Flags().BoolP("show", "s", false, "Show connection DSNs")
}
