// Package cmd defines the CLI commands for the leadharvest executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leadharvest",
		Short: "Harvests employer leads from job listing pages",
		Long: `leadharvest discovers job listing pages through sitemaps and metered
search, fetches them under a concurrency bound, extracts the hiring
company from each page, and writes the deduplicated lead batch to the
configured sinks.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches ./leadharvest.yaml and /etc/leadharvest/)")

	cmd.AddCommand(newHarvestCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
