// Package main provides the entry point for the idscan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for idscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idscan",
		Short: "Check username and email presence across public sites",
		Long: `idscan checks whether usernames and email addresses are registered
across hundreds of public sites. It probes every site in a declarative
catalog through a bounded worker pool and reports the confirmed
profiles along with any metadata found on the page.

Scan results are saved locally, so the compare command can show how an
identifier's footprint changed between runs.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewEmailCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
