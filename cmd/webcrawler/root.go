package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for webcrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webcrawler",
		Short: "Concurrent, polite web page crawler",
		Long: `webcrawler fetches web pages concurrently and extracts their titles,
paragraphs, links and images into a CSV or JSON file.

Every fetch honors robots.txt unless --ignore-robots is given. Transient
failures (timeouts, HTTP 429 and 5xx) are retried with exponential backoff.
Each run is recorded in a local history database for later inspection.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose (debug) logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
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
