package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "delaybroker",
		Short: "delaybroker - in-process message broker with simulated delivery delay",
		Long: `delaybroker persists published messages, queues them for a pool of workers and
delivers each one after a configurable delay, notifying every registered observer.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	// Add subcommands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
