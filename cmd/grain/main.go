package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "grain",
	Short: "Grain - in-process CQRS + event sourcing runtime",
	Long: `Grain is an in-process CQRS and event sourcing runtime:
commands mutate state exclusively through validated handlers that emit
events, events land in an ordered append-only log, reactors consume
them with backpressure, and read models project them into cached state.

The serve command runs the HTTP runtime with the bundled counter
example registered.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Grain version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
}
