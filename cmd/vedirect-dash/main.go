// vedirect-dash reads Victron VE.Direct devices and serves a live dashboard.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
	gitCommit = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vedirect-dash",
		Short: "Victron VE.Direct monitor and dashboard",
		Long: `vedirect-dash decodes the VE.Direct Text protocol spoken by Victron
battery monitors, solar chargers and inverters, and serves the live values
as a web dashboard, Prometheus metrics, MQTT messages and SQLite history.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := newServeCmd()
	rootCmd.AddCommand(
		serve,
		newDecodeCmd(),
		newVersionCmd(),
	)
	// Bare invocation runs the dashboard
	rootCmd.RunE = serve.RunE
	rootCmd.Flags().AddFlagSet(serve.Flags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
