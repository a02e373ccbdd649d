// Salus-ctl controls Salus iT500 thermostats through the vendor web portal.
//
// It reads and changes the thermostat state, runs a terminal dashboard, and
// finds and follows salus-server feeds on the local network.
//
// Usage:
//
//	salus-ctl [command] [flags]
//
// Run 'salus-ctl login' once to store the account email and device id.
// The password is never stored: it is read from SALUS_PASSWORD or prompted
// for. See 'salus-ctl --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/salus/internal/logging"
	"github.com/muurk/salus/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// reportedError marks an error that was already rendered as a failure box
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "salus-ctl",
	Short: "Salus iT500 thermostat control utility",
	Long: `A command line utility for Salus iT500 thermostats.

Talks to the vendor web portal to show the thermostat state and change the
setpoint or heating mode, and includes a live terminal dashboard. It can also
discover and follow salus-server feeds on the local network.

Set SALUS_LOG_LEVEL=debug to see the portal traffic.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("salus-ctl %s\n", version.Full())
	},
}
