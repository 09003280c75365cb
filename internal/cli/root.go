package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/monorkin/flow-index-monitor/internal/globals"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flow-index-monitor",
	Short: "Workspace Flow Index monitor",
	Long: `Collects environmental telemetry (CO2, noise, temperature) from a remote
sensor provider, scores every reading with the Flow Index and stores the
results in a local SQLite database.

Run "flow-index-monitor serve" to ingest periodically and expose the
dashboard API, or use the subcommands to inspect the stored data.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return globals.Initialize(verbose, configPath)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file (default $XDG_CONFIG_HOME/flow-index-monitor/config.yaml)")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
