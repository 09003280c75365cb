package cli

import (
	"github.com/monorkin/flow-index-monitor/internal/app"
	"github.com/monorkin/flow-index-monitor/internal/database"
	"github.com/monorkin/flow-index-monitor/internal/globals"
	"github.com/spf13/cobra"
)

var noWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled ingestion and the HTTP API",
	Long: `Runs an ingestion cycle immediately and then on every configured interval,
while serving /status, /api/realtime, /api/history/{sensorId} and /metrics.

The config file is watched for changes; provider settings are applied to
the next cycle without a restart.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := globals.Database()
	if err != nil {
		return err
	}
	defer database.Close(db)

	watchPath := globals.ConfigPath
	if noWatch {
		watchPath = ""
	}

	application, err := app.NewApp(globals.Config, watchPath, db, globals.Logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	globals.Logger.Info("Starting flow-index-monitor",
		"listen_address", globals.Config.HTTP.ListenAddress,
		"interval", globals.Config.Ingestion.Interval,
		"database", globals.Config.DBPath(),
	)

	return application.Serve(ctx)
}

func init() {
	serveCmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload the config file on change")
	rootCmd.AddCommand(serveCmd)
}
