package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/monorkin/flow-index-monitor/internal/app"
	"github.com/monorkin/flow-index-monitor/internal/database"
	"github.com/monorkin/flow-index-monitor/internal/globals"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run ingestion manually",
}

var ingestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single ingestion cycle and print a per-device summary",
	RunE:  runIngestOnce,
}

func runIngestOnce(cmd *cobra.Command, args []string) error {
	db, err := globals.Database()
	if err != nil {
		return err
	}
	defer database.Close(db)

	application, err := app.NewApp(globals.Config, "", db, globals.Logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	report, err := application.RunOnce(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tSENSOR\tFETCHED\tINSERTED\tSKIPPED\tEMPTY\tERROR")
	fmt.Fprintln(w, "------\t------\t-------\t--------\t-------\t-----\t-----")
	for _, device := range report.Devices {
		errText := "-"
		if device.Err != nil {
			errText = device.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			device.DeviceID,
			device.SensorID,
			device.Fetched,
			device.Inserted,
			device.Skipped,
			device.EmptyMetrics,
			errText,
		)
	}
	w.Flush()

	fmt.Printf("\ncycle %s: %d devices, %d inserted, %d failed in %s\n",
		report.CycleID, len(report.Devices), report.Inserted(), report.Failed(), report.Duration)

	return report.Err()
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestRunCmd)
}
