package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/monorkin/flow-index-monitor/internal/database"
	"github.com/monorkin/flow-index-monitor/internal/globals"
	"github.com/monorkin/flow-index-monitor/internal/store"
	"github.com/spf13/cobra"
)

// sensorCmd represents the sensor command
var sensorCmd = &cobra.Command{
	Use:     "sensor",
	Aliases: []string{"s", "sensors"},
	Short:   "Inspect known sensors",
}

var sensorListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all known sensors",
	Long:    `List every sensor seen by ingestion with its ID, provider device ID, name and coordinates.`,
	RunE:    runSensorList,
}

func runSensorList(cmd *cobra.Command, args []string) error {
	db, err := globals.Database()
	if err != nil {
		return err
	}
	defer database.Close(db)

	globals.Logger.Debug("Fetching sensors from database")

	sensors, err := store.New(db).Sensors(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch sensors: %w", err)
	}

	if len(sensors) == 0 {
		fmt.Println("No sensors found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tDEVICE ID\tNAME\tLATITUDE\tLONGITUDE")
	fmt.Fprintln(w, "--\t---------\t----\t--------\t---------")

	for _, sensor := range sensors {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			sensor.ID,
			sensor.DeviceID,
			sensor.Name,
			formatCoordinate(sensor.Latitude),
			formatCoordinate(sensor.Longitude),
		)
	}

	globals.Logger.Debug("Sensor list completed", "count", len(sensors))
	return nil
}

func formatCoordinate(value *float64) string {
	if value == nil {
		return "-"
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

func init() {
	rootCmd.AddCommand(sensorCmd)
	sensorCmd.AddCommand(sensorListCmd)
}
