package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/monorkin/flow-index-monitor/internal/database"
	"github.com/monorkin/flow-index-monitor/internal/globals"
	"github.com/monorkin/flow-index-monitor/internal/models"
	"github.com/monorkin/flow-index-monitor/internal/store"
	"github.com/spf13/cobra"
)

var historyHours int

// readingCmd represents the reading command
var readingCmd = &cobra.Command{
	Use:     "reading",
	Aliases: []string{"r", "readings"},
	Short:   "Get scored readings",
	Long:    `Commands for retrieving stored, scored readings of a sensor.`,
}

var readingLatestCmd = &cobra.Command{
	Use:   "latest <sensor_id_or_device_id>",
	Short: "Print the newest reading of a sensor as JSON",
	Long: `Print the newest reading of a sensor, identified by its numeric ID or by
the provider's device ID.

Examples:
  flow-index-monitor reading latest 1
  flow-index-monitor reading latest 5f2a0c`,
	Args: cobra.ExactArgs(1),
	RunE: runReadingLatest,
}

var readingHistoryCmd = &cobra.Command{
	Use:   "history <sensor_id_or_device_id>",
	Short: "Print a sensor's readings from the last N hours as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runReadingHistory,
}

// SensorInfo represents sensor information for JSON output
type SensorInfo struct {
	ID        uint     `json:"id"`
	DeviceID  string   `json:"device_id"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// ReadingInfo represents reading information for JSON output
type ReadingInfo struct {
	Timestamp    string   `json:"timestamp"`
	CO2Eq        *float64 `json:"co2_eq"`
	NoiseAvg     *float64 `json:"noise_avg"`
	AirTemp      *float64 `json:"air_temp"`
	Humidity     *float64 `json:"humidity"`
	ComfortIndex *float64 `json:"comfort_index"`
	FlowIndex    *int     `json:"flow_index"`
	AlertStatus  *string  `json:"alert_status"`
}

func newSensorInfo(sensor models.Sensor) SensorInfo {
	return SensorInfo{
		ID:        sensor.ID,
		DeviceID:  sensor.DeviceID,
		Name:      sensor.Name,
		Latitude:  sensor.Latitude,
		Longitude: sensor.Longitude,
	}
}

func newReadingInfo(reading models.Reading) ReadingInfo {
	return ReadingInfo{
		Timestamp:    reading.Timestamp.UTC().Format(time.RFC3339),
		CO2Eq:        reading.CO2Eq,
		NoiseAvg:     reading.NoiseAvg,
		AirTemp:      reading.AirTemp,
		Humidity:     reading.Humidity,
		ComfortIndex: reading.ComfortIndex,
		FlowIndex:    reading.FlowIndex,
		AlertStatus:  reading.AlertStatus,
	}
}

func runReadingLatest(cmd *cobra.Command, args []string) error {
	identifier := args[0]
	globals.Logger.Debug("Getting latest reading for sensor", "identifier", identifier)

	db, err := globals.Database()
	if err != nil {
		return err
	}
	defer database.Close(db)

	st := store.New(db)
	sensor, err := findSensor(cmd, st, identifier)
	if err != nil {
		return err
	}

	latest, err := st.LatestForSensor(cmd.Context(), sensor.ID)
	if errors.Is(err, store.ErrNoReadings) {
		return fmt.Errorf("no readings found for sensor %s", identifier)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch reading: %w", err)
	}

	return printJSON(struct {
		Sensor  SensorInfo  `json:"sensor"`
		Reading ReadingInfo `json:"reading"`
	}{
		Sensor:  newSensorInfo(sensor),
		Reading: newReadingInfo(latest),
	})
}

func runReadingHistory(cmd *cobra.Command, args []string) error {
	identifier := args[0]
	if historyHours <= 0 {
		return fmt.Errorf("--hours must be positive")
	}

	db, err := globals.Database()
	if err != nil {
		return err
	}
	defer database.Close(db)

	st := store.New(db)
	sensor, err := findSensor(cmd, st, identifier)
	if err != nil {
		return err
	}

	since := time.Now().Add(-time.Duration(historyHours) * time.Hour)
	rows, err := st.History(cmd.Context(), sensor.ID, since)
	if err != nil {
		return fmt.Errorf("failed to fetch readings: %w", err)
	}

	readings := make([]ReadingInfo, 0, len(rows))
	for _, row := range rows {
		readings = append(readings, newReadingInfo(row))
	}

	globals.Logger.Debug("Reading history completed", "sensor_id", sensor.ID, "count", len(readings))

	return printJSON(struct {
		Sensor   SensorInfo    `json:"sensor"`
		Hours    int           `json:"hours"`
		Readings []ReadingInfo `json:"readings"`
	}{
		Sensor:   newSensorInfo(sensor),
		Hours:    historyHours,
		Readings: readings,
	})
}

func findSensor(cmd *cobra.Command, st *store.Store, identifier string) (models.Sensor, error) {
	sensor, err := st.SensorByIdentifier(cmd.Context(), identifier)
	if errors.Is(err, store.ErrSensorNotFound) {
		return models.Sensor{}, fmt.Errorf("sensor not found: %s", identifier)
	}
	if err != nil {
		return models.Sensor{}, fmt.Errorf("failed to look up sensor: %w", err)
	}

	globals.Logger.Debug("Found sensor", "id", sensor.ID, "name", sensor.Name, "device_id", sensor.DeviceID)
	return sensor, nil
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}

	fmt.Println(string(output))
	return nil
}

func init() {
	readingHistoryCmd.Flags().IntVar(&historyHours, "hours", 24, "Number of hours of history to print")

	rootCmd.AddCommand(readingCmd)
	readingCmd.AddCommand(readingLatestCmd)
	readingCmd.AddCommand(readingHistoryCmd)
}
