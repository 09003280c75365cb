package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/monorkin/flow-index-monitor/internal/store"
)

type statusResponse struct {
	Status        string `json:"status"`
	DBConnected   bool   `json:"db_connected"`
	SensorsCount  int64  `json:"sensors_count"`
	ReadingsCount int64  `json:"readings_count"`
	Message       string `json:"message"`
}

type realtimeEntry struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	FlowIndex    *int      `json:"flow_index"`
	Status       *string   `json:"status"`
	CO2Eq        *float64  `json:"co2_eq"`
	NoiseAvg     *float64  `json:"noise_avg"`
	AirTemp      *float64  `json:"air_temp"`
	ComfortIndex *float64  `json:"comfort_index"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	Timestamp    time.Time `json:"timestamp"`
}

type realtimeResponse struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      []realtimeEntry `json:"data"`
}

type historyPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	FlowIndex    *int      `json:"flow_index"`
	CO2Eq        *float64  `json:"co2_eq"`
	NoiseAvg     *float64  `json:"noise_avg"`
	ComfortIndex *float64  `json:"comfort_index"`
}

type historyResponse struct {
	SensorID   uint           `json:"sensor_id"`
	SensorName string         `json:"sensor_name"`
	Data       []historyPoint `json:"data"`
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Flow Index API running. Use /api/realtime or /api/history/{sensorId}")
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("Database ping failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "ERROR", Message: "database unavailable"})
		return
	}

	sensors, readings, err := s.store.Counts(ctx)
	if err != nil {
		s.logger.Error("Failed to count rows", "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "ERROR", DBConnected: true, Message: "failed to query the database"})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:        "OK",
		DBConnected:   true,
		SensorsCount:  sensors,
		ReadingsCount: readings,
		Message:       fmt.Sprintf("Server and database OK. %d sensors, %d readings.", sensors, readings),
	})
}

func (s *Server) realtime(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.LatestReadings(r.Context())
	if err != nil {
		s.logger.Error("Failed to load latest readings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load realtime data")
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "no readings found")
		return
	}

	response := realtimeResponse{Data: make([]realtimeEntry, 0, len(rows))}
	for _, row := range rows {
		if row.Timestamp.After(response.Timestamp) {
			response.Timestamp = row.Timestamp
		}
		response.Data = append(response.Data, realtimeEntry{
			ID:           row.SensorID,
			Name:         row.Name,
			FlowIndex:    row.FlowIndex,
			Status:       row.AlertStatus,
			CO2Eq:        row.CO2Eq,
			NoiseAvg:     row.NoiseAvg,
			AirTemp:      row.AirTemp,
			ComfortIndex: row.ComfortIndex,
			Latitude:     row.Latitude,
			Longitude:    row.Longitude,
			Timestamp:    row.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identifier := mux.Vars(r)["sensorId"]

	hours := s.historyHours
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number of hours")
			return
		}
		hours = parsed
	}

	sensor, err := s.store.SensorByIdentifier(ctx, identifier)
	if errors.Is(err, store.ErrSensorNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("sensor %s not found", identifier))
		return
	}
	if err != nil {
		s.logger.Error("Failed to find sensor", "sensor", identifier, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	since := s.now().Add(-time.Duration(hours) * time.Hour)
	rows, err := s.store.History(ctx, sensor.ID, since)
	if err != nil {
		s.logger.Error("Failed to load history", "sensor_id", sensor.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no history for sensor %s in the last %d hours", identifier, hours))
		return
	}

	response := historyResponse{
		SensorID:   sensor.ID,
		SensorName: sensor.Name,
		Data:       make([]historyPoint, 0, len(rows)),
	}
	for _, row := range rows {
		response.Data = append(response.Data, historyPoint{
			Timestamp:    row.Timestamp.UTC(),
			FlowIndex:    row.FlowIndex,
			CO2Eq:        row.CO2Eq,
			NoiseAvg:     row.NoiseAvg,
			ComfortIndex: row.ComfortIndex,
		})
	}

	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}
