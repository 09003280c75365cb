package models

import (
	"time"
)

// Reading is one scored telemetry sample. Rows are append-only.
type Reading struct {
	ID           uint      `gorm:"primaryKey"`
	SensorID     uint      `gorm:"not null;uniqueIndex:idx_readings_sensor_timestamp"`
	Timestamp    time.Time `gorm:"not null;uniqueIndex:idx_readings_sensor_timestamp"`
	CO2Eq        *float64  `gorm:"column:co2_eq"`
	NoiseAvg     *float64
	AirTemp      *float64
	Humidity     *float64
	ComfortIndex *float64
	FlowIndex    *int
	AlertStatus  *string `gorm:"size:64"`
}
