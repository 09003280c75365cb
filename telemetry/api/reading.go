package api

import (
	"time"
)

// Reading is one classified sample returned by /data-classifications.
type Reading struct {
	CreatedAt       time.Time   `json:"createdAt"`
	DiscomfortIndex *float64    `json:"discomfortIndex"`
	Data            ReadingData `json:"data"`
}

// ReadingData carries the raw sensor channels. Channels the scorer does not
// use are ignored.
type ReadingData struct {
	CO2Eq    *float64 `json:"ccs811Eco2"`
	NoiseAvg *float64 `json:"ics43434DbAvg"`
	AirTemp  *float64 `json:"si7021Temp"`
	Humidity *float64 `json:"si7021Humidity"`
}
