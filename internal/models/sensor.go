package models

type Sensor struct {
	ID        uint   `gorm:"primaryKey"`
	DeviceID  string `gorm:"uniqueIndex;size:64;not null"`
	Name      string `gorm:"size:255;not null"`
	Latitude  *float64
	Longitude *float64
	Readings  []Reading
}
