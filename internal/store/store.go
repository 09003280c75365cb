// Package store persists sensors and scored readings and answers the
// dashboard queries.
package store

import (
	"context"
	"strconv"
	"time"

	"github.com/monorkin/flow-index-monitor/internal/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 200

var (
	ErrSensorNotFound = errors.New("sensor not found")
	ErrNoReadings     = errors.New("no readings")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SensorInput is the upstream view of a sensor's tracked fields.
type SensorInput struct {
	DeviceID  string
	Name      string
	Latitude  *float64
	Longitude *float64
}

// LatestReading is the newest reading of a sensor joined with the sensor's
// registry fields.
type LatestReading struct {
	SensorID     uint
	DeviceID     string
	Name         string
	Latitude     *float64
	Longitude    *float64
	ReadingID    uint
	Timestamp    time.Time
	CO2Eq        *float64 `gorm:"column:co2_eq"`
	NoiseAvg     *float64
	AirTemp      *float64
	Humidity     *float64
	ComfortIndex *float64
	FlowIndex    *int
	AlertStatus  *string
}

// UpsertSensor creates the sensor on first sight and otherwise updates it
// only when a tracked field differs. The boolean reports whether a write
// happened.
func (s *Store) UpsertSensor(ctx context.Context, in SensorInput) (models.Sensor, bool, error) {
	var sensor models.Sensor

	err := s.db.WithContext(ctx).Where("device_id = ?", in.DeviceID).Take(&sensor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sensor = models.Sensor{
			DeviceID:  in.DeviceID,
			Name:      in.Name,
			Latitude:  in.Latitude,
			Longitude: in.Longitude,
		}
		if err := s.db.WithContext(ctx).Create(&sensor).Error; err != nil {
			return models.Sensor{}, false, errors.Wrap(err, "create sensor")
		}
		return sensor, true, nil
	}
	if err != nil {
		return models.Sensor{}, false, errors.Wrap(err, "find sensor")
	}

	if sensor.Name == in.Name && sameCoordinate(sensor.Latitude, in.Latitude) && sameCoordinate(sensor.Longitude, in.Longitude) {
		return sensor, false, nil
	}

	err = s.db.WithContext(ctx).Model(&sensor).Updates(map[string]any{
		"name":      in.Name,
		"latitude":  in.Latitude,
		"longitude": in.Longitude,
	}).Error
	if err != nil {
		return models.Sensor{}, false, errors.Wrap(err, "update sensor")
	}

	sensor.Name = in.Name
	sensor.Latitude = in.Latitude
	sensor.Longitude = in.Longitude

	return sensor, true, nil
}

// Watermark returns the newest stored reading timestamp of the sensor, or
// nil when the sensor has no readings.
func (s *Store) Watermark(ctx context.Context, sensorID uint) (*time.Time, error) {
	var reading models.Reading

	err := s.db.WithContext(ctx).
		Select("timestamp").
		Where("sensor_id = ?", sensorID).
		Order("timestamp DESC").
		Take(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find watermark")
	}

	watermark := reading.Timestamp.UTC()
	return &watermark, nil
}

// InsertReadings writes rows in a single transaction. Rows that collide with
// an existing (sensor_id, timestamp) are skipped; the return value counts
// only rows actually inserted.
func (s *Store) InsertReadings(ctx context.Context, rows []models.Reading) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var inserted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, insertBatchSize)
		if res.Error != nil {
			return errors.Wrap(res.Error, "create")
		}
		inserted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "transaction")
	}

	return inserted, nil
}

// LatestReadings returns the newest reading of every sensor that has one,
// ordered by sensor id. Timestamp ties go to the highest reading id.
func (s *Store) LatestReadings(ctx context.Context) ([]LatestReading, error) {
	var rows []LatestReading

	err := s.db.WithContext(ctx).
		Table("readings AS r").
		Select(`r.sensor_id, s.device_id, s.name, s.latitude, s.longitude,
			r.id AS reading_id, r.timestamp, r.co2_eq, r.noise_avg, r.air_temp,
			r.humidity, r.comfort_index, r.flow_index, r.alert_status`).
		Joins("JOIN sensors s ON s.id = r.sensor_id").
		Where(`r.id = (
			SELECT r2.id FROM readings r2
			WHERE r2.sensor_id = r.sensor_id
			ORDER BY r2.timestamp DESC, r2.id DESC
			LIMIT 1
		)`).
		Order("r.sensor_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "find latest readings")
	}

	return rows, nil
}

// History returns the sensor's readings at or after since, oldest first.
func (s *Store) History(ctx context.Context, sensorID uint, since time.Time) ([]models.Reading, error) {
	var rows []models.Reading

	err := s.db.WithContext(ctx).
		Where("sensor_id = ? AND timestamp >= ?", sensorID, since.UTC()).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "find history")
	}

	return rows, nil
}

// LatestForSensor returns the sensor's newest reading.
func (s *Store) LatestForSensor(ctx context.Context, sensorID uint) (models.Reading, error) {
	var reading models.Reading

	err := s.db.WithContext(ctx).
		Where("sensor_id = ?", sensorID).
		Order("timestamp DESC, id DESC").
		Take(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Reading{}, errors.Wrapf(ErrNoReadings, "sensor %d", sensorID)
	}
	if err != nil {
		return models.Reading{}, errors.Wrap(err, "find latest reading")
	}

	return reading, nil
}

// Counts returns the number of sensors and readings.
func (s *Store) Counts(ctx context.Context) (int64, int64, error) {
	var sensors, readings int64

	if err := s.db.WithContext(ctx).Model(&models.Sensor{}).Count(&sensors).Error; err != nil {
		return 0, 0, errors.Wrap(err, "count sensors")
	}
	if err := s.db.WithContext(ctx).Model(&models.Reading{}).Count(&readings).Error; err != nil {
		return 0, 0, errors.Wrap(err, "count readings")
	}

	return sensors, readings, nil
}

func (s *Store) Sensors(ctx context.Context) ([]models.Sensor, error) {
	var sensors []models.Sensor
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&sensors).Error; err != nil {
		return nil, errors.Wrap(err, "find sensors")
	}
	return sensors, nil
}

// SensorByIdentifier looks a sensor up by numeric id first and by device id
// otherwise.
func (s *Store) SensorByIdentifier(ctx context.Context, identifier string) (models.Sensor, error) {
	var sensor models.Sensor

	err := gorm.ErrRecordNotFound
	if id, parseErr := strconv.ParseUint(identifier, 10, 32); parseErr == nil {
		err = s.db.WithContext(ctx).Where("id = ?", uint(id)).Take(&sensor).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = s.db.WithContext(ctx).Where("device_id = ?", identifier).Take(&sensor).Error
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Sensor{}, errors.Wrapf(ErrSensorNotFound, "identifier %q", identifier)
	}
	if err != nil {
		return models.Sensor{}, errors.Wrap(err, "find sensor")
	}

	return sensor, nil
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "connection pool")
	}
	return errors.Wrap(sqlDB.PingContext(ctx), "ping")
}

func sameCoordinate(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
