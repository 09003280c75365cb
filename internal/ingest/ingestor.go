// Package ingest pulls new telemetry from the provider, scores it and
// appends it to the store, one device at a time.
package ingest

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/monorkin/flow-index-monitor/internal/models"
	"github.com/monorkin/flow-index-monitor/internal/scorer"
	"github.com/monorkin/flow-index-monitor/internal/store"
	"github.com/monorkin/flow-index-monitor/telemetry/api"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDeviceTimeout = 30 * time.Second
	DefaultConcurrency   = 4
)

// Cycle outcomes, as reported to the Recorder.
const (
	ResultOK          = "ok"
	ResultPartial     = "partial"
	ResultAuthFailed  = "auth_failed"
	ResultListFailed  = "list_failed"
	ResultInterrupted = "interrupted"
)

// ErrAuthentication marks a cycle that could not obtain a provider token.
var ErrAuthentication = errors.New("provider authentication failed")

// Provider is the remote telemetry capability.
type Provider interface {
	Login(ctx context.Context) (string, error)
	ListDevices(ctx context.Context, token string) ([]api.Device, error)
	FetchReadings(ctx context.Context, token string, deviceID string, from *time.Time, to time.Time) ([]api.Reading, error)
}

// Store is the persistence the ingestor needs.
type Store interface {
	UpsertSensor(ctx context.Context, in store.SensorInput) (models.Sensor, bool, error)
	Watermark(ctx context.Context, sensorID uint) (*time.Time, error)
	InsertReadings(ctx context.Context, rows []models.Reading) (int64, error)
}

// Recorder receives ingestion measurements. *metrics.Metrics implements it.
type Recorder interface {
	CycleFinished(result string, started time.Time, duration time.Duration)
	CycleSkipped()
	DeviceIngested(deviceID string, inserted int64, latestFlowIndex *int)
	DeviceFailed(deviceID string)
}

// Config wires an Ingestor. Provider and Store are required.
type Config struct {
	Provider Provider
	Store    Store
	Logger   *slog.Logger
	Recorder Recorder

	// Now is read once per cycle to fix the upper bound of every fetch.
	Now func() time.Time

	DeviceTimeout time.Duration
	Concurrency   int
}

type Ingestor struct {
	provider      Provider
	store         Store
	logger        *slog.Logger
	recorder      Recorder
	now           func() time.Time
	deviceTimeout time.Duration
	concurrency   int
}

// DeviceResult describes what one cycle did for one device.
type DeviceResult struct {
	DeviceID      string
	SensorID      uint
	SensorWritten bool
	Watermark     *time.Time
	Fetched       int
	Skipped       int
	Inserted      int64
	EmptyMetrics  int
	Err           error
}

// Report summarizes one cycle.
type Report struct {
	CycleID  string
	Started  time.Time
	Duration time.Duration
	Devices  []DeviceResult
}

// Err joins every per-device error, or returns nil when all devices succeeded.
func (r Report) Err() error {
	var errs []error
	for _, device := range r.Devices {
		if device.Err != nil {
			errs = append(errs, device.Err)
		}
	}
	return stderrors.Join(errs...)
}

func (r Report) Failed() int {
	failed := 0
	for _, device := range r.Devices {
		if device.Err != nil {
			failed++
		}
	}
	return failed
}

func (r Report) Inserted() int64 {
	var inserted int64
	for _, device := range r.Devices {
		inserted += device.Inserted
	}
	return inserted
}

func New(cfg Config) (*Ingestor, error) {
	if cfg.Provider == nil {
		return nil, errors.New("ingest: provider is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("ingest: store is required")
	}

	ingestor := &Ingestor{
		provider:      cfg.Provider,
		store:         cfg.Store,
		logger:        cfg.Logger,
		recorder:      cfg.Recorder,
		now:           cfg.Now,
		deviceTimeout: cfg.DeviceTimeout,
		concurrency:   cfg.Concurrency,
	}

	if ingestor.logger == nil {
		ingestor.logger = slog.Default()
	}
	if ingestor.recorder == nil {
		ingestor.recorder = noopRecorder{}
	}
	if ingestor.now == nil {
		ingestor.now = time.Now
	}
	if ingestor.deviceTimeout <= 0 {
		ingestor.deviceTimeout = DefaultDeviceTimeout
	}
	if ingestor.concurrency <= 0 {
		ingestor.concurrency = DefaultConcurrency
	}

	return ingestor, nil
}

// RunCycle performs one full ingestion pass. The returned error covers only
// cycle-wide failures (authentication, device listing, cancellation);
// per-device failures are reported in Report.Devices.
func (i *Ingestor) RunCycle(ctx context.Context) (Report, error) {
	report := Report{
		CycleID: uuid.NewString(),
		Started: i.now(),
	}
	to := report.Started
	logger := i.logger.With("cycle_id", report.CycleID)

	finish := func(result string) {
		report.Duration = i.now().Sub(report.Started)
		i.recorder.CycleFinished(result, report.Started, report.Duration)
	}

	logger.Debug("Starting ingestion cycle", "to", to)

	token, err := i.provider.Login(ctx)
	if err == nil && token == "" {
		err = api.ErrNoToken
	}
	if err != nil {
		finish(ResultAuthFailed)
		logger.Error("Authentication failed, aborting cycle", "error", err)
		return report, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	devices, err := i.provider.ListDevices(ctx, token)
	if err != nil {
		finish(ResultListFailed)
		logger.Error("Failed to list devices, aborting cycle", "error", err)
		return report, errors.Wrap(err, "list devices")
	}

	report.Devices = make([]DeviceResult, len(devices))

	var group errgroup.Group
	group.SetLimit(i.concurrency)
	for idx, device := range devices {
		group.Go(func() error {
			report.Devices[idx] = i.ingestDevice(ctx, logger, token, device, to)
			return nil
		})
	}
	_ = group.Wait()

	if ctx.Err() != nil {
		finish(ResultInterrupted)
		return report, errors.Wrap(ctx.Err(), "cycle interrupted")
	}

	result := ResultOK
	if report.Failed() > 0 {
		result = ResultPartial
	}
	finish(result)

	logger.Info("Ingestion cycle completed",
		"devices", len(report.Devices),
		"failed", report.Failed(),
		"inserted", report.Inserted(),
		"duration", report.Duration,
	)

	return report, nil
}

func (i *Ingestor) ingestDevice(ctx context.Context, logger *slog.Logger, token string, device api.Device, to time.Time) DeviceResult {
	result := DeviceResult{DeviceID: string(device.ID)}
	logger = logger.With("device_id", result.DeviceID)

	result.Err = i.processDevice(ctx, logger, token, device, to, &result)
	if result.Err != nil {
		i.recorder.DeviceFailed(result.DeviceID)
		logger.Error("Device ingestion failed", "error", result.Err)
	}

	return result
}

func (i *Ingestor) processDevice(ctx context.Context, logger *slog.Logger, token string, device api.Device, to time.Time, result *DeviceResult) error {
	if result.DeviceID == "" {
		return errors.New("device has no id")
	}

	ctx, cancel := context.WithTimeout(ctx, i.deviceTimeout)
	defer cancel()

	sensor, written, err := i.store.UpsertSensor(ctx, store.SensorInput{
		DeviceID:  result.DeviceID,
		Name:      device.DisplayName(),
		Latitude:  device.Latitude.Float(),
		Longitude: device.Longitude.Float(),
	})
	if err != nil {
		return errors.Wrapf(err, "device %s: upsert sensor", result.DeviceID)
	}
	result.SensorID = sensor.ID
	result.SensorWritten = written

	watermark, err := i.store.Watermark(ctx, sensor.ID)
	if err != nil {
		return errors.Wrapf(err, "device %s: watermark", result.DeviceID)
	}
	result.Watermark = watermark

	items, err := i.provider.FetchReadings(ctx, token, result.DeviceID, watermark, to)
	if err != nil {
		return errors.Wrapf(err, "device %s: fetch readings", result.DeviceID)
	}
	result.Fetched = len(items)

	if len(items) == 0 {
		logger.Debug("No new readings")
		return nil
	}

	rows := make([]models.Reading, 0, len(items))
	var latest models.Reading
	for _, item := range items {
		timestamp := item.CreatedAt.UTC()

		// Providers may treat dateFrom as inclusive; the watermark row is already stored.
		if timestamp.IsZero() || (watermark != nil && !timestamp.After(*watermark)) {
			result.Skipped++
			continue
		}

		row, empty := scoreReading(sensor.ID, timestamp, item)
		if empty {
			result.EmptyMetrics++
		}
		rows = append(rows, row)

		if row.Timestamp.After(latest.Timestamp) {
			latest = row
		}
	}

	if result.EmptyMetrics > 0 {
		logger.Warn("Readings without CO2, noise or temperature scored as OK", "empty_metrics", result.EmptyMetrics)
	}

	if len(rows) == 0 {
		return nil
	}

	inserted, err := i.store.InsertReadings(ctx, rows)
	if err != nil {
		return errors.Wrapf(err, "device %s: insert readings", result.DeviceID)
	}
	result.Inserted = inserted

	i.recorder.DeviceIngested(result.DeviceID, inserted, latest.FlowIndex)
	logger.Debug("Readings stored", "fetched", result.Fetched, "inserted", inserted, "skipped", result.Skipped)

	return nil
}

func scoreReading(sensorID uint, timestamp time.Time, item api.Reading) (models.Reading, bool) {
	metrics := scorer.Metrics{
		CO2:         item.Data.CO2Eq,
		Noise:       item.Data.NoiseAvg,
		Temperature: item.Data.AirTemp,
	}
	score := scorer.Score(metrics)

	return models.Reading{
		SensorID:     sensorID,
		Timestamp:    timestamp,
		CO2Eq:        item.Data.CO2Eq,
		NoiseAvg:     item.Data.NoiseAvg,
		AirTemp:      item.Data.AirTemp,
		Humidity:     item.Data.Humidity,
		ComfortIndex: item.DiscomfortIndex,
		FlowIndex:    &score.FlowIndex,
		AlertStatus:  &score.AlertStatus,
	}, metrics.Empty()
}

type noopRecorder struct{}

func (noopRecorder) CycleFinished(string, time.Time, time.Duration) {}
func (noopRecorder) CycleSkipped()                                  {}
func (noopRecorder) DeviceIngested(string, int64, *int)             {}
func (noopRecorder) DeviceFailed(string)                            {}
