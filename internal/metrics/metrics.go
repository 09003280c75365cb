package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flow_index"

// Metrics holds the ingestion collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles           *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	cyclesSkipped    prometheus.Counter
	lastSuccess      prometheus.Gauge
	readingsInserted *prometheus.CounterVec
	deviceFailures   *prometheus.CounterVec
	latestFlowIndex  *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_cycles_total",
			Help:      "Ingestion cycles by outcome.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_cycle_duration_seconds",
			Help:      "Wall time of one ingestion cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		cyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_cycles_skipped_total",
			Help:      "Triggers skipped because a cycle was still running.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingestion_last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle without errors.",
		}),
		readingsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_inserted_total",
			Help:      "Readings written to the store.",
		}, []string{"device_id"}),
		deviceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_failures_total",
			Help:      "Per-device ingestion failures.",
		}, []string{"device_id"}),
		latestFlowIndex: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_flow_index",
			Help:      "Flow Index of the newest ingested reading.",
		}, []string{"device_id"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles,
		m.cycleDuration,
		m.cyclesSkipped,
		m.lastSuccess,
		m.readingsInserted,
		m.deviceFailures,
		m.latestFlowIndex,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) CycleFinished(result string, started time.Time, duration time.Duration) {
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(duration.Seconds())
	if result == "ok" {
		m.lastSuccess.Set(float64(started.Add(duration).Unix()))
	}
}

func (m *Metrics) CycleSkipped() {
	m.cyclesSkipped.Inc()
}

func (m *Metrics) DeviceIngested(deviceID string, inserted int64, latestFlowIndex *int) {
	m.readingsInserted.WithLabelValues(deviceID).Add(float64(inserted))
	if latestFlowIndex != nil {
		m.latestFlowIndex.WithLabelValues(deviceID).Set(float64(*latestFlowIndex))
	}
}

func (m *Metrics) DeviceFailed(deviceID string) {
	m.deviceFailures.WithLabelValues(deviceID).Inc()
}
