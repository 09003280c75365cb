// Package httpapi serves the read-only dashboard API over the store.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/monorkin/flow-index-monitor/internal/models"
	"github.com/monorkin/flow-index-monitor/internal/store"
)

const (
	DefaultHistoryHours = 24
	shutdownTimeout     = 10 * time.Second
)

// Store is the read side of the store used by the handlers.
type Store interface {
	Ping(ctx context.Context) error
	Counts(ctx context.Context) (int64, int64, error)
	LatestReadings(ctx context.Context) ([]store.LatestReading, error)
	SensorByIdentifier(ctx context.Context, identifier string) (models.Sensor, error)
	History(ctx context.Context, sensorID uint, since time.Time) ([]models.Reading, error)
}

type Config struct {
	Store  Store
	Logger *slog.Logger

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// AccessLog receives combined-format access logs. Defaults to stdout.
	AccessLog io.Writer

	HistoryHours int
	Now          func() time.Time
}

type Server struct {
	store        Store
	logger       *slog.Logger
	metrics      http.Handler
	accessLog    io.Writer
	historyHours int
	now          func() time.Time
}

func New(cfg Config) *Server {
	server := &Server{
		store:        cfg.Store,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		accessLog:    cfg.AccessLog,
		historyHours: cfg.HistoryHours,
		now:          cfg.Now,
	}

	if server.logger == nil {
		server.logger = slog.Default()
	}
	if server.accessLog == nil {
		server.accessLog = os.Stdout
	}
	if server.historyHours <= 0 {
		server.historyHours = DefaultHistoryHours
	}
	if server.now == nil {
		server.now = time.Now
	}

	return server
}

// Router returns the routes without middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.index).Methods(http.MethodGet)
	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	r.HandleFunc("/api/realtime", s.realtime).Methods(http.MethodGet)
	r.HandleFunc("/api/history/{sensorId}", s.history).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	return r
}

// Handler returns the router wrapped with CORS and access logging.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
	)
	return handlers.CombinedLoggingHandler(s.accessLog, cors(s.Router()))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP API")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
