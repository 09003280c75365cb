package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultInterval = 10 * time.Minute

// Runner performs one ingestion cycle. *Ingestor implements it.
type Runner interface {
	RunCycle(ctx context.Context) (Report, error)
}

// Scheduler runs a cycle immediately and then on every tick. A trigger that
// fires while the previous cycle is still running is skipped.
type Scheduler struct {
	interval time.Duration
	logger   *slog.Logger
	recorder Recorder

	mu     sync.RWMutex
	runner Runner

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger, recorder Recorder) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		recorder: recorder,
	}
}

// SetRunner swaps the runner used by subsequent cycles. A cycle already in
// flight keeps the runner it started with.
func (s *Scheduler) SetRunner(runner Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runner = runner
}

func (s *Scheduler) currentRunner() Runner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runner
}

// Running reports whether a cycle is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Trigger starts a cycle in the background unless one is already running.
// It reports whether a cycle was started.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.recorder.CycleSkipped()
		s.logger.Warn("Previous ingestion cycle still running, skipping trigger")
		return false
	}

	runner := s.currentRunner()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		report, err := runner.RunCycle(ctx)
		if err != nil {
			s.logger.Error("Ingestion cycle failed", "cycle_id", report.CycleID, "error", err)
			return
		}
		if report.Failed() > 0 {
			s.logger.Warn("Ingestion cycle finished with device errors", "cycle_id", report.CycleID, "failed", report.Failed())
		}
	}()

	return true
}

// Run blocks until ctx is cancelled, then waits for the in-flight cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting ingestion scheduler", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping ingestion scheduler, waiting for in-flight cycle")
			s.wg.Wait()
			return nil
		case <-ticker.C:
			s.Trigger(ctx)
		}
	}
}
