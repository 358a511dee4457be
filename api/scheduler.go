/*
scheduler.go - Automated fine recomputation

PURPOSE:
  Periodically recomputes the cached fine (totalDenda) of every loan so
  list views and reports stay current without a write to each loan.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - One batch at a time; a manual run waits for a scheduled one
  - Each run is recorded (running, then completed or failed) when a run
    store is configured, for audit and UI display
  - Loans whose fine did not change are skipped by the service

CONFIGURATION:
  - Interval: How often to run (default: 1 hour)
  - Enabled:  Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewFineScheduler(service, store, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RecomputeFines endpoint (manual run)
  - loan/service.go: RecomputeFines batch
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/equipment-loan/loan"
	"github.com/warp/equipment-loan/metrics"
	"github.com/warp/equipment-loan/store/sqlite"
)

// FineScheduler runs the fine batch on an interval.
type FineScheduler struct {
	Service  *loan.Service
	Runs     FineRunStore // optional
	Logger   *zap.Logger
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	runMu  sync.Mutex
}

// NewFineScheduler creates a new scheduler. runs may be nil.
func NewFineScheduler(svc *loan.Service, runs FineRunStore, logger *zap.Logger) *FineScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FineScheduler{
		Service:  svc,
		Runs:     runs,
		Logger:   logger.Named("fine-scheduler"),
		Interval: time.Hour,
		Enabled:  true,
		stop:     make(chan struct{}),
	}
}

// Start begins the scheduler.
func (fs *FineScheduler) Start() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.Enabled {
		fs.Logger.Info("disabled, not starting")
		return
	}
	if fs.ticker != nil {
		return
	}

	fs.ticker = time.NewTicker(fs.Interval)
	fs.wg.Add(1)

	go fs.run(fs.ticker.C, fs.stop)

	fs.Logger.Info("started", zap.Duration("interval", fs.Interval))
}

// Stop stops the scheduler and waits for a running batch to finish.
func (fs *FineScheduler) Stop() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.ticker != nil {
		fs.ticker.Stop()
		close(fs.stop)
		fs.wg.Wait()
		fs.ticker = nil
		fs.stop = make(chan struct{})
		fs.Logger.Info("stopped")
	}
}

func (fs *FineScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer fs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Run immediately on start
	fs.RunNow(ctx)

	for {
		select {
		case <-tick:
			fs.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow executes one batch and records it.
func (fs *FineScheduler) RunNow(ctx context.Context) (*loan.BatchReport, error) {
	fs.runMu.Lock()
	defer fs.runMu.Unlock()

	started := time.Now()
	run := sqlite.FineRun{
		ID:        "run-" + uuid.NewString(),
		Status:    "running",
		StartedAt: started,
	}
	fs.save(ctx, run)

	report, err := fs.Service.RecomputeFines(ctx)
	metrics.FineRunDuration.Observe(time.Since(started).Seconds())

	completed := time.Now()
	run.CompletedAt = &completed
	if err != nil {
		metrics.FineRunsTotal.WithLabelValues("failed").Inc()
		run.Status = "failed"
		run.Error = err.Error()
		fs.save(ctx, run)
		fs.Logger.Error("fine run failed", zap.String("run", run.ID), zap.Error(err))
		return nil, fmt.Errorf("fine run %s: %w", run.ID, err)
	}

	metrics.FineRunsTotal.WithLabelValues("completed").Inc()
	run.Status = "completed"
	run.Processed = report.Processed
	run.Updated = report.Updated
	run.Skipped = report.Skipped
	run.Failed = report.Failed
	fs.save(ctx, run)

	fs.Logger.Info("fine run completed",
		zap.String("run", run.ID),
		zap.Int("processed", report.Processed),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("took", completed.Sub(started)),
	)
	return report, nil
}

func (fs *FineScheduler) save(ctx context.Context, run sqlite.FineRun) {
	if fs.Runs == nil {
		return
	}
	// Runs are recorded even after ctx is cancelled.
	if err := fs.Runs.SaveFineRun(context.WithoutCancel(ctx), run); err != nil {
		fs.Logger.Warn("saving fine run", zap.String("run", run.ID), zap.Error(err))
	}
}
