// Package scheduler provides fixed-interval background job execution.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of periodic work. A non-nil error is logged, never
// propagated: a failing sweep must not take the runner down with it.
type Job func(ctx context.Context) error

// IntervalRunner executes a named job on a fixed interval. The interval is
// fixed at construction and never shortened at runtime, so a slow or failing
// job cannot cause the runner to hammer its target.
type IntervalRunner struct {
	name     string
	interval time.Duration
	job      Job
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	// guards against double Start / Stop
	running bool
}

// NewIntervalRunner creates a runner for the given job. A non-positive
// interval falls back to one minute.
func NewIntervalRunner(name string, interval time.Duration, job Job, logger *zap.Logger) *IntervalRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &IntervalRunner{
		name:     name,
		interval: interval,
		job:      job,
		logger:   logger.With(zap.String("job", name)),
	}
}

// Start launches the run loop. Calling Start on a running runner is a no-op.
func (r *IntervalRunner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run(ctx)

	r.logger.Info("Interval runner started", zap.Duration("interval", r.interval))
}

// Stop cancels the run loop and waits for an in-flight job to return. Safe to
// call more than once.
func (r *IntervalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.logger.Info("Interval runner stopped")
}

func (r *IntervalRunner) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

// runOnce executes the job with panic isolation. One bad run is logged and
// the loop keeps its cadence.
func (r *IntervalRunner) runOnce(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Job panicked", zap.Any("panic", rec))
		}
	}()

	start := time.Now()
	if err := r.job(ctx); err != nil {
		r.logger.Error("Job failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return
	}
	r.logger.Debug("Job completed", zap.Duration("elapsed", time.Since(start)))
}
