// Package scheduler drives the periodic evaluation tick. It owns a single
// execution slot: a fire that finds the scheduler paused, or the previous
// tick still running, is skipped rather than queued.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is the pause between ticks.
const DefaultInterval = time.Minute

// TickFunc is the job run on every fire.
type TickFunc func(ctx context.Context) error

// Scheduler fires a TickFunc immediately and then on a fixed interval.
type Scheduler struct {
	interval time.Duration
	job      TickFunc
	logger   *slog.Logger

	paused atomic.Bool
	slot   sync.Mutex
	wg     sync.WaitGroup

	fired   atomic.Int64
	skipped atomic.Int64
}

// New creates a Scheduler. Intervals under one second are rounded up to one
// second by the underlying cron schedule.
func New(interval time.Duration, job TickFunc, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		job:      job,
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// Run fires the first tick right away, then every interval until ctx is
// cancelled. It waits for an in-flight tick before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.fire(ctx) }))

	s.logger.InfoContext(ctx, "scheduler started", slog.Duration("interval", s.interval))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fire(ctx)
	}()
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.wg.Wait()

	s.logger.Info("scheduler stopped",
		slog.Int64("fired", s.fired.Load()),
		slog.Int64("skipped", s.skipped.Load()),
	)
	return nil
}

// Pause makes subsequent fires skip until Resume.
func (s *Scheduler) Pause() {
	s.paused.Store(true)
	s.logger.Debug("scheduler paused")
}

// Resume re-enables fires.
func (s *Scheduler) Resume() {
	s.paused.Store(false)
	s.logger.Debug("scheduler resumed")
}

// Paused reports whether fires are currently skipped.
func (s *Scheduler) Paused() bool {
	return s.paused.Load()
}

// Fired returns the number of ticks that ran.
func (s *Scheduler) Fired() int64 { return s.fired.Load() }

// Skipped returns the number of fires dropped while paused or busy.
func (s *Scheduler) Skipped() int64 { return s.skipped.Load() }

// fire runs the job unless the scheduler is paused or a tick is in flight.
// It reports whether the job ran.
func (s *Scheduler) fire(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if s.paused.Load() {
		s.skipped.Add(1)
		s.logger.DebugContext(ctx, "tick skipped", slog.String("reason", "paused"))
		return false
	}
	if !s.slot.TryLock() {
		s.skipped.Add(1)
		s.logger.WarnContext(ctx, "tick skipped", slog.String("reason", "previous tick still running"))
		return false
	}
	defer s.slot.Unlock()

	s.fired.Add(1)
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.ErrorContext(ctx, "tick failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return true
	}
	s.logger.DebugContext(ctx, "tick complete", slog.Duration("elapsed", time.Since(start)))
	return true
}
