// Package retry runs remote calls until they succeed. There is no attempt
// cap and no backoff: a broken dependency stalls the caller rather than
// letting it act on missing data.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultDelay is the pause between attempts.
const DefaultDelay = 2 * time.Second

// SleepFunc waits for d. It must only fail once ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor retries operations with a fixed delay between attempts.
type Executor struct {
	delay  time.Duration
	sleep  SleepFunc
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleep replaces the wall-clock wait between attempts, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) { e.sleep = fn }
}

// New creates an Executor. A non-positive delay falls back to DefaultDelay.
func New(delay time.Duration, logger *slog.Logger, opts ...Option) *Executor {
	if delay <= 0 {
		delay = DefaultDelay
	}
	e := &Executor{
		delay:  delay,
		logger: logger.With(slog.String("component", "retry")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Delay returns the configured pause between attempts.
func (e *Executor) Delay() time.Duration {
	return e.delay
}

// Do calls fn until it returns without error. It only gives up when ctx is
// cancelled, returning ctx.Err().
func Do[T any](ctx context.Context, e *Executor, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		return fn(ctx)
	}
	notify := func(err error, next time.Duration) {
		e.logger.WarnContext(ctx, "remote call failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("delay", next),
			slog.String("error", err.Error()),
		)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(e.delay), ctx)
	v, err := backoff.RetryNotifyWithTimerAndData[T](operation, b, notify, e.timer(ctx))
	if err != nil {
		// A constant backoff never stops, so the loop only ends on ctx.
		if cerr := ctx.Err(); cerr != nil {
			return zero, cerr
		}
		return zero, err
	}
	return v, nil
}

// Exec is Do for operations without a result.
func (e *Executor) Exec(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, e, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (e *Executor) timer(ctx context.Context) backoff.Timer {
	if e.sleep == nil {
		return nil
	}
	return &sleepTimer{ctx: ctx, sleep: e.sleep, c: make(chan time.Time, 1)}
}

// sleepTimer adapts a SleepFunc to backoff.Timer. It fires only when the
// sleep completes, leaving ctx.Done as the sole wake-up otherwise.
type sleepTimer struct {
	ctx   context.Context
	sleep SleepFunc
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	if err := t.sleep(t.ctx, d); err == nil {
		t.c <- time.Now()
	}
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}
