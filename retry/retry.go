// Package retry runs chat platform calls under the failure policy: server and
// transport failures are retried with exponential backoff, everything else
// (authorization failures in particular) is returned at once.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"teambot/errs"
	"teambot/log"
	"teambot/metrics"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 700 * time.Millisecond
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Executor struct {
	maxAttempts int
	baseDelay   time.Duration
	sleep       Sleeper
}

type Option func(*Executor)

// WithMaxAttempts sets the number of attempts including the first one.
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.baseDelay = d
		}
	}
}

func WithSleeper(s Sleeper) Option {
	return func(e *Executor) {
		if s != nil {
			e.sleep = s
		}
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Delay returns the wait before attempt k (k >= 2): base * 2^(k-2).
func (e *Executor) Delay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	return e.baseDelay * time.Duration(1<<(attempt-2))
}

// Run executes fn under the executor's policy.
func (e *Executor) Run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, e, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do executes fn until it succeeds, fails with a non-retryable error, or the
// attempts are exhausted, in which case the last error is returned.
func Do[T any](ctx context.Context, e *Executor, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			wait := e.Delay(attempt)
			metrics.PlatformRetriesTotal.WithLabelValues(op).Inc()
			log.Logger.Debug("retrying platform call",
				zap.String("op", op), zap.Int("attempt", attempt), zap.Duration("wait", wait))
			if err := e.sleep(ctx, wait); err != nil {
				return zero, err
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !Retryable(err) || attempt >= e.maxAttempts {
			return zero, err
		}
	}
}

// Retryable classifies err: remote 5xx and transport failures are retried,
// authorization failures and everything else are not.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, errs.ErrAuthorizationDenied):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, errs.ErrRemoteServer), errors.Is(err, errs.ErrTransientNetwork):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
