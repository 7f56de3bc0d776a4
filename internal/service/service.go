// Package service contains the session store and the throttled input
// services built on validation, limiter and crypto.
package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/immob/internal/errs"
	"github.com/and161185/immob/internal/limiter"
)

// Option configures a service.
type Option func(*options)

type options struct {
	now func() time.Time
	log *zap.Logger
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// RateLimitError reports a throttled action. Its text is user-facing.
type RateLimitError struct {
	Action     string // plural noun, e.g. "login attempts"
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many %s, please wait %d seconds", e.Action, e.Seconds())
}

func (e *RateLimitError) Unwrap() error { return errs.ErrRateLimited }

// Seconds is RetryAfter rounded up to whole seconds.
func (e *RateLimitError) Seconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// failure is an unexpected error with a user-facing message.
type failure struct {
	msg   string
	cause error
}

func (f *failure) Error() string   { return f.msg }
func (f *failure) Unwrap() []error { return []error{errs.ErrUnexpected, f.cause} }

// Gate consumes one attempt of key on w. It returns a *RateLimitError when
// the budget is exhausted and a wrapped storage error when the limiter state
// cannot be read.
func Gate(ctx context.Context, w *limiter.Window, key, action string, log *zap.Logger) error {
	ok, err := w.CanProceed(ctx, key)
	if err != nil {
		return fmt.Errorf("rate limiter %s: %w", key, err)
	}
	if ok {
		return nil
	}
	retry, err := w.TimeUntilReset(ctx, key)
	if err != nil {
		return fmt.Errorf("rate limiter %s: %w", key, err)
	}
	if log != nil {
		log.Info("rate limited", zap.String("key", key), zap.Duration("retry_after", retry))
	}
	return &RateLimitError{Action: action, RetryAfter: retry}
}
