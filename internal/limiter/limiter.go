// Package limiter implements sliding-window rate limiting with per-key
// attempt logs persisted in a storage.Store.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/immob/internal/storage"
)

// KeyPrefix prefixes every persisted attempt log: "rate-limiter-<key>".
const KeyPrefix = "rate-limiter-"

// Policy is the budget of one limiter: at most Max permitted attempts in any Window.
type Policy struct {
	Max    int
	Window time.Duration
}

// Validate rejects non-positive budgets.
func (p Policy) Validate() error {
	if p.Max <= 0 || p.Window <= 0 {
		return fmt.Errorf("invalid limiter policy %d/%s", p.Max, p.Window)
	}
	return nil
}

// Window is a sliding-window limiter. Each key stores a JSON array of
// millisecond timestamps of permitted attempts; stale entries are pruned
// lazily on access, so no background timer is needed.
type Window struct {
	store  storage.Store
	policy Policy
	now    func() time.Time
	log    *zap.Logger

	mu sync.Mutex // serializes read-modify-write of attempt logs
}

// Option configures a Window.
type Option func(*Window)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(w *Window) { w.now = now } }

// WithLogger sets the logger used for corrupt-record warnings.
func WithLogger(l *zap.Logger) Option { return func(w *Window) { w.log = l } }

// NewWindow constructs a limiter with the given policy.
func NewWindow(store storage.Store, p Policy, opts ...Option) *Window {
	w := &Window{store: store, policy: p, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Policy returns the configured budget.
func (w *Window) Policy() Policy { return w.policy }

// CanProceed prunes the key's log and, if fewer than Max attempts remain in
// the window, records now and reports true. Rejected attempts are not recorded.
func (w *Window) CanProceed(ctx context.Context, key string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now().UnixMilli()
	recent, err := w.recent(ctx, key, now)
	if err != nil {
		return false, err
	}
	if len(recent) >= w.policy.Max {
		return false, nil
	}
	recent = append(recent, now)
	if err := storage.SetJSON(ctx, w.store, KeyPrefix+key, recent); err != nil {
		return false, fmt.Errorf("persist attempts: %w", err)
	}
	return true, nil
}

// Remaining reports max(0, Max - attempts in window). It does not write.
func (w *Window) Remaining(ctx context.Context, key string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	recent, err := w.recent(ctx, key, w.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return max(0, w.policy.Max-len(recent)), nil
}

// TimeUntilReset reports how long until the oldest attempt in the window
// leaves it; zero when no attempt is recorded.
func (w *Window) TimeUntilReset(ctx context.Context, key string) (time.Duration, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now().UnixMilli()
	recent, err := w.recent(ctx, key, now)
	if err != nil || len(recent) == 0 {
		return 0, err
	}
	oldest := recent[0]
	for _, ts := range recent[1:] {
		oldest = min(oldest, ts)
	}
	left := oldest + w.policy.Window.Milliseconds() - now
	return time.Duration(max(0, left)) * time.Millisecond, nil
}

// Reset clears every recorded attempt for key.
func (w *Window) Reset(ctx context.Context, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.store.Remove(ctx, KeyPrefix+key)
}

// ClearAll removes the attempt logs of every key in the store, including
// keys written by other limiters.
func (w *Window) ClearAll(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	keys, err := w.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return err
	}
	var errList []error
	for _, k := range keys {
		errList = append(errList, w.store.Remove(ctx, k))
	}
	return errors.Join(errList...)
}

func (w *Window) recent(ctx context.Context, key string, now int64) ([]int64, error) {
	var ts []int64
	if _, err := storage.GetJSON(ctx, w.store, KeyPrefix+key, &ts); err != nil {
		if errors.Is(err, storage.ErrCorrupt) {
			// a corrupt log counts as empty
			w.log.Warn("discarding corrupt attempt log", zap.String("key", key), zap.Error(err))
			return nil, nil
		}
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	return prune(ts, now, w.policy.Window.Milliseconds()), nil
}

// prune keeps timestamps with now - ts < window, preserving order.
func prune(ts []int64, now, window int64) []int64 {
	out := ts[:0]
	for _, t := range ts {
		if now-t < window {
			out = append(out, t)
		}
	}
	return out
}
