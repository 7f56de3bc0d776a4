package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/immob/internal/storage"
)

// Canonical keys used with the preset limiters.
const (
	KeyLogin   = "login"
	KeyMessage = "sendMessage"
	KeySearch  = "search"
	KeyAPI     = "api"
)

// Limits holds the policy of every preset limiter.
type Limits struct {
	Messages Policy
	Searches Policy
	API      Policy
	Login    Policy
}

// DefaultLimits returns messaging 10/60s, search 20/60s, API 5/60s, login 5/300s.
func DefaultLimits() Limits {
	return Limits{
		Messages: Policy{Max: 10, Window: time.Minute},
		Searches: Policy{Max: 20, Window: time.Minute},
		API:      Policy{Max: 5, Window: time.Minute},
		Login:    Policy{Max: 5, Window: 5 * time.Minute},
	}
}

// Validate checks every policy.
func (l Limits) Validate() error {
	return errors.Join(l.Messages.Validate(), l.Searches.Validate(), l.API.Validate(), l.Login.Validate())
}

func (l Limits) widest() time.Duration {
	return max(l.Messages.Window, l.Searches.Window, l.API.Window, l.Login.Window)
}

// Set is the group of preset limiters owned by the application root.
type Set struct {
	Messages *Window
	Searches *Window
	API      *Window
	Login    *Window
}

// NewSet builds the presets over one store and sweeps stale attempt logs.
// The sweep uses the widest configured window, so no limiter loses attempts
// that are still inside its own window.
func NewSet(ctx context.Context, store storage.Store, l Limits, opts ...Option) (*Set, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	s := &Set{
		Messages: NewWindow(store, l.Messages, opts...),
		Searches: NewWindow(store, l.Searches, opts...),
		API:      NewWindow(store, l.API, opts...),
		Login:    NewWindow(store, l.Login, opts...),
	}
	if err := Sweep(ctx, store, l.widest(), s.Login.now()); err != nil {
		return nil, err
	}
	return s, nil
}

// Sweep prunes every persisted attempt log to window, removing logs that
// end up empty and rewriting the ones that shrank.
func Sweep(ctx context.Context, store storage.Store, window time.Duration, now time.Time) error {
	keys, err := store.Keys(ctx, KeyPrefix)
	if err != nil {
		return err
	}
	nowMs := now.UnixMilli()
	for _, k := range keys {
		var ts []int64
		found, err := storage.GetJSON(ctx, store, k, &ts)
		if err != nil && !errors.Is(err, storage.ErrCorrupt) {
			return err
		}
		if !found {
			continue
		}
		if err != nil {
			ts = nil // corrupt logs are dropped
		}
		n := len(ts)
		ts = prune(ts, nowMs, window.Milliseconds())
		switch {
		case len(ts) == 0:
			err = store.Remove(ctx, k)
		case len(ts) != n:
			err = storage.SetJSON(ctx, store, k, ts)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
