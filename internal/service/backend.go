package service

import (
	"context"
	"time"
)

// Backend is the remote account round trip performed by login and register.
type Backend interface {
	RoundTrip(ctx context.Context) error
}

// SimulatedBackend waits Latency and then returns Fault.
type SimulatedBackend struct {
	Latency time.Duration
	Fault   error
}

func (b SimulatedBackend) RoundTrip(ctx context.Context) error {
	if b.Latency > 0 {
		t := time.NewTimer(b.Latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return b.Fault
}
