// Package ratelimit paces ledger submissions so a rate-limited RPC endpoint
// is not flooded by back-to-back broadcasts.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a strict minimum interval between permits. A caller that
// falls behind schedule proceeds immediately; missed permits do not accumulate
// into a burst.
type Limiter struct {
	mu             sync.Mutex
	nextPermitTime time.Time
	interval       time.Duration
	rate           float64
}

// New creates a Limiter issuing at most ratePerSec permits per second.
// A rate of zero or less yields one permit per second.
func New(ratePerSec float64) *Limiter {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &Limiter{
		nextPermitTime: time.Now(),
		interval:       time.Duration(float64(time.Second) / ratePerSec),
		rate:           ratePerSec,
	}
}

// Wait blocks until the next permit or until ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	permitTime := l.nextPermitTime
	if permitTime.Before(now) {
		permitTime = now
	}
	l.nextPermitTime = permitTime.Add(l.interval)
	l.mu.Unlock()

	waitDuration := time.Until(permitTime)
	if waitDuration <= 0 {
		return nil
	}

	timer := time.NewTimer(waitDuration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Rate returns the configured permits per second.
func (l *Limiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rate
}

// Interval returns the minimum spacing between permits.
func (l *Limiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}
