package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/florelle/auth-service/pkg/helpers"
)

type memoryEntry struct {
	count         int
	windowResetAt time.Time
	blockedUntil  time.Time
}

// stale reports whether the entry is logically absent: window elapsed and no
// active block.
func (e *memoryEntry) stale(now time.Time) bool {
	if !e.blockedUntil.IsZero() && now.Before(e.blockedUntil) {
		return false
	}
	return !now.Before(e.windowResetAt)
}

// MemoryLimiter is the process-local backend for single-instance deployments.
// The check-then-increment sequence runs under one lock so concurrent
// requests cannot both slip through the last slot of a window.
type MemoryLimiter struct {
	policy Policy
	clock  helpers.Clock

	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryLimiter(policy Policy, clock helpers.Clock) *MemoryLimiter {
	if clock == nil {
		clock = helpers.SystemClock{}
	}
	return &MemoryLimiter{
		policy:  policy,
		clock:   clock,
		entries: make(map[string]*memoryEntry),
	}
}

func (l *MemoryLimiter) Check(_ context.Context, key string) (Result, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if ok && e.stale(now) {
		ok = false
	}
	if !ok {
		e = &memoryEntry{count: 1, windowResetAt: now.Add(l.policy.Window)}
		l.entries[key] = e
		return Result{Allowed: true, Remaining: l.policy.MaxAttempts - 1, ResetAt: e.windowResetAt}, nil
	}

	// An active block wins over the window, even if the window would have reset.
	if !e.blockedUntil.IsZero() && now.Before(e.blockedUntil) {
		return Result{Allowed: false, Remaining: 0, ResetAt: e.blockedUntil}, nil
	}

	e.count++
	if e.count > l.policy.MaxAttempts {
		e.blockedUntil = now.Add(l.policy.Block)
		return Result{Allowed: false, Remaining: 0, ResetAt: e.blockedUntil}, nil
	}
	return Result{Allowed: true, Remaining: l.policy.MaxAttempts - e.count, ResetAt: e.windowResetAt}, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
	return nil
}

// Sweep removes stale entries. It snapshots the key set first and then locks
// per key, so request handling is never held up for longer than a single
// removal.
func (l *MemoryLimiter) Sweep() {
	l.mu.Lock()
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	l.mu.Unlock()

	for _, k := range keys {
		now := l.clock.Now()
		l.mu.Lock()
		if e, ok := l.entries[k]; ok && e.stale(now) {
			delete(l.entries, k)
		}
		l.mu.Unlock()
	}
}

// StartSweeper runs Sweep every interval until stop is closed.
func (l *MemoryLimiter) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				l.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// Len reports the number of live entries; used by sweep tests.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

var _ Limiter = (*MemoryLimiter)(nil)
