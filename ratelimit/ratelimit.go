// Package ratelimit provides a small in-process sliding-window limiter used
// to throttle score submissions per client. State lives in memory, so limits
// apply per process; a restart clears them, which is acceptable for the short
// windows involved.
package ratelimit

import (
	"math"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Window      time.Duration
	MaxRequests int
}

// Limits tuned for submission endpoints: solo keys by IP alone, duel and
// challenge submissions also fold in the player key so two players behind one
// NAT don't starve each other.
var (
	SoloSubmit = Config{Window: 10 * time.Second, MaxRequests: 1}
	DuelSubmit = Config{Window: 10 * time.Second, MaxRequests: 3}
)

type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func New() *Limiter {
	return &Limiter{windows: make(map[string][]time.Time), now: time.Now}
}

// Key joins identifying parts into a single bucket key.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}

// Check records an attempt against the key and reports whether it is allowed.
// When denied, retryAfter is the whole seconds (rounded up, min 1) until the
// oldest counted attempt leaves the window.
func (l *Limiter) Check(key string, cfg Config) (allowed bool, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-cfg.Window)
	kept := l.windows[key][:0]
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= cfg.MaxRequests {
		l.windows[key] = kept
		wait := kept[0].Add(cfg.Window).Sub(now)
		retryAfter = int(math.Ceil(wait.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	l.windows[key] = append(kept, now)
	return true, 0
}

// Sweep drops buckets whose newest entry is older than maxAge. Called from
// the background janitor to bound memory.
func (l *Limiter) Sweep(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-maxAge)
	for key, times := range l.windows {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.windows, key)
		}
	}
}
