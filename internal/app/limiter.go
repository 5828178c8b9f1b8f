package app

import (
	"sync"
	"time"
)

// loginLimiter bounds authentication attempts per client key with a sliding
// window, so a burst of logins draws real 429 responses instead of a fixed
// window's boundary leaks. Every attempt counts, successful or not.
type loginLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	buckets map[string][]time.Time
}

func newLoginLimiter(limit int, window time.Duration) *loginLimiter {
	return &loginLimiter{
		limit:   limit,
		window:  window,
		clock:   time.Now,
		buckets: make(map[string][]time.Time),
	}
}

// allow consumes one attempt. When denied it reports how long until the
// oldest attempt slides out of the window, floored at one second so the
// Retry-After header is never zero.
func (l *loginLimiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	cutoff := now.Add(-l.window)

	ts := l.buckets[key]
	i := 0
	for ; i < len(ts); i++ {
		if ts[i].After(cutoff) {
			break
		}
	}
	ts = ts[i:]

	if len(ts) >= l.limit {
		l.buckets[key] = ts
		retry := ts[0].Add(l.window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return false, retry
	}

	l.buckets[key] = append(ts, now)
	return true, 0
}

// reset clears a key, for tests.
func (l *loginLimiter) reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}
