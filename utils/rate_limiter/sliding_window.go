package rate_limiter

import (
	"sync"
	"time"
)

// SlidingWindowLimiter admits at most maxRequests per client within any
// trailing window. Each client keeps the timestamps of its admitted requests.
type SlidingWindowLimiter struct {
	window      time.Duration
	maxRequests int

	mu      sync.RWMutex
	clients map[string]*clientWindow
}

type clientWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
	// evicted is set by Prune once the window has been removed from the map.
	evicted bool
}

func NewSlidingWindowLimiter(window time.Duration, maxRequests int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		window:      window,
		maxRequests: maxRequests,
		clients:     make(map[string]*clientWindow),
	}
}

// Window returns the configured window size.
func (l *SlidingWindowLimiter) Window() time.Duration {
	return l.window
}

// MaxRequests returns the number of requests admitted per window.
func (l *SlidingWindowLimiter) MaxRequests() int {
	return l.maxRequests
}

// Admit reports whether a request from clientID at now is allowed, recording
// it when it is. Rejected requests are not recorded.
func (l *SlidingWindowLimiter) Admit(clientID string, now time.Time) bool {
	for {
		w := l.windowFor(clientID)

		w.mu.Lock()
		if w.evicted {
			// Prune removed this window between lookup and lock.
			w.mu.Unlock()
			continue
		}

		w.timestamps = filterAfter(w.timestamps, now.Add(-l.window))
		if len(w.timestamps) >= l.maxRequests {
			w.mu.Unlock()
			return false
		}
		w.timestamps = append(w.timestamps, now)
		w.mu.Unlock()
		return true
	}
}

// RetryAfter returns how long clientID has to wait before the oldest recorded
// request leaves the window. Zero means a request would be admitted now.
func (l *SlidingWindowLimiter) RetryAfter(clientID string, now time.Time) time.Duration {
	l.mu.RLock()
	w, ok := l.clients[clientID]
	l.mu.RUnlock()
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	live := filterAfter(append([]time.Time(nil), w.timestamps...), now.Add(-l.window))
	if len(live) < l.maxRequests {
		return 0
	}

	oldest := live[0]
	for _, ts := range live[1:] {
		if ts.Before(oldest) {
			oldest = ts
		}
	}
	wait := oldest.Add(l.window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Prune trims expired timestamps and forgets clients whose window is empty.
// It returns the number of clients removed.
func (l *SlidingWindowLimiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := now.Add(-l.window)
	removed := 0
	for id, w := range l.clients {
		w.mu.Lock()
		w.timestamps = filterAfter(w.timestamps, windowStart)
		if len(w.timestamps) == 0 {
			w.evicted = true
			delete(l.clients, id)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// TrackedClients returns the number of clients currently holding a window.
func (l *SlidingWindowLimiter) TrackedClients() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.clients)
}

func (l *SlidingWindowLimiter) windowFor(clientID string) *clientWindow {
	l.mu.RLock()
	w, exists := l.clients[clientID]
	l.mu.RUnlock()

	if exists {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check pattern
	if w, exists := l.clients[clientID]; exists {
		return w
	}

	w = &clientWindow{}
	l.clients[clientID] = w
	return w
}

// filterAfter keeps the timestamps strictly after windowStart, preserving
// order. It filters by value so out-of-order entries are handled too.
func filterAfter(timestamps []time.Time, windowStart time.Time) []time.Time {
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	return kept
}
