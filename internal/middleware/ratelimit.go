package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/saurav7sc/mayalens/internal/application"
	"github.com/saurav7sc/mayalens/internal/observability"
)

// window holds one client's request instants, oldest first. A window
// removed by Sweep is marked dead so late holders of the pointer retry.
type window struct {
	mu     sync.Mutex
	stamps []time.Time
	dead   bool
}

// SlidingWindow limits each key to `limit` requests within a trailing `size` interval.
type SlidingWindow struct {
	mu      sync.RWMutex
	windows map[string]*window
	limit   int
	size    time.Duration
	clock   application.Clock
}

func NewSlidingWindow(limit int, size time.Duration, clock application.Clock) *SlidingWindow {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &SlidingWindow{
		windows: make(map[string]*window),
		limit:   limit,
		size:    size,
		clock:   clock,
	}
}

func (sw *SlidingWindow) getWindow(key string) *window {
	sw.mu.RLock()
	w, exists := sw.windows[key]
	sw.mu.RUnlock()

	if exists {
		return w
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	// Double-check after acquiring write lock
	if w, exists := sw.windows[key]; exists {
		return w
	}

	w = &window{}
	sw.windows[key] = w
	return w
}

// Allow records a request for key if it fits in the window. When it does not,
// the returned duration is the retry hint.
func (sw *SlidingWindow) Allow(key string) (bool, time.Duration) {
	for {
		w := sw.getWindow(key)
		now := sw.clock.Now()

		w.mu.Lock()
		if w.dead {
			w.mu.Unlock()
			continue
		}
		w.stamps = dropBefore(w.stamps, now.Add(-sw.size))
		if len(w.stamps) >= sw.limit {
			w.mu.Unlock()
			return false, sw.size
		}
		w.stamps = append(w.stamps, now)
		w.mu.Unlock()
		return true, 0
	}
}

// Len returns the number of tracked clients.
func (sw *SlidingWindow) Len() int {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return len(sw.windows)
}

// Sweep forgets clients with no request inside the window.
func (sw *SlidingWindow) Sweep() int {
	cutoff := sw.clock.Now().Add(-sw.size)

	sw.mu.Lock()
	defer sw.mu.Unlock()

	removed := 0
	for key, w := range sw.windows {
		w.mu.Lock()
		w.stamps = dropBefore(w.stamps, cutoff)
		idle := len(w.stamps) == 0
		if idle {
			w.dead = true
		}
		w.mu.Unlock()
		if idle {
			delete(sw.windows, key)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (sw *SlidingWindow) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.Sweep()
		}
	}
}

// dropBefore keeps the stamps strictly newer than cutoff.
func dropBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}

// ClientKey identifies the caller by the host part of RemoteAddr.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware rejects callers that exceed the limiter with 429 and a
// Retry-After header equal to the window in seconds.
func RateLimitMiddleware(limiter *SlidingWindow, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := limiter.Allow(ClientKey(r))
			if !ok {
				if metrics != nil {
					metrics.IncrementRateLimited()
				}
				observability.FromContext(r.Context()).Warn("rate limit exceeded")
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"detail": "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
