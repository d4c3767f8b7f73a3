package merchantd

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter throttles state-mutating admin actions per authenticated
// subject. Unauthenticated requests fall back to the remote address.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*subjectLimiter
	limit    rate.Limit
	burst    int

	stop     chan struct{}
	stopOnce sync.Once
}

type subjectLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		limiters: make(map[string]*subjectLimiter),
		limit:    rate.Limit(cfg.RequestsPerMinute / 60.0),
		burst:    cfg.Burst,
		stop:     make(chan struct{}),
	}
	go rl.reap()
	return rl
}

// Close stops the background reaper. Safe to call more than once.
func (rl *rateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &subjectLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (rl *rateLimiter) reap() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			rl.mu.Lock()
			for key, entry := range rl.limiters {
				if entry.lastSeen.Before(cutoff) {
					delete(rl.limiters, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware rejects callers that exceed the configured rate with 429.
func (rl *rateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := SubjectFromContext(r.Context())
		if key == "" {
			key = r.RemoteAddr
		}
		if !rl.allow(key) {
			writeFailure(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
