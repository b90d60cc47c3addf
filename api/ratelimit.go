package api

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WriteLimiter throttles mutating requests per user with a token bucket.
// Reads pass through untouched. Buckets idle for longer than idleTTL are
// dropped on the next sweep.
//
// Thread Safety: Safe for concurrent use.
type WriteLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	onLimit func()

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewWriteLimiter allows perSecond writes per user with the given burst.
// onLimit, if not nil, is called for every rejected request.
func NewWriteLimiter(perSecond float64, burst int, onLimit func()) *WriteLimiter {
	if burst <= 0 {
		burst = max(1, int(perSecond))
	}
	return &WriteLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		onLimit: onLimit,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow reports whether userID may write now.
func (l *WriteLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idleTTL {
		for id, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.idleTTL {
				delete(l.buckets, id)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[userID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Middleware answers 429 when the calling user is over budget. It must run
// after RequireUser.
func (l *WriteLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if !l.Allow(UserFrom(r.Context())) {
			if l.onLimit != nil {
				l.onLimit()
			}
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
