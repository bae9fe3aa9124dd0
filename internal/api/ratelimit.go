package api

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// SubmitLimiter throttles response submissions per user.
type SubmitLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*userLimiter
}

// NewSubmitLimiter allows perMinute submissions per user, with a burst of
// the same size. A non-positive perMinute disables limiting.
func NewSubmitLimiter(perMinute int) *SubmitLimiter {
	l := &SubmitLimiter{
		limit:    rate.Inf,
		burst:    1,
		now:      time.Now,
		limiters: make(map[string]*userLimiter),
	}
	if perMinute > 0 {
		l.limit = rate.Limit(float64(perMinute) / 60.0)
		l.burst = perMinute
	}
	return l
}

func (l *SubmitLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastAccess = now
	return ul.limiter.AllowN(now, 1)
}

// Cleanup drops limiters that have been idle for longer than the TTL.
func (l *SubmitLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-limiterIdleTTL)
	removed := 0
	for id, ul := range l.limiters {
		if ul.lastAccess.Before(cutoff) {
			delete(l.limiters, id)
			removed++
		}
	}
	return removed
}

func (l *SubmitLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Middleware must run after AuthMiddleware.
func (l *SubmitLimiter) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if !l.Allow(userID) {
				logger.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", "submit"),
				)
				w.Header().Set("Retry-After", fmt.Sprintf("%d", l.retryAfterSeconds()))
				writeError(w, http.StatusTooManyRequests, "too many submissions, slow down")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (l *SubmitLimiter) retryAfterSeconds() int {
	if l.limit == rate.Inf || l.limit <= 0 {
		return 1
	}
	return int(math.Ceil(1 / float64(l.limit)))
}
