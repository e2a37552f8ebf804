package http

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "github.com/allisson/envsafe/internal/errors"
	"github.com/allisson/envsafe/internal/httputil"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = time.Hour
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet hands out one token bucket per key. Keys idle longer than limiterIdleTTL are
// swept so the set stays bounded by recent callers.
type limiterSet struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	rps     rate.Limit
	burst   int
}

func newLimiterSet(ctx context.Context, rps float64, burst int) *limiterSet {
	s := &limiterSet{
		entries: make(map[string]*limiterEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go s.sweep(ctx)
	return s
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.entries[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (s *limiterSet) sweep(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.Sub(entry.lastSeen) > limiterIdleTTL {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// limit lets the request through or answers 429 with a Retry-After of at least one second.
func (s *limiterSet) limit(c *gin.Context, key string, logger *slog.Logger) {
	limiter := s.get(key)
	if limiter.Allow() {
		c.Next()
		return
	}

	reservation := limiter.Reserve()
	wait := reservation.Delay()
	reservation.Cancel()
	retryAfter := max(1, int(math.Ceil(wait.Seconds())))

	logger.Debug("rate limited", slog.String("key", key), slog.Int("retry_after", retryAfter))

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, httputil.ErrorResponse{
		Error:   "rate_limit_exceeded",
		Message: "Too many requests, retry later",
	})
}

// RateLimitMiddleware applies a token bucket per caller. It reads the identity set by
// IdentityMiddleware, so it must be installed after it. The sweeper stops with ctx.
func RateLimitMiddleware(ctx context.Context, rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	set := newLimiterSet(ctx, rps, burst)

	return func(c *gin.Context) {
		userID, ok := GetUserID(c.Request.Context())
		if !ok {
			logger.Error("rate limit middleware installed before identity middleware")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}
		set.limit(c, userID.String(), logger)
	}
}

// AdminRateLimitMiddleware applies a token bucket per client IP ahead of admin token
// verification.
func AdminRateLimitMiddleware(ctx context.Context, rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	set := newLimiterSet(ctx, rps, burst)

	return func(c *gin.Context) {
		set.limit(c, c.ClientIP(), logger)
	}
}
