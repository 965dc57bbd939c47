package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// RateLimitConfig bounds requests per client IP with a token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// IdleTTL drops buckets of clients not seen for this long.
	IdleTTL time.Duration
}

const (
	defaultIdleTTL   = 10 * time.Minute
	sweepEveryNCalls = 1024
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one bucket per client IP.
type RateLimiter struct {
	cfg    RateLimitConfig
	logger logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*clientBucket
	calls   int
}

func NewRateLimiter(cfg RateLimitConfig, logger logging.Logger) *RateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RateLimiter{cfg: cfg, logger: logger, now: time.Now, buckets: make(map[string]*clientBucket)}
}

// Clients returns the number of tracked client buckets.
func (l *RateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *RateLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.calls++
	if l.calls%sweepEveryNCalls == 0 {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.cfg.IdleTTL {
				delete(l.buckets, k)
			}
		}
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Handler rejects requests over the limit with 429 and a Retry-After header.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.cfg.RequestsPerSecond <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		now := l.now()
		lim := l.bucket(ip)
		r := lim.ReserveN(now, 1)
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.cfg.Burst))
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			c.Header("X-RateLimit-Remaining", "0")
			retry := int(math.Ceil(delay.Seconds()))
			l.logger.Warn("rate limit exceeded",
				logging.String("client_ip", ip),
				logging.String("path", c.FullPath()),
				logging.Int("retry_after_seconds", retry))
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, authErrorBody{
				Code:    errors.ErrCodeTooManyRequests.String(),
				Message: errors.DefaultMessage(errors.ErrCodeTooManyRequests),
			})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(math.Max(0, lim.TokensAt(now)))))
		c.Next()
	}
}
