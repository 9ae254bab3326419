package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/techvaseegrah/gymsaas-sub001/internal/metrics"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ClientIP charges requests to the caller's address, which for kiosks is the device.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

const sweepEvery = 1024

// Limiter keeps one token bucket per key.
type Limiter struct {
	limit rate.Limit
	burst int
	key   KeyFunc
	idle  time.Duration
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLimiter allows perMinute requests per key with bursts up to burst. A burst of
// zero uses perMinute. A non-positive perMinute disables limiting.
func NewLimiter(perMinute, burst int, key KeyFunc) *Limiter {
	if burst <= 0 {
		burst = perMinute
	}
	if key == nil {
		key = ClientIP
	}
	return &Limiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		key:     key,
		idle:    10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Middleware rejects over-limit requests with 429 and a Retry-After hint.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.limit <= 0 {
			c.Next()
			return
		}
		key := l.key(c)
		ok, wait := l.allow(key)
		if !ok {
			metrics.RateLimited.Inc()
			zap.L().Debug("rate limited", zap.String("key", key), zap.String("path", c.FullPath()))
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"msg": "too many requests"})
			return
		}
		c.Next()
	}
}

func (l *Limiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	l.calls++
	if l.calls%sweepEvery == 0 {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.idle {
				delete(l.buckets, k)
			}
		}
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now

	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, wait
	}
	return true, 0
}
