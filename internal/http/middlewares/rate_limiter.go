package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/http/httputil"
)

// idleBucketTTL is how long a client's bucket survives without requests.
const idleBucketTTL = 10 * time.Minute

type bucket struct {
	tokens float64
	last   time.Time
}

// RateLimiter is a per-client-IP token bucket refilled at rate tokens per
// second up to burst.
type RateLimiter struct {
	mu      sync.Mutex
	rate    float64
	burst   float64
	buckets map[string]*bucket
	swept   time.Time
	now     func() time.Time
}

func NewRateLimiter(rate, burst int) *RateLimiter {
	return &RateLimiter{
		rate:    float64(rate),
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.swept) > idleBucketTTL {
		for k, b := range rl.buckets {
			if now.Sub(b.last) > idleBucketTTL {
				delete(rl.buckets, k)
			}
		}
		rl.swept = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.burst, last: now}
		rl.buckets[key] = b
	}

	b.tokens += now.Sub(b.last).Seconds() * rl.rate
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			httputil.HandleError(c, &cmn.HttpError{
				StatusCode: http.StatusTooManyRequests,
				Code:       "RATE_LIMITED",
				Message:    "rate limit exceeded",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
