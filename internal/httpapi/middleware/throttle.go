package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/suPer8Hu/careerbot/internal/common"
	"golang.org/x/time/rate"
)

// Throttle is a token bucket per client IP. It guards against bursts and is
// independent of the per-session message quota.
type Throttle struct {
	limit   rate.Limit
	burst   int
	buckets cmap.ConcurrentMap[string, *rate.Limiter]
}

func NewThrottle(rps float64, burst int) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		limit:   rate.Limit(rps),
		burst:   burst,
		buckets: cmap.New[*rate.Limiter](),
	}
}

func (t *Throttle) bucket(ip string) *rate.Limiter {
	return t.buckets.Upsert(ip, nil, func(exist bool, cur, _ *rate.Limiter) *rate.Limiter {
		if exist {
			return cur
		}
		return rate.NewLimiter(t.limit, t.burst)
	})
}

func (t *Throttle) Allow(ip string) bool {
	return t.bucket(ip).Allow()
}

// Handler is a no-op when rps <= 0.
func (t *Throttle) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if t.limit <= 0 || t.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		c.Abort()
		common.Fail(c, http.StatusTooManyRequests, 42901, "too many requests")
	}
}
