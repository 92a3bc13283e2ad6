package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// visitor wraps a limiter with its last activity for eviction
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows maxRequests per window for each client IP. Idle
// visitors are evicted after three windows (at least a minute).
func RateLimiter(maxRequests int, window time.Duration) gin.HandlerFunc {
	store := make(map[string]*visitor)
	var mu sync.Mutex

	go func() {
		expiry := window * 3
		if expiry < time.Minute {
			expiry = time.Minute
		}
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			mu.Lock()
			for ip, v := range store {
				if time.Since(v.lastSeen) > expiry {
					delete(store, ip)
				}
			}
			mu.Unlock()
		}
	}()

	limit := rate.Every(window / time.Duration(max(maxRequests, 1)))

	return func(c *gin.Context) {
		if maxRequests <= 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		mu.Lock()
		v, ok := store[ip]
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(limit, maxRequests)}
			store[ip] = v
		}
		v.lastSeen = time.Now()
		allowed := v.limiter.Allow()
		mu.Unlock()

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too many requests",
				"code":    "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
