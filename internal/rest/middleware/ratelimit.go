package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/specmint/specmint/internal/config"
	"golang.org/x/time/rate"
)

// RateLimiter bounds requests per client IP. Used on the public webhook
// endpoint, where signature scanners and replay floods are expected
// noise that should not reach the verification path.
func RateLimiter(cfg *config.Configuration) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)

	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if l, ok := limiters[ip]; ok {
			return l
		}
		l := rate.NewLimiter(rate.Limit(cfg.Webhook.RateLimitRPS), cfg.Webhook.RateLimitBurst)
		limiters[ip] = l
		return l
	}

	return func(c *gin.Context) {
		if !limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
