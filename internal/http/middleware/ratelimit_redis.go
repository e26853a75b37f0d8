package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter shared by every instance through
// Redis INCR/EXPIRE. A nil client or a Redis error lets requests through.
type RedisLimiter struct {
	rdb *redis.Client
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

// Limit allows max requests per window for each caller of scope. Callers are
// identified by user id when JWT ran first, otherwise by client IP.
// key format: rl:<scope>:<window_seconds>:<identifier>
func (l *RedisLimiter) Limit(scope string, max int, window time.Duration) gin.HandlerFunc {
	windowSecs := strconv.FormatInt(int64(window.Seconds()), 10)
	return func(c *gin.Context) {
		if l == nil || l.rdb == nil || max <= 0 {
			c.Next()
			return
		}

		ident := UserID(c)
		if ident == "" {
			ident = "ip:" + c.ClientIP()
		}
		key := "rl:" + scope + ":" + windowSecs + ":" + ident

		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		val, err := l.rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request", "scope", scope, "error", err)
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if val == 1 {
			l.rdb.Expire(ctx, key, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(max))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining(int64(max), val), 10))

		if val > int64(max) {
			RLBlocked.WithLabelValues(scope).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues(scope).Inc()
		c.Next()
	}
}

func remaining(max, used int64) int64 {
	if used >= max {
		return 0
	}
	return max - used
}
