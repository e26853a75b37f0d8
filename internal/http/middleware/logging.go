package middleware

import (
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request; server errors at error level.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start).String(),
			"ip", c.ClientIP(),
		}
		if uid := UserID(c); uid != "" {
			kv = append(kv, "user_id", uid)
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			logger.Error("request", kv...)
		case status >= 400:
			logger.Info("request", kv...)
		default:
			logger.Debug("request", kv...)
		}
	}
}
