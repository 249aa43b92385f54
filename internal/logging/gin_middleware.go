package logging

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GinLogger returns a gin.HandlerFunc middleware that logs requests using our logger.
// Successful lookups are debug level; 4xx are warnings and 5xx errors.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		msg := fmt.Sprintf("%s %s - %d (%v) - %s",
			c.Request.Method,
			path,
			statusCode,
			latency,
			c.ClientIP(),
		)

		switch {
		case statusCode >= 500:
			Error("%s", msg)
		case statusCode >= 400:
			Warn("%s", msg)
		default:
			Debug("%s", msg)
		}
	}
}

// GinRecovery returns a gin.HandlerFunc middleware that recovers from panics
func GinRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				Crit("PANIC recovered in %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}
