// Package http carries shared gin middleware.
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/djorigin/rpasops/internal/util"
)

// RequestLogMiddleware logs each request with latency and status. Query
// strings are included verbatim; none of the admin endpoints carry
// credentials in queries.
func RequestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    truncatePath(c.Request.URL.Path),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Millisecond).String(),
		})
		if query := c.Request.URL.RawQuery; query != "" {
			entry = entry.WithField("query", query)
		}
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		if c.Writer.Status() >= 500 {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}

// truncatePath keeps log lines bounded for pathological URLs.
func truncatePath(path string) string {
	return util.Truncate(path, 200)
}
