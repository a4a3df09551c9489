package daemon

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// requestLogger logs every request of the status server through logrus.
// Successful requests are logged at debug level so that scrapers polling
// /metrics or /healthz do not flood the log.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Handlers may rewrite the path.
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()
		latency := time.Since(start).Milliseconds()
		status := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"status":  status,
			"latency": latency,
			"method":  c.Request.Method,
			"path":    path,
			"client":  c.ClientIP(),
			"size":    max(c.Writer.Size(), 0),
		})

		if len(c.Errors) > 0 {
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
			return
		}

		msg := fmt.Sprintf("%s %s %d (%dms)", c.Request.Method, path, status, latency)
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error(msg)
		case status >= http.StatusBadRequest && status != http.StatusServiceUnavailable:
			entry.Warn(msg)
		default:
			entry.Debug(msg)
		}
	}
}
