package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/offline-triage-engine/internal/domain"
)

// AccessLog writes one structured entry per request. Request bodies are
// never logged.
func AccessLog(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"correlation_id": GetCorrelationID(c),
			"method":         c.Request.Method,
			"path":           c.FullPath(),
			"status":         c.Writer.Status(),
			"latency":        time.Since(start).String(),
			"client_ip":      c.ClientIP(),
			"response_size":  c.Writer.Size(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request completed")
		}
	}
}

// Recovery turns a handler panic into a 500 with a sanitized error body.
func Recovery(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logrus.Fields{
					"correlation_id": GetCorrelationID(c),
					"error_code":     domain.ErrCodeInternalComputation,
					"panic":          fmt.Sprint(r),
				}).Error("Recovered from handler panic")

				err := domain.NewTriageError(domain.ErrCodeInternalComputation, "internal server error", "").
					WithRequestID(GetCorrelationID(c))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err})
			}
		}()
		c.Next()
	}
}
