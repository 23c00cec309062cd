package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	ContextKeyRequestID = "request_id"
	ContextKeyLogger    = "logger"
)

// RequestID injects an X-Request-ID header into the request and response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger stores a request-scoped logger in the context and logs each HTTP request
// with method, path, status, and latency.
func Logger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID, _ := c.Get(ContextKeyRequestID)
		entry := log.WithField("request_id", requestID)
		c.Set(ContextKeyLogger, entry)

		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}
		if c.Writer.Status() >= 500 {
			entry.WithFields(fields).Warn("middleware.Logger: request failed")
			return
		}
		entry.WithFields(fields).Info("middleware.Logger: request")
	}
}

// GetLogger returns the request-scoped logger, or the standard logger outside a request
// handled by Logger.
func GetLogger(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(ContextKeyLogger); ok {
		if l, ok := v.(logrus.FieldLogger); ok {
			return l
		}
	}
	return logrus.StandardLogger()
}

// Recovery recovers from panics and returns a 500 error.
func Recovery() gin.HandlerFunc {
	return gin.Recovery()
}
