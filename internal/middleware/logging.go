package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ytflow/ytflow/internal/logging"
)

// RequestLogger logs request details through the structured logger and
// tags each request with an id for correlation.
func RequestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		log.WithRequestID(requestID).
			LogHTTPRequest(c.Request.Method, path, c.ClientIP(), c.Writer.Status(), time.Since(start))
	}
}
