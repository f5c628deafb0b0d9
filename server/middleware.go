package server

import (
	"time"

	"github.com/effective-security/toolrouter/orchestrator"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/xlog"
	"github.com/gin-gonic/gin"
)

// RequestIDHeader is the header with the request ID
const RequestIDHeader = "X-Request-ID"

// requestContext assigns the request ID and logs the completed request
func requestContext(class registry.Class) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = orchestrator.NewRequestID()
		}
		reqCtx := orchestrator.NewRequestContext(requestID, class)
		c.Request = c.Request.WithContext(orchestrator.WithRequestContext(c.Request.Context(), reqCtx))
		c.Header(RequestIDHeader, requestID)

		c.Next()

		logger.ContextKV(c.Request.Context(), xlog.INFO,
			"status", "request_completed",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"body_size", c.Writer.Size(),
			"client_ip", c.ClientIP(),
			"latency", time.Since(start).String(),
		)
	}
}
