package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/pkg/logger"
)

const (
	HeaderXRequestID = "X-Request-ID"
	ContextRequestID = "request_id"
	ContextLogger    = "logger"
)

// RequestID tags the request with an id, taken from X-Request-ID when the client
// sent one, and stores a logger carrying that id in both the gin and request contexts.
func RequestID(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if rid == "" {
			rid = uuid.New().String()
		}

		c.Set(ContextRequestID, rid)
		c.Header(HeaderXRequestID, rid)

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey{}, rid)
		reqLog := log.WithContext(ctx)
		c.Set(ContextLogger, reqLog)
		c.Request = c.Request.WithContext(reqLog.ZL.WithContext(ctx))
		c.Next()
	}
}

// RequestLogger returns the request scoped logger, or fallback when RequestID did not run.
func RequestLogger(c *gin.Context, fallback *logger.Logger) *logger.Logger {
	if l, ok := c.Get(ContextLogger); ok {
		if reqLog, ok := l.(*logger.Logger); ok {
			return reqLog
		}
	}
	return fallback
}
