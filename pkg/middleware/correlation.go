package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oms-platform/inventory-service/pkg/errors"
	"github.com/oms-platform/inventory-service/pkg/logging"
)

// Keys under which identifiers are stored in the gin context.
const (
	ContextKeyRequestID     = "requestId"
	ContextKeyCorrelationID = "correlationId"
	ContextKeyTraceID       = "traceId"
)

// Headers carrying identifiers across service boundaries.
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderChangedBy     = "X-Changed-By"
)

// propagateID takes the identifier from the request header, minting one when
// absent, and makes it visible in three places: the gin context, the response
// header, and the request's Go context for log extraction.
func propagateID(c *gin.Context, header, key string, install func(context.Context, string) context.Context) {
	id := c.GetHeader(header)
	if id == "" {
		id = uuid.New().String()
	}

	c.Set(key, id)
	c.Header(header, id)
	c.Request = c.Request.WithContext(install(c.Request.Context(), id))
}

// RequestID assigns each request a unique id, honoring one supplied by the
// caller.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		propagateID(c, HeaderRequestID, ContextKeyRequestID, logging.ContextWithRequestID)
		c.Next()
	}
}

// CorrelationID carries the cross-service correlation id through this hop.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		propagateID(c, HeaderCorrelationID, ContextKeyCorrelationID, logging.ContextWithCorrelationID)
		c.Next()
	}
}

// Probe and scrape endpoints are too chatty to log per request.
var quietPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// Logger emits one structured access log line per request, leveled by the
// response status.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if quietPaths[path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latencyMs", latency.Milliseconds(),
			"latency", latency.String(),
			"clientIP", c.ClientIP(),
			"userAgent", c.Request.UserAgent(),
		}
		for _, key := range []string{ContextKeyRequestID, ContextKeyCorrelationID, ContextKeyTraceID} {
			if v, ok := c.Get(key); ok {
				attrs = append(attrs, key, v)
			}
		}
		if query := c.Request.URL.RawQuery; query != "" {
			attrs = append(attrs, "query", query)
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "HTTP request", attrs...)
	}
}

// Recovery turns panics into logged 500 responses.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Get(ContextKeyRequestID)
				correlationID, _ := c.Get(ContextKeyCorrelationID)

				logger.Error("Panic recovered",
					"error", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"requestId", requestID,
					"correlationId", correlationID,
				)

				AbortWithAppError(c, errors.ErrInternal("An unexpected error occurred"))
			}
		}()
		c.Next()
	}
}

// GetChangedBy extracts the acting user from the X-Changed-By header,
// falling back to "system" when the header is absent.
func GetChangedBy(c *gin.Context) string {
	if actor := c.GetHeader(HeaderChangedBy); actor != "" {
		return actor
	}
	return "system"
}
