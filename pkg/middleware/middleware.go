// Package middleware carries the HTTP cross-cutting concerns: request
// identity, access logging, tracing, panic recovery, input hygiene, and the
// contract error format.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oms-platform/inventory-service/pkg/errors"
)

// Setup applies the standard middleware chain. Order matters: recovery wraps
// everything, identifiers are assigned before anything logs, and the error
// handler renders whatever the handlers attach.
func Setup(router *gin.Engine, logger *slog.Logger) {
	InitValidator()

	router.Use(Recovery(logger))
	router.Use(RequestID())
	router.Use(CorrelationID())
	router.Use(Logger(logger))
	router.Use(InputSanitizer())
	router.Use(CORS())
	router.Use(ContentType())
	router.Use(ErrorHandler(logger))
}

// CORS answers preflight requests and exposes the identifier headers.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Correlation-ID, X-Changed-By")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-Correlation-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// HealthCheck reports liveness.
func HealthCheck(serviceName string) gin.HandlerFunc {
	body := gin.H{"status": "healthy", "service": serviceName}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, body)
	}
}

// ReadinessCheck reports readiness based on checkFn, typically a database
// ping.
func ReadinessCheck(serviceName string, checkFn func() error) gin.HandlerFunc {
	ready := gin.H{"status": "ready", "service": serviceName}
	return func(c *gin.Context) {
		if err := checkFn(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"error":   err.Error(),
				"service": serviceName,
			})
			return
		}
		c.JSON(http.StatusOK, ready)
	}
}

func contractError(code, message string, status int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(status, errorBody(c, errors.NewAppError(code, message, status)))
	}
}

// NoRoute renders 404s in the contract error format.
func NoRoute() gin.HandlerFunc {
	return contractError("ROUTE_NOT_FOUND", "The requested resource was not found", http.StatusNotFound)
}

// NoMethod renders 405s in the contract error format.
func NoMethod() gin.HandlerFunc {
	return contractError("METHOD_NOT_ALLOWED", "The request method is not supported for this resource", http.StatusMethodNotAllowed)
}
