package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oms-platform/inventory-service/pkg/errors"
)

// APIErrorResponse is the JSON error body promised by the API contract.
type APIErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`

	// Request envelope, filled from the gin context.
	RequestID string `json:"requestId,omitempty"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

// errorBody builds the response body for an AppError on this request.
func errorBody(c *gin.Context, appErr *errors.AppError) APIErrorResponse {
	requestID, _ := c.Get(ContextKeyRequestID)
	reqID, _ := requestID.(string)

	return APIErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		RequestID: reqID,
		Path:      c.Request.URL.Path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func logError(logger *slog.Logger, c *gin.Context, appErr *errors.AppError, requestID string) {
	level := slog.LevelError
	if appErr.HTTPStatus < http.StatusInternalServerError {
		level = slog.LevelWarn
	}

	attrs := []any{
		"status", appErr.HTTPStatus,
		"code", appErr.Code,
		"message", appErr.Message,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"requestId", requestID,
		"clientIP", c.ClientIP(),
	}
	if appErr.Err != nil {
		attrs = append(attrs, "error", appErr.Err.Error())
	}
	if appErr.Details != nil {
		attrs = append(attrs, "details", appErr.Details)
	}

	logger.Log(c.Request.Context(), level, "API error", attrs...)
}

// ErrorHandler renders any error attached to the gin context as a contract
// error response. Handlers that respond through ErrorResponder never reach
// it; it is the net under c.Error usage.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := errors.FromError(c.Errors.Last().Err)
		body := errorBody(c, appErr)
		logError(logger, c, appErr, body.RequestID)
		c.JSON(appErr.HTTPStatus, body)
	}
}

// ErrorResponder sends contract error responses from handlers.
type ErrorResponder struct {
	ctx    *gin.Context
	logger *slog.Logger
}

// NewErrorResponder creates an ErrorResponder for one request.
func NewErrorResponder(ctx *gin.Context, logger *slog.Logger) *ErrorResponder {
	return &ErrorResponder{ctx: ctx, logger: logger}
}

// RespondWithError coerces err into an AppError and sends it.
func (r *ErrorResponder) RespondWithError(err error) {
	r.RespondWithAppError(errors.FromError(err))
}

// RespondWithAppError logs the error and sends its response body.
func (r *ErrorResponder) RespondWithAppError(appErr *errors.AppError) {
	body := errorBody(r.ctx, appErr)
	logError(r.logger, r.ctx, appErr, body.RequestID)
	r.ctx.JSON(appErr.HTTPStatus, body)
}

// RespondBadRequest sends a 400 response.
func (r *ErrorResponder) RespondBadRequest(message string) {
	r.RespondWithAppError(errors.ErrBadRequest(message))
}

// RespondInternalError sends a 500 response wrapping err.
func (r *ErrorResponder) RespondInternalError(err error) {
	r.RespondWithAppError(errors.ErrInternal("").Wrap(err))
}

// AbortWithAppError stops the handler chain and sends the error response,
// used by middleware that must reject a request outright.
func AbortWithAppError(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, errorBody(c, appErr))
}
