package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"invoice-reconciliation-service/pkg/errors"
)

// Response is the envelope every endpoint returns
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    Meta        `json:"meta"`
}

// ErrorInfo describes a failed request
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Meta carries request metadata
type Meta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newMeta(c *gin.Context) Meta {
	return Meta{RequestID: c.GetString(requestIDKey), Timestamp: time.Now().UTC()}
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    newMeta(c),
	})
}

func abortWithError(c *gin.Context, status int, code, message, suggestion string) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message, Suggestion: suggestion},
		Meta:    newMeta(c),
	})
}

// respondError maps err onto its HTTP status. Errors outside the
// ReconcilerError taxonomy are reported as internal failures without detail.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	rerr, ok := errors.AsReconcilerError(err)
	if !ok {
		rerr = errors.InternalError(errors.CodeUnexpectedError, "reconciliation", err)
	}
	abortWithError(c, rerr.HTTPStatus(), string(rerr.Code), rerr.Message, rerr.Suggestion)
}
