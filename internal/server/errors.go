package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/spigell/resume-ranker/internal/service"
	"github.com/spigell/resume-ranker/internal/store"
)

// ErrorCode is the machine-readable error identifier of the API.
type ErrorCode string

const (
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeInvalidJSON      ErrorCode = "INVALID_JSON"
	CodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeUpstreamFailed   ErrorCode = "UPSTREAM_FAILED"
	CodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// APIError is the body of every non-2xx response.
type APIError struct {
	Code      ErrorCode     `json:"code"`
	Message   string        `json:"message"`
	Details   []ErrorDetail `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
}

func sendError(c *gin.Context, status int, code ErrorCode, message string, details ...ErrorDetail) {
	resp := &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	if id, ok := c.Get(requestIDKey); ok {
		resp.RequestID, _ = id.(string)
	}
	c.AbortWithStatusJSON(status, resp)
}

// sendServiceError maps pipeline errors onto HTTP statuses.
func sendServiceError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		details := make([]ErrorDetail, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, ErrorDetail{Field: fe.Field(), Message: "failed on the '" + fe.Tag() + "' rule"})
		}
		sendError(c, http.StatusBadRequest, CodeValidationFailed, "request validation failed", details...)
	case errors.Is(err, service.ErrInvalidInput):
		sendError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		sendError(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicate):
		sendError(c, http.StatusConflict, CodeAlreadyExists, err.Error())
	case errors.Is(err, service.ErrUpstream):
		sendError(c, http.StatusBadGateway, CodeUpstreamFailed, err.Error())
	default:
		sendError(c, http.StatusInternalServerError, CodeInternalError, err.Error())
	}
}
