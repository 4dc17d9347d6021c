package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ServiceError represents a standardized error response
type ServiceError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrUpstream       = "UPSTREAM_ERROR"
	ErrProfileStore   = "PROFILE_STORE_ERROR"
	ErrChat           = "CHAT_ERROR"
	ErrRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrValidation     = "VALIDATION_ERROR"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
	ErrNotFoundCode   = "NOT_FOUND"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidTier      = errors.New("invalid status tier")
	ErrUnknownDashboard = errors.New("unknown dashboard")
)

// HTTPStatus maps the error code onto the status the API answers with.
func (e *ServiceError) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidInput, ErrValidation:
		return http.StatusBadRequest
	case ErrNotFoundCode:
		return http.StatusNotFound
	case ErrRateLimit:
		return http.StatusTooManyRequests
	case ErrUpstream, ErrChat:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewServiceError creates a new ServiceError with timestamp
func NewServiceError(code, message, details, requestID string) *ServiceError {
	return &ServiceError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
