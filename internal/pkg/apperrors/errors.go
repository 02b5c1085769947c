package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrInvalidRequest  ErrorType = "INVALID_REQUEST"
	ErrAuthFailed      ErrorType = "AUTH_FAILED"
	ErrForbidden       ErrorType = "FORBIDDEN"
	ErrPaymentRequired ErrorType = "PAYMENT_REQUIRED"
	ErrNotFound        ErrorType = "NOT_FOUND"
	ErrDuplicateEvent  ErrorType = "DUPLICATE_EVENT"
	ErrConflict        ErrorType = "CONFLICT"
	ErrPayloadTooLarge ErrorType = "PAYLOAD_TOO_LARGE"
	ErrRateLimited     ErrorType = "RATE_LIMITED"
	ErrReadOnly        ErrorType = "READ_ONLY"
	ErrInternal        ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	// machine readable cause, e.g. "stale_timestamp" or "invalid_event_type"
	Reason            string `json:"reason,omitempty"`
	Plan              string `json:"plan,omitempty"`
	UpgradeURL        string `json:"upgradeUrl,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
	HTTPStatus        int    `json:"-"`
	Cause             error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewInternal(msg string, cause error) *AppError {
	return New(ErrInternal, msg, cause)
}

// WithReason attaches a machine readable reason.
func (e *AppError) WithReason(reason string) *AppError {
	e.Reason = reason
	return e
}

// WithPlan attaches the tenant plan and an upgrade hint to governance errors.
func (e *AppError) WithPlan(plan, upgradeURL string) *AppError {
	e.Plan = plan
	e.UpgradeURL = upgradeURL
	return e
}

func (e *AppError) WithRetryAfter(seconds int) *AppError {
	e.RetryAfterSeconds = seconds
	return e
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// Is reports whether err is an AppError of the given type.
func Is(err error, errType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errType
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrPaymentRequired:
		return http.StatusPaymentRequired
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrDuplicateEvent, ErrConflict:
		return http.StatusConflict
	case ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrReadOnly:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrAuthFailed:
		return "Check the API key, signature and timestamp headers."
	case ErrPaymentRequired:
		return "Upgrade the plan or renew the subscription."
	case ErrDuplicateEvent:
		return "The event was already accepted; no retry is needed."
	case ErrPayloadTooLarge:
		return "Keep the serialized payload at or below 10240 bytes."
	case ErrRateLimited:
		return "Retry after the indicated number of seconds."
	case ErrReadOnly:
		return "Wait for maintenance to finish."
	default:
		return ""
	}
}
