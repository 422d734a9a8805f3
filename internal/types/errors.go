package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Components return these instead of ad-hoc strings so
// the bot layer can decide what is fatal to a cycle and what degrades.
const (
	// Validation (400)
	ErrCodeValidationEmptyBody    ErrorCode = "validation_empty_body"
	ErrCodeValidationBadLocation  ErrorCode = "validation_invalid_location_name"
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"

	// Auth (401)
	ErrCodeAuthCredentialMissing ErrorCode = "auth_credential_missing"
	ErrCodeAuthRefreshFailed     ErrorCode = "auth_refresh_failed"
	ErrCodeAuthNoRefreshToken    ErrorCode = "auth_no_refresh_token"

	// Not Found (404)
	ErrCodeNotFoundCalendar     ErrorCode = "not_found_calendar"
	ErrCodeNotFoundMunicipality ErrorCode = "not_found_municipality"
	ErrCodeNotFoundState        ErrorCode = "not_found_state"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalState       ErrorCode = "internal_state_error"
	ErrCodeInternalSeal        ErrorCode = "internal_seal_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamCalendar    ErrorCode = "upstream_calendar_unavailable"
	ErrCodeUpstreamForecast    ErrorCode = "upstream_forecast_unavailable"
	ErrCodeUpstreamMessaging   ErrorCode = "upstream_messaging_unavailable"
	ErrCodeUpstreamOAuth       ErrorCode = "upstream_oauth_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type. All domain errors are
// expressed as AppError to enable consistent logging, HTTP status mapping,
// and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
