package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Destination Configuration (CFG) ----

// ErrMissingIdentityField signals that a destination requiring an identity
// field (e.g. an email for contact sync) could not resolve one by mapping or
// heuristics.
func ErrMissingIdentityField(destination string) *AppError {
	return New("CFG_001", fmt.Sprintf("No identity field found in submission for %s", destination), http.StatusUnprocessableEntity)
}

func ErrInvalidCredentials(provider string) *AppError {
	return New("CFG_002", fmt.Sprintf("Invalid credentials for %s", provider), http.StatusBadRequest)
}

func ErrUnknownProvider(kind string) *AppError {
	return New("CFG_003", fmt.Sprintf("Unknown integration type: %s", kind), http.StatusBadRequest)
}

func ErrMissingSetting(name string) *AppError {
	return New("CFG_004", fmt.Sprintf("Required setting %q is not configured", name), http.StatusUnprocessableEntity)
}

// ---- Delivery Transport (DLV) ----

func ErrDeliveryFailed(err error) *AppError {
	return Wrap("DLV_001", "Delivery attempt failed", http.StatusBadGateway, err)
}

func ErrDestinationInactive() *AppError {
	return New("DLV_002", "Destination has been deactivated", http.StatusConflict)
}

// ---- Provider Responses (PRV) ----

// ErrProviderRejected preserves the provider's own message verbatim so that
// delivery history remains debuggable.
func ErrProviderRejected(provider string, message string) *AppError {
	return New("PRV_001", fmt.Sprintf("%s rejected the payload: %s", provider, message), http.StatusBadGateway)
}

// ---- REST Hook Subscriptions (HOOK) ----

func ErrInvalidEvent(event string, valid []string) *AppError {
	return New("HOOK_001", fmt.Sprintf("Invalid event %q, valid events: %v", event, valid), http.StatusBadRequest)
}

func ErrSubscriptionNotFound() *AppError {
	return New("HOOK_002", "Subscription not found", http.StatusNotFound)
}

func ErrWebhookNotFound() *AppError {
	return New("HOOK_003", "Webhook not found", http.StatusNotFound)
}

func ErrIntegrationNotFound() *AppError {
	return New("HOOK_004", "Integration not found", http.StatusNotFound)
}

func ErrMissingTargetURL() *AppError {
	return New("HOOK_005", "targetUrl and event are required", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrAPIKeyRequired() *AppError {
	return New("AUTH_001", "API key required", http.StatusUnauthorized)
}

func ErrInvalidAPIKey() *AppError {
	return New("AUTH_002", "Invalid API key", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_002", "Credential decryption failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a generic request validation error.
func Validation(message string) *AppError {
	return New("CFG_000", message, http.StatusBadRequest)
}
