// Package errors provides the error taxonomy shared by stores and handlers.
// Every service-layer failure is an *AppError so handlers can answer with a
// stable code and never leak driver details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an *AppError with the same code, so a
// wrapped or re-messaged sentinel still matches errors.Is(err, ErrX).
// ErrNotFound matches every 404 error (book, entry, category, user).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t == ErrNotFound {
		return e.StatusCode == http.StatusNotFound
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Backend wraps a database or transport failure. The original error is kept
// unmodified as Internal.
func Backend(err error) *AppError {
	return Wrap(ErrBackendFailure, err)
}

// Authentication errors.
var (
	ErrAuthRequired       = &AppError{Code: "AUTH_REQUIRED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrInvalidToken       = &AppError{Code: "INVALID_TOKEN", Message: "Invalid or expired token", StatusCode: http.StatusUnauthorized}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusLocked}
)

// General errors.
var (
	ErrValidation     = &AppError{Code: "VALIDATION_ERROR", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrConflict       = &AppError{Code: "CONFLICT", Message: "Resource changed since it was read", StatusCode: http.StatusConflict}
	ErrBackendFailure = &AppError{Code: "BACKEND_FAILURE", Message: "A backend error occurred", StatusCode: http.StatusInternalServerError}
	ErrPayloadTooBig  = &AppError{Code: "PAYLOAD_TOO_LARGE", Message: "Upload is too large", StatusCode: http.StatusRequestEntityTooLarge}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "This email is already registered", StatusCode: http.StatusConflict}
)

// Budget book errors.
var (
	ErrBookNotFound      = &AppError{Code: "BOOK_NOT_FOUND", Message: "Budget book not found", StatusCode: http.StatusNotFound}
	ErrCategoryNotFound  = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrDuplicateCategory = &AppError{Code: "DUPLICATE_CATEGORY", Message: "Category already exists", StatusCode: http.StatusConflict}
	ErrTotalsReadOnly    = &AppError{Code: "VALIDATION_ERROR", Message: "Totals are maintained by entries and cannot be set directly", StatusCode: http.StatusBadRequest}
)

// Entry errors.
var (
	ErrEntryNotFound    = &AppError{Code: "ENTRY_NOT_FOUND", Message: "Entry not found", StatusCode: http.StatusNotFound}
	ErrInvalidEntryType = &AppError{Code: "VALIDATION_ERROR", Message: "Entry type must be income or expense", StatusCode: http.StatusBadRequest}
	ErrInvalidAmount    = &AppError{Code: "VALIDATION_ERROR", Message: "Amount must be greater than zero", StatusCode: http.StatusBadRequest}
)
