package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrDatabase = errors.New("database error")

	ErrCache = errors.New("cache error")

	ErrInternalServer = errors.New("internal server error")

	// ErrRateUnavailable means the benchmark rate could not be obtained or parsed.
	ErrRateUnavailable = errors.New("benchmark rate unavailable")

	ErrUnauthorized = errors.New("unauthorized")
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

// ValidationErrors carries every violated rule of a single input record.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapDatabaseError(cause error, message string) error {
	return &AppError{
		Code:    "DB_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrDatabase, cause),
	}
}

func WrapRateError(cause error, message string) error {
	return &AppError{
		Code:    "RATE_UNAVAILABLE",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrRateUnavailable, cause),
	}
}
