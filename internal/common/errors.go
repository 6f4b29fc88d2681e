package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return nil
}

// Error kinds. Configuration errors are fatal and surfaced immediately;
// conversion and provider errors are recoverable at the document level.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrConversion    = errors.New("conversion error")
	ErrProvider      = errors.New("provider error")
	ErrInvalidInput  = errors.New("invalid input")
)

// NewAppError wraps a cause with a short code and message.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ConfigurationError builds a fatal configuration error.
func ConfigurationError(message string, cause error) error {
	return &AppError{Code: "CONFIG_ERROR", Message: message, Cause: wrapKind(ErrConfiguration, cause)}
}

// ConversionError builds a document-level rasterization error.
func ConversionError(message string, cause error) error {
	return &AppError{Code: "CONVERSION_ERROR", Message: message, Cause: wrapKind(ErrConversion, cause)}
}

// ProviderError builds a remote vision backend error.
func ProviderError(message string, cause error) error {
	return &AppError{Code: "PROVIDER_ERROR", Message: message, Cause: wrapKind(ErrProvider, cause)}
}

func wrapKind(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// IsKind reports whether err carries the given error kind.
func IsKind(err, kind error) bool {
	return errors.Is(err, kind)
}

// WrapError adds message context while preserving the error chain.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Truncate caps a diagnostic string for inline display. Truncation is
// rune-aware so multibyte diagnostics are not split mid-character.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
