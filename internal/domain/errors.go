package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConversion ErrorType = "conversion"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBusy       ErrorType = "busy"

	ErrorTypePermissionDenied    ErrorType = "permission_denied"
	ErrorTypeDeviceUnavailable   ErrorType = "device_unavailable"
	ErrorTypeDeviceNotReady      ErrorType = "device_not_ready"
	ErrorTypeInsufficientInput   ErrorType = "insufficient_input"
	ErrorTypeDocumentLoad        ErrorType = "document_load"
	ErrorTypePageOutOfRange      ErrorType = "page_out_of_range"
	ErrorTypeNoActiveEditSession ErrorType = "no_active_edit_session"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// PageRangeError carries the page that was asked for and the real page count.
type PageRangeError struct {
	Requested int
	Total     int
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("page %d requested, document has %d page(s)", e.Requested, e.Total)
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConversionError(message string, err error) *DomainError {
	return NewError(ErrorTypeConversion, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

func BusyError(workflow WorkflowName) *DomainError {
	return NewError(ErrorTypeBusy, fmt.Sprintf("%s is already running", workflow), nil)
}

func PermissionDenied(message string, err error) *DomainError {
	return NewError(ErrorTypePermissionDenied, message, err)
}

func DeviceUnavailable(message string, err error) *DomainError {
	return NewError(ErrorTypeDeviceUnavailable, message, err)
}

func DeviceNotReady(message string, err error) *DomainError {
	return NewError(ErrorTypeDeviceNotReady, message, err)
}

func InsufficientInput(got, want int) *DomainError {
	return NewError(ErrorTypeInsufficientInput,
		fmt.Sprintf("select at least %d documents, got %d", want, got), nil)
}

func DocumentLoadError(name string, err error) *DomainError {
	msg := "failed to load document"
	if name != "" {
		msg = fmt.Sprintf("failed to load document %q", name)
	}
	return NewError(ErrorTypeDocumentLoad, msg, err)
}

func PageOutOfRange(requested, total int) *DomainError {
	return NewError(ErrorTypePageOutOfRange,
		fmt.Sprintf("page must be between 1 and %d", total),
		&PageRangeError{Requested: requested, Total: total})
}

func NoActiveEditSession() *DomainError {
	return NewError(ErrorTypeNoActiveEditSession, "no document loaded for editing", nil)
}

// TypeOf returns the ErrorType of the first DomainError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsType reports whether err carries a DomainError of type t.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}
