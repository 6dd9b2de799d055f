package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodeRequestFailed        = "REQUEST_FAILED"
	ErrCodeDialogBusy           = "DIALOG_BUSY"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeDialogNotFound       = "DIALOG_NOT_FOUND"
	ErrCodeTicketNotFound       = "TICKET_NOT_FOUND"
)

// ErrDialogBusy is returned when a deposit is submitted while another one is in flight.
var ErrDialogBusy = &DomainError{
	Code:    ErrCodeDialogBusy,
	Message: "a deposit is already in progress for this dialog",
}

func NewValidationError(field, reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("%s %s", field, reason),
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

// NewRequestFailedError wraps a failed initiation call (network error,
// non-2xx response or malformed body).
func NewRequestFailedError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeRequestFailed,
		Message: "deposit request failed",
		Err:     err,
	}
}

func NewInvalidTransitionError(from, to DialogState) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewDialogNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDialogNotFound,
		Message: fmt.Sprintf("dialog %s not found", id),
	}
}

func NewTicketNotFoundError(transactionID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeTicketNotFound,
		Message: fmt.Sprintf("ticket %s not found", transactionID),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
