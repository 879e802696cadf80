package hostsync

import (
	"errors"
	"fmt"
)

// SyncError represents a domain-specific error
type SyncError struct {
	Code    string
	Message string
	Cause   error
}

func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeOutOfOrder    = "OUT_OF_ORDER"
	ErrCodeConfig        = "CONFIG_ERROR"
	ErrCodeClosed        = "CLOSED"
	ErrCodeUnknownStream = "UNKNOWN_STREAM"
)

// NewSyncError creates a new sync error
func NewSyncError(code, message string, cause error) *SyncError {
	return &SyncError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsCode reports whether err is a SyncError carrying the given code.
func IsCode(err error, code string) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Code == code
}
