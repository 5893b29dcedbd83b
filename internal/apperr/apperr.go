// Package apperr defines the error taxonomy shared by every layer and the
// classifier that maps arbitrary failures into it. Classification enables the
// retry policy and the offline queue to decide what is worth retrying, and
// gives the UI a friendly message instead of a raw provider string.
package apperr

import (
	"fmt"
	"time"
)

// Code is the closed set of error categories.
type Code string

const (
	AuthError       Code = "AUTH_ERROR"
	StorageError    Code = "STORAGE_ERROR"
	NetworkError    Code = "NETWORK_ERROR"
	TimeoutError    Code = "TIMEOUT_ERROR"
	ValidationError Code = "VALIDATION_ERROR"
	PermissionError Code = "PERMISSION_ERROR"
	BusinessError   Code = "BUSINESS_ERROR"
	RetryableError  Code = "RETRYABLE_ERROR"
	OfflineError    Code = "OFFLINE_ERROR"
	UnknownError    Code = "UNKNOWN_ERROR"
)

// Op names the failing operation plus any entity identifiers worth logging.
type Op struct {
	Name      string
	UserID    string
	FamilyID  string
	DeviceID  string
	RuleID    string
	RequestID string
}

// Error is a classified failure. Message is safe to show to a user; Cause is
// the underlying error chain.
type Error struct {
	Code    Code
	Message string
	Op      Op
	Cause   error
	At      time.Time
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", e.Code, e.Op.Name, e.Cause)
	}
	return fmt.Sprintf("%s %s: %s", e.Code, e.Op.Name, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a classified error directly, bypassing the matching table.
// Used for conditions the code itself detects (offline, business rules).
func New(code Code, op Op, cause error) *Error {
	return &Error{Code: code, Message: friendlyMessage(code, ""), Op: op, Cause: cause, At: time.Now()}
}

// CodeOf extracts the classification code, or UnknownError for foreign errors.
func CodeOf(err error) Code {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return UnknownError
}

// ProviderError is the tagged variant produced at the provider-adapter
// boundary. Adapters wrap backend failures with their provider code (for
// example "auth/user-not-found" or "firestore/unavailable") so the classifier
// matches on a closed set instead of sniffing message strings.
type ProviderError struct {
	ProviderCode string
	Err          error
}

func (p *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", p.ProviderCode, p.Err)
}

func (p *ProviderError) Unwrap() error { return p.Err }
