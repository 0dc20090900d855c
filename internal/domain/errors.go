package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicate     = fmt.Errorf("duplicate")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrForbidden     = fmt.Errorf("forbidden: insufficient permissions")
	ErrProviderError = fmt.Errorf("provider error")
)

// Sentinel errors for routing and completion.
var (
	ErrNoMasterAgent      = fmt.Errorf("master agent not available")
	ErrCatalogUnavailable = fmt.Errorf("agent catalog unavailable")
	ErrQuotaExceeded      = fmt.Errorf("completion quota exceeded")
	ErrProviderNotFound   = fmt.Errorf("completion provider not found")
	ErrAuthInvalid        = fmt.Errorf("authentication failed")
	ErrConfigLoad         = fmt.Errorf("failed to load configuration")
	ErrDecryption         = fmt.Errorf("decryption failed")
	ErrAuditWrite         = fmt.Errorf("audit log write failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Orchestrator.Route")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for API clients and logs.
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeDuplicate          ErrorCode = "DUPLICATE"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeProviderError      ErrorCode = "PROVIDER_ERROR"
	CodeNoMasterAgent      ErrorCode = "NO_MASTER_AGENT"
	CodeCatalogUnavailable ErrorCode = "CATALOG_UNAVAILABLE"
	CodeQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	CodeProviderNotFound   ErrorCode = "PROVIDER_NOT_FOUND"
	CodeAuthInvalid        ErrorCode = "AUTH_INVALID"
	CodeConfigLoad         ErrorCode = "CONFIG_LOAD"
	CodeDecryption         ErrorCode = "DECRYPTION"
	CodeAuditWrite         ErrorCode = "AUDIT_WRITE"
)

// errorCodes is ordered so that more specific sentinels win when an error
// wraps several (e.g. ErrCatalogUnavailable joined with ErrNotFound).
var errorCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrNoMasterAgent, CodeNoMasterAgent},
	{ErrCatalogUnavailable, CodeCatalogUnavailable},
	{ErrQuotaExceeded, CodeQuotaExceeded},
	{ErrProviderNotFound, CodeProviderNotFound},
	{ErrAuthInvalid, CodeAuthInvalid},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrDecryption, CodeDecryption},
	{ErrAuditWrite, CodeAuditWrite},
	{ErrForbidden, CodeForbidden},
	{ErrNotFound, CodeNotFound},
	{ErrDuplicate, CodeDuplicate},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrProviderError, CodeProviderError},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
