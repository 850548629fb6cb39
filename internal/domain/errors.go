package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - match with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthenticated")
	ErrForbidden    = errors.New("forbidden")

	// ErrInvalidGrant marks a malformed grant request (self-grant, missing target).
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrUnavailable marks an infrastructure fault on a security-relevant lookup.
	// It is never a permission decision: callers retry, they do not log a denial.
	ErrUnavailable = errors.New("temporarily unavailable")

	// ErrIntegrityViolation marks an operation that would break a data invariant.
	ErrIntegrityViolation = errors.New("integrity violation")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (business, grant, ...)
	ResourceID   string // ID of the existing/conflicting resource
}

func (e *ConflictError) Error() string   { return e.Message }
func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// DeniedError is a well-formed negative authorization outcome.
// Reason is the engine's reason code and is surfaced to the client.
type DeniedError struct {
	Reason     string
	Operation  string
	ResourceID string
}

func (e *DeniedError) Error() string {
	if e.ResourceID == "" {
		return fmt.Sprintf("%s denied: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s on %s denied: %s", e.Operation, e.ResourceID, e.Reason)
}

func (e *DeniedError) StatusCode() int { return http.StatusForbidden }

// Is allows errors.Is() to match against ErrForbidden
func (e *DeniedError) Is(target error) bool {
	return target == ErrForbidden
}

// UnavailableError wraps the underlying infrastructure failure.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string   { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *UnavailableError) Unwrap() error   { return e.Err }
func (e *UnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// IntegrityError describes which invariant the rejected operation would have broken.
type IntegrityError struct {
	Message string
}

func (e *IntegrityError) Error() string   { return e.Message }
func (e *IntegrityError) StatusCode() int { return http.StatusConflict }

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityViolation
}
