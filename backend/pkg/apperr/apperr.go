package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind represents the category of error
type Kind string

const (
	// KindConnectionUnavailable means the graph database could not be reached
	KindConnectionUnavailable Kind = "connection_unavailable"
	// KindTimeout means an operation exceeded its deadline
	KindTimeout Kind = "timeout"
	// KindNotFound means a referenced entity does not exist
	KindNotFound Kind = "not_found"
	// KindForeignKeyMissing means a referenced parent entity was absent at write time
	KindForeignKeyMissing Kind = "foreign_key_missing"
	// KindDuplicateConflict means a uniqueness rule was violated on create
	KindDuplicateConflict Kind = "duplicate_conflict"
	// KindInvalidTransition means an unrecognized or disallowed state change or input value
	KindInvalidTransition Kind = "invalid_transition"
	// KindUnauthorized means a role or ownership check failed
	KindUnauthorized Kind = "unauthorized"
	// KindMalformedRecord means a graph record violated the decode contract
	KindMalformedRecord Kind = "malformed_record"
)

// Error is the error type returned by every repository failure path
type Error struct {
	Kind      Kind
	Message   string
	Entity    string // entity label involved, when known
	ID        string // entity id involved, when known
	Timestamp time.Time
	Err       error // wrapped cause
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Entity != "" && e.ID != "" {
		msg = fmt.Sprintf("%s (%s %s)", msg, e.Entity, e.ID)
	} else if e.Entity != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Entity)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// ConnectionUnavailable is returned when the graph database cannot be reached
func ConnectionUnavailable(uri string, err error) *Error {
	return newError(KindConnectionUnavailable, fmt.Sprintf("graph database unavailable at %s", uri), err)
}

// Timeout is returned when an operation exceeds its deadline
func Timeout(operation string, err error) *Error {
	return newError(KindTimeout, fmt.Sprintf("operation timed out: %s", operation), err)
}

// NotFound is returned when a referenced entity is absent
func NotFound(entity, id string) *Error {
	e := newError(KindNotFound, fmt.Sprintf("%s not found", entity), nil)
	e.Entity = entity
	e.ID = id
	return e
}

// ForeignKeyMissing is returned when a referenced parent is absent at write time
func ForeignKeyMissing(entity, id string) *Error {
	e := newError(KindForeignKeyMissing, fmt.Sprintf("referenced %s does not exist", entity), nil)
	e.Entity = entity
	e.ID = id
	return e
}

// DuplicateConflict is returned when a uniqueness rule is violated on create
func DuplicateConflict(entity, id, message string) *Error {
	e := newError(KindDuplicateConflict, message, nil)
	e.Entity = entity
	e.ID = id
	return e
}

// InvalidTransition is returned when a state change or input value is not allowed
func InvalidTransition(entity, message string) *Error {
	e := newError(KindInvalidTransition, message, nil)
	e.Entity = entity
	return e
}

// Unauthorized is returned when a role or ownership check fails
func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, message, nil)
}

// MalformedRecord is returned when a required key is absent from a graph record
func MalformedRecord(entity, key string) *Error {
	e := newError(KindMalformedRecord, fmt.Sprintf("record missing required key %q", key), nil)
	e.Entity = entity
	return e
}

// QueryFailed wraps a driver-level failure that has no more specific kind.
// Connection-class failures surface as ConnectionUnavailable at acquire time,
// so an in-flight query failure is reported as a timeout-class transient error
// only when the context deadline was the cause; otherwise the cause is kept.
func QueryFailed(operation string, err error) *Error {
	return newError(KindConnectionUnavailable, fmt.Sprintf("query failed: %s", operation), err)
}

// KindOf returns the Kind of err, or "" if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether the caller may reasonably retry the operation
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindConnectionUnavailable, KindTimeout:
		return true
	}
	return false
}

// HTTPStatus maps an error to the status code the route layer should respond with
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForeignKeyMissing:
		return http.StatusUnprocessableEntity
	case KindDuplicateConflict:
		return http.StatusConflict
	case KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusForbidden
	case KindMalformedRecord:
		return http.StatusInternalServerError
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindConnectionUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
