package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the storage and transaction layer.
var (
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrLockTimeout is returned when the transactional lock could not
	// be acquired within the wait window. Callers may retry.
	ErrLockTimeout = errors.New("session lock wait timed out")

	// ErrSessionImmutable is returned when a mutation is attempted on a
	// fully signed session.
	ErrSessionImmutable = errors.New("session is fully signed and immutable")
)

// SchemaError indicates an unknown category, template or field: a caller
// or integration bug rather than bad user input.
type SchemaError struct {
	msg string
}

func (e *SchemaError) Error() string { return e.msg }

// Schemaf builds a SchemaError with fmt semantics.
func Schemaf(format string, args ...any) *SchemaError {
	return &SchemaError{msg: fmt.Sprintf(format, args...)}
}

// IsSchemaError reports whether err is (or wraps) a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// RoleConflictError indicates a role claim that cannot succeed: the role
// is taken, or the participant already holds another role in strict mode.
// It is expected and user-facing, never logged as a failure.
type RoleConflictError struct {
	Role          string
	ParticipantID string
	Reason        string
}

func (e *RoleConflictError) Error() string {
	return fmt.Sprintf("role %q: %s", e.Role, e.Reason)
}

// IsRoleConflict reports whether err is (or wraps) a RoleConflictError.
func IsRoleConflict(err error) bool {
	var rc *RoleConflictError
	return errors.As(err, &rc)
}
