package gateway

import (
	"errors"
	"fmt"
)

// RejectionKind identifies why the validator refused a request.
type RejectionKind string

const (
	KindNotWhitelisted     RejectionKind = "not_whitelisted"
	KindTooManyArguments   RejectionKind = "too_many_arguments"
	KindArgumentTooLong    RejectionKind = "argument_too_long"
	KindDangerousCharacter RejectionKind = "dangerous_character"
	KindDangerousPattern   RejectionKind = "dangerous_pattern"
	KindPathTraversal      RejectionKind = "path_traversal"
)

// SecurityKind identifies a resource-access boundary violation.
type SecurityKind string

const (
	KindOutsideAllowedRoots SecurityKind = "outside_allowed_roots"
	KindWorkingDirNotFound  SecurityKind = "working_dir_not_found"
)

// ValidationError is returned when a request fails a validator check.
// Recoverable by the caller by changing the request; never retried here.
type ValidationError struct {
	Kind   RejectionKind
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Kind, e.Reason)
}

// SecurityError is returned for working-directory boundary violations.
// A stricter category than ValidationError, handled the same way by callers.
type SecurityError struct {
	Kind   SecurityKind
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security check failed (%s): %s", e.Kind, e.Reason)
}

// ExecutionError surfaces an OS-level spawn failure (binary missing,
// permission denied). Policy violations never produce this type;
// they are caught before a process exists.
type ExecutionError struct {
	Program string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("executing %s: %v", e.Program, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// RejectionKindOf extracts the rejection kind from an error chain,
// or "" if the error is not a ValidationError.
func RejectionKindOf(err error) RejectionKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// SecurityKindOf extracts the security kind from an error chain,
// or "" if the error is not a SecurityError.
func SecurityKindOf(err error) SecurityKind {
	var se *SecurityError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
