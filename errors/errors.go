// Package errors provides error handling for serveradmin.
//
// This package re-exports github.com/cockroachdb/errors (stack traces,
// wrapping, hints and details) and defines the sentinel errors every
// engine failure maps onto. Concrete error types in the serverdb packages
// unwrap to one of these sentinels, so callers classify failures with
// errors.Is regardless of how much context was added on the way up:
//
//	res, err := committer.Commit(ctx, user, batch)
//	if errors.Is(err, errors.ErrCommitConflict) {
//	    // re-read the objects and retry
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to err, if any.
var GetStack = crdb.GetReportableStackTrace

var AssertionFailedf = crdb.AssertionFailedf

// Sentinel errors. Wrap these with errors.Wrap() to add context while
// keeping errors.Is() working.
var (
	// ErrNotFound indicates the requested object does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrQuerySyntax indicates malformed query text
	ErrQuerySyntax = New("query syntax error")

	// ErrUnknownAttribute indicates an attribute id that is neither special
	// nor defined for the involved servertypes
	ErrUnknownAttribute = New("unknown attribute")

	// ErrUnknownServertype indicates a servertype id that does not exist
	ErrUnknownServertype = New("unknown servertype")

	// ErrInvalidValue indicates a value that does not coerce to its attribute type
	ErrInvalidValue = New("invalid value")

	// ErrConstraintViolation indicates a required, readonly, relation,
	// uniqueness or overlap rule failed
	ErrConstraintViolation = New("constraint violation")

	// ErrCommitConflict indicates a change based on stale state
	ErrCommitConflict = New("commit conflict")

	// ErrPermissionDenied indicates the user may not perform the operation
	ErrPermissionDenied = New("permission denied")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// IsConstraintViolation checks if an error is or wraps ErrConstraintViolation
func IsConstraintViolation(err error) bool {
	return err != nil && Is(err, ErrConstraintViolation)
}

// IsCommitConflict checks if an error is or wraps ErrCommitConflict
func IsCommitConflict(err error) bool {
	return err != nil && Is(err, ErrCommitConflict)
}

// IsRejection reports whether err is one of the deterministic rejections
// (syntax, schema lookup, value, constraint, conflict, permission) as opposed
// to an unexpected store failure.
func IsRejection(err error) bool {
	return err != nil && IsAny(err,
		ErrQuerySyntax,
		ErrUnknownAttribute,
		ErrUnknownServertype,
		ErrInvalidValue,
		ErrConstraintViolation,
		ErrCommitConflict,
		ErrPermissionDenied,
		ErrInvalidRequest,
		ErrNotFound,
	)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}
