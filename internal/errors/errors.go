// Package errors provides error handling for pipewatch.
//
// It re-exports github.com/cockroachdb/errors and defines the three error
// kinds the aggregation core distinguishes. Wrap a kind with Mark to keep it
// detectable through errors.Is after further wrapping:
//
//	if err := st.ListExecutions(ctx, q); err != nil {
//	    return errors.Wrap(errors.Mark(err, errors.ErrStoreUnavailable), "list executions")
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	Mark         = crdb.Mark
)

// Inspection
var (
	Is          = crdb.Is
	IsAny       = crdb.IsAny
	As          = crdb.As
	Unwrap      = crdb.Unwrap
	UnwrapAll   = crdb.UnwrapAll
	GetAllHints = crdb.GetAllHints
)

var (
	// ErrInvalidParameter is a caller error: bad or missing query input,
	// or a record that violates the data model.
	ErrInvalidParameter = New("invalid parameter")

	// ErrStoreUnavailable means the record store could not be reached or a
	// query against it failed. It is never retried by the core.
	ErrStoreUnavailable = New("store unavailable")

	// ErrNotFound is reserved for resources the API cannot route to. An
	// unknown pipeline name is an empty result, not ErrNotFound.
	ErrNotFound = New("not found")
)

// InvalidParameterf builds an ErrInvalidParameter with a formatted message.
func InvalidParameterf(format string, args ...any) error {
	return crdb.Mark(crdb.Newf(format, args...), ErrInvalidParameter)
}

// StoreUnavailable marks err as ErrStoreUnavailable and adds msg as context.
// A nil err yields nil.
func StoreUnavailable(err error, msg string) error {
	if err == nil {
		return nil
	}
	return crdb.Wrap(crdb.Mark(err, ErrStoreUnavailable), msg)
}

// Kind returns the sentinel err belongs to, or nil for unclassified errors.
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case crdb.Is(err, ErrInvalidParameter):
		return ErrInvalidParameter
	case crdb.Is(err, ErrStoreUnavailable):
		return ErrStoreUnavailable
	case crdb.Is(err, ErrNotFound):
		return ErrNotFound
	default:
		return nil
	}
}

// KindName is the machine-readable name of err's kind, used in API error bodies.
func KindName(err error) string {
	switch Kind(err) {
	case ErrInvalidParameter:
		return "InvalidParameter"
	case ErrStoreUnavailable:
		return "StoreUnavailable"
	case ErrNotFound:
		return "NotFound"
	default:
		return "InternalError"
	}
}
