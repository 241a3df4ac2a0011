// Package errors provides error handling for the console.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping with context
//   - User-facing hints and details
//
// Usage:
//
//	// Wrap a transport failure so callers can classify it
//	if err := client.Jobs.Add(ctx, adapterID, job); err != nil {
//	    return errors.Mark(errors.Wrap(err, "failed to submit job"), errors.ErrTransport)
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrRateLimited) {
//	    // ask the user to wait
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
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
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

// Failure taxonomy of the submission path.
// Policy rejections and rate limits are normally carried as typed results;
// these sentinels exist so they can be surfaced as errors at the edges (CLI exit codes).
var (
	// ErrPolicyRejected indicates the host license forbids the job as drafted (user-fixable, never retried)
	ErrPolicyRejected = New("rejected by host license")

	// ErrRateLimited indicates the submission was throttled locally (transient, retry after the wait)
	ErrRateLimited = New("rate limited")

	// ErrTransport indicates the remote service call failed (caller decides whether to retry)
	ErrTransport = New("transport failure")

	// ErrBestEffort marks failures of optional side effects that are logged and discarded
	ErrBestEffort = New("best-effort operation failed")
)

// Generic sentinels mapped from remote responses.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrUnauthorized indicates the request lacks a valid app key
	ErrUnauthorized = New("unauthorized")

	// ErrForbidden indicates the app key is not allowed to perform the request
	ErrForbidden = New("forbidden")

	// ErrServiceUnavailable indicates the remote service is not reachable
	ErrServiceUnavailable = New("service unavailable")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")
)

// IsTransportError checks if an error is or wraps ErrTransport
func IsTransportError(err error) bool {
	return err != nil && Is(err, ErrTransport)
}

// IsRateLimitedError checks if an error is or wraps ErrRateLimited
func IsRateLimitedError(err error) bool {
	return err != nil && Is(err, ErrRateLimited)
}

// IsPolicyRejectedError checks if an error is or wraps ErrPolicyRejected
func IsPolicyRejectedError(err error) bool {
	return err != nil && Is(err, ErrPolicyRejected)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// NewPolicyRejection creates a policy rejection carrying the license message verbatim.
func NewPolicyRejection(reason string) error {
	return Mark(New(reason), ErrPolicyRejected)
}

// NewRateLimited creates a rate-limit error with the wait surfaced as a hint.
func NewRateLimited(waitSeconds int64, reason string) error {
	err := Mark(Newf("job submission rate limited (%s)", reason), ErrRateLimited)
	return WithHintf(err, "try again in %d second(s)", waitSeconds)
}

// WrapTransport wraps a remote call failure as a transport error with context.
func WrapTransport(err error, context string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, context), ErrTransport)
}
