// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package llmq

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrUnknownQuorumType indicates a quorum type that is not defined by
	// the network or not active at the height in question.
	ErrUnknownQuorumType = ErrorKind("ErrUnknownQuorumType")

	// ErrUnknownSession indicates a message or commitment for a DKG
	// interval the manager does not track.
	ErrUnknownSession = ErrorKind("ErrUnknownSession")

	// ErrDuplicateQuorum indicates a finalized quorum that is already
	// known to the registry.
	ErrDuplicateQuorum = ErrorKind("ErrDuplicateQuorum")

	// ErrNoActiveQuorum indicates no quorum of the requested type is
	// active.
	ErrNoActiveQuorum = ErrorKind("ErrNoActiveQuorum")

	// ErrUnexpectedBlock indicates a block connected or disconnected out of
	// order.
	ErrUnexpectedBlock = ErrorKind("ErrUnexpectedBlock")

	// ErrTooManyPending indicates the buffer of premature messages of a
	// session is full.
	ErrTooManyPending = ErrorKind("ErrTooManyPending")

	// ErrUnknownMessage indicates a message of an unsupported type.
	ErrUnknownMessage = ErrorKind("ErrUnknownMessage")

	// ErrRejectedMessage indicates a message that was recently rejected
	// as invalid.
	ErrRejectedMessage = ErrorKind("ErrRejectedMessage")

	// ErrMalformedQuorum indicates serialized quorum data that can not be
	// decoded.
	ErrMalformedQuorum = ErrorKind("ErrMalformedQuorum")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// ContextError wraps an error with additional context.  It has full support
// for errors.Is and errors.As, so the caller can ascertain the specific
// reason for the error by checking the underlying error.
type ContextError struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e ContextError) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e ContextError) Unwrap() error {
	return e.Err
}

// contextError creates a ContextError given a set of arguments.
func contextError(kind ErrorKind, desc string) ContextError {
	return ContextError{Err: kind, Description: desc}
}
