// Copyright (c) 2021-2022 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package statedb

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrDatabase indicates an error with the underlying database that does
	// not have a more specific kind.
	ErrDatabase = ErrorKind("ErrDatabase")

	// ErrCorruption indicates a checksum failure occurred which invariably
	// means the database is corrupt.
	ErrCorruption = ErrorKind("ErrCorruption")

	// ErrNotOpen indicates that the database is not open.
	ErrNotOpen = ErrorKind("ErrNotOpen")

	// ErrIncompatibleVersion indicates the database was created by a newer
	// version of the software.
	ErrIncompatibleVersion = ErrorKind("ErrIncompatibleVersion")

	// ErrMalformedEntry indicates a stored key or value could not be
	// decoded.
	ErrMalformedEntry = ErrorKind("ErrMalformedEntry")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// ContextError wraps an error with additional context.  It has full support
// for errors.Is and errors.As, so the caller can ascertain the specific wrapped
// error.
//
// RawErr contains the original error in the case where an error has been
// converted.
type ContextError struct {
	Err         error
	Description string
	RawErr      error
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
