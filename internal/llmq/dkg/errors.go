// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrWrongSession indicates a message addressed to a different quorum
	// type or quorum hash than the session it was given to.
	ErrWrongSession = ErrorKind("ErrWrongSession")

	// ErrNotMember indicates a message from, or about, a member index that
	// is not part of the session.
	ErrNotMember = ErrorKind("ErrNotMember")

	// ErrInvalidSignature indicates a message is not properly signed by the
	// operator key of its member.
	ErrInvalidSignature = ErrorKind("ErrInvalidSignature")

	// ErrMalformedMessage indicates a message with fields of an unexpected
	// size.
	ErrMalformedMessage = ErrorKind("ErrMalformedMessage")

	// ErrPrematureMessage indicates a message for a phase the session has
	// not reached yet.  Such messages may be retried once the session
	// advances.
	ErrPrematureMessage = ErrorKind("ErrPrematureMessage")

	// ErrLateMessage indicates a message for a phase the session already
	// completed.
	ErrLateMessage = ErrorKind("ErrLateMessage")

	// ErrDuplicateMessage indicates a message that was already processed.
	ErrDuplicateMessage = ErrorKind("ErrDuplicateMessage")

	// ErrEquivocation indicates a member sent a second, different message
	// for a phase.  The second message is ignored.
	ErrEquivocation = ErrorKind("ErrEquivocation")

	// ErrNotAccused indicates a justification from a member nobody
	// complained about.
	ErrNotAccused = ErrorKind("ErrNotAccused")

	// ErrInvalidVerificationVector indicates a verification vector that
	// does not hold valid group elements for the quorum threshold.
	ErrInvalidVerificationVector = ErrorKind("ErrInvalidVerificationVector")

	// ErrInvalidShare indicates a secret share that does not match the
	// verification vector of its dealer.
	ErrInvalidShare = ErrorKind("ErrInvalidShare")

	// ErrPrematureCommitment indicates a commitment mined before the mining
	// window of its interval.
	ErrPrematureCommitment = ErrorKind("ErrPrematureCommitment")

	// ErrLateCommitment indicates a non-null commitment mined after the
	// mining window of its interval.
	ErrLateCommitment = ErrorKind("ErrLateCommitment")

	// ErrCommitmentAlreadyMined indicates a second commitment for a quorum
	// type and interval.
	ErrCommitmentAlreadyMined = ErrorKind("ErrCommitmentAlreadyMined")

	// ErrInvalidCommitment indicates a commitment with invalid contents.
	ErrInvalidCommitment = ErrorKind("ErrInvalidCommitment")

	// ErrShortBuffer indicates serialized data ended unexpectedly.
	ErrShortBuffer = ErrorKind("ErrShortBuffer")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// RuleError identifies a violation of the DKG rules.  It has full support for
// errors.Is and errors.As, so the caller can ascertain the specific reason for
// the error by checking the underlying error.
type RuleError struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e RuleError) Unwrap() error {
	return e.Err
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(kind ErrorKind, desc string) RuleError {
	return RuleError{Err: kind, Description: desc}
}
