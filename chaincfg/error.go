// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrThresholdExceedsWindow indicates a deployment requires more
	// signalling blocks than its confirmation window holds.
	ErrThresholdExceedsWindow = ErrorKind("ErrThresholdExceedsWindow")

	// ErrZeroThreshold indicates a deployment or the network defaults
	// specify a zero window or threshold.
	ErrZeroThreshold = ErrorKind("ErrZeroThreshold")

	// ErrReservedDeploymentBit indicates a deployment uses a bit that
	// overlaps the version bits top bits.
	ErrReservedDeploymentBit = ErrorKind("ErrReservedDeploymentBit")

	// ErrDuplicateDeploymentBit indicates two deployments with overlapping
	// signalling periods use the same bit.
	ErrDuplicateDeploymentBit = ErrorKind("ErrDuplicateDeploymentBit")

	// ErrDeploymentIDMismatch indicates a deployment is stored at an index
	// that does not match its ID.
	ErrDeploymentIDMismatch = ErrorKind("ErrDeploymentIDMismatch")

	// ErrUnknownLLMQ indicates a quorum type that is not defined.
	ErrUnknownLLMQ = ErrorKind("ErrUnknownLLMQ")

	// ErrDuplicateLLMQ indicates a quorum type is configured more than once.
	ErrDuplicateLLMQ = ErrorKind("ErrDuplicateLLMQ")

	// ErrInvalidLLMQSizes indicates the size, minimum size, and threshold of
	// a quorum type are not ordered as threshold <= min size <= size.
	ErrInvalidLLMQSizes = ErrorKind("ErrInvalidLLMQSizes")

	// ErrInvalidDKGSchedule indicates a non-positive DKG interval or phase
	// length, or phases that do not fit in the interval.
	ErrInvalidDKGSchedule = ErrorKind("ErrInvalidDKGSchedule")

	// ErrInvalidMiningWindow indicates the commitment mining window starts
	// before the finalization phase, ends before it starts, or does not fit
	// in the DKG interval.
	ErrInvalidMiningWindow = ErrorKind("ErrInvalidMiningWindow")

	// ErrInvalidQuorumRetention indicates invalid active or retained quorum
	// counts or bad votes threshold.
	ErrInvalidQuorumRetention = ErrorKind("ErrInvalidQuorumRetention")

	// ErrMissingGenesisEpoch indicates the first epoch is not at height zero
	// or does not set every constant.
	ErrMissingGenesisEpoch = ErrorKind("ErrMissingGenesisEpoch")

	// ErrEpochOrder indicates epochs that are not strictly increasing by
	// height.
	ErrEpochOrder = ErrorKind("ErrEpochOrder")

	// ErrInvalidDevNet indicates an invalid devnet configuration.
	ErrInvalidDevNet = ErrorKind("ErrInvalidDevNet")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// ConfigError identifies a network parameter table that violates one of its
// invariants.  Such a table is never usable.
type ConfigError struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e ConfigError) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e ConfigError) Unwrap() error {
	return e.Err
}

// configError creates a ConfigError given a set of arguments.
func configError(kind ErrorKind, desc string) ConfigError {
	return ConfigError{Err: kind, Description: desc}
}
