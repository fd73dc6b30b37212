// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

// Crypto is the verifiable secret sharing capability consumed by a session.
// Sessions never interpret verification vectors or shares themselves.
type Crypto interface {
	// VerifyVerificationVector returns an error when the verification
	// vector does not hold exactly threshold valid group elements.
	VerifyVerificationVector(vvec [][]byte, threshold int) error

	// VerifyShare returns an error when the share dealt to the member at
	// the provided index does not match the verification vector of its
	// dealer.
	VerifyShare(vvec [][]byte, memberIndex uint16, share []byte) error

	// AggregateVerificationVectors combines the verification vectors of
	// the valid members into the verification vector of the quorum.  The
	// first element of the result is the quorum public key.
	AggregateVerificationVectors(vvecs [][][]byte) ([][]byte, error)
}
