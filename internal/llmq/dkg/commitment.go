// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/jrick/bitset"
)

// CommitmentVersion is the current version of final commitments.
const CommitmentVersion = 1

// FinalCommitment is the on-chain record of a DKG session.  Signers and
// ValidMembers hold one bit for each of the Size members of a full quorum of
// the quorum type.  Sessions with fewer members leave the trailing bits clear.  A null commitment
// has no bits set, no public key and a zero verification vector hash.
type FinalCommitment struct {
	Version         uint16
	LLMQType        chaincfg.LLMQType
	QuorumHash      chainhash.Hash
	Signers         bitset.Bytes
	ValidMembers    bitset.Bytes
	QuorumPublicKey []byte
	QuorumVvecHash  chainhash.Hash
}

// NewNullCommitment returns the null commitment for the quorum of the given
// type and quorum hash.
func NewNullCommitment(params *chaincfg.LLMQParams, quorumHash chainhash.Hash) *FinalCommitment {
	return &FinalCommitment{
		Version:      CommitmentVersion,
		LLMQType:     params.Type,
		QuorumHash:   quorumHash,
		Signers:      bitset.NewBytes(params.Size),
		ValidMembers: bitset.NewBytes(params.Size),
	}
}

func countBits(b bitset.Bytes) int {
	var n int
	for i := 0; i < len(b)*8; i++ {
		if b.Get(i) {
			n++
		}
	}
	return n
}

// CountSigners returns the number of members that signed the commitment.
func (fc *FinalCommitment) CountSigners() int {
	return countBits(fc.Signers)
}

// CountValidMembers returns the number of valid members of the commitment.
func (fc *FinalCommitment) CountValidMembers() int {
	return countBits(fc.ValidMembers)
}

// IsNull returns whether the commitment is a null commitment.
func (fc *FinalCommitment) IsNull() bool {
	return fc.CountSigners() == 0 && fc.CountValidMembers() == 0 &&
		len(fc.QuorumPublicKey) == 0 && fc.QuorumVvecHash == chainhash.Hash{}
}

// SerializeSize returns the number of bytes it would take to serialize the
// commitment.
func (fc *FinalCommitment) SerializeSize() int {
	return 2 + 1 + chainhash.HashSize + 2 + len(fc.Signers) + 2 +
		len(fc.ValidMembers) + 1 + len(fc.QuorumPublicKey) + chainhash.HashSize
}

// Serialize returns the serialized commitment.
func (fc *FinalCommitment) Serialize() []byte {
	b := make([]byte, 0, fc.SerializeSize())
	b = binary.LittleEndian.AppendUint16(b, fc.Version)
	b = append(b, byte(fc.LLMQType))
	b = append(b, fc.QuorumHash[:]...)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(fc.Signers)))
	b = append(b, fc.Signers...)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(fc.ValidMembers)))
	b = append(b, fc.ValidMembers...)
	b = append(b, byte(len(fc.QuorumPublicKey)))
	b = append(b, fc.QuorumPublicKey...)
	b = append(b, fc.QuorumVvecHash[:]...)
	return b
}

// Hash returns the hash of the serialized commitment.
func (fc *FinalCommitment) Hash() chainhash.Hash {
	return chainhash.HashH(fc.Serialize())
}

type reader struct {
	b   []byte
	err error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < n {
		str := fmt.Sprintf("need %d bytes, have %d", n, len(r.b))
		r.err = ruleError(ErrShortBuffer, str)
		return nil
	}
	v := r.b[:n]
	r.b = r.b[n:]
	return v
}

func (r *reader) uint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) byte() byte {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// DeserializeCommitment parses a serialized commitment.
func DeserializeCommitment(b []byte) (*FinalCommitment, error) {
	r := &reader{b: b}
	fc := new(FinalCommitment)
	fc.Version = r.uint16()
	fc.LLMQType = chaincfg.LLMQType(r.byte())
	copy(fc.QuorumHash[:], r.next(chainhash.HashSize))
	fc.Signers = bytes.Clone(r.next(int(r.uint16())))
	fc.ValidMembers = bytes.Clone(r.next(int(r.uint16())))
	if pk := r.next(int(r.byte())); len(pk) > 0 {
		fc.QuorumPublicKey = bytes.Clone(pk)
	}
	copy(fc.QuorumVvecHash[:], r.next(chainhash.HashSize))
	if r.err != nil {
		return nil, r.err
	}
	if len(r.b) != 0 {
		str := fmt.Sprintf("%d trailing bytes after commitment", len(r.b))
		return nil, ruleError(ErrMalformedMessage, str)
	}
	return fc, nil
}

// checkBits returns an error when the bitset does not have the exact size
// for size members or has bits set past the last member.
func checkBits(name string, b bitset.Bytes, size int) error {
	if len(b) != (size+7)/8 {
		str := fmt.Sprintf("%s bitset has %d bytes, want %d", name, len(b),
			(size+7)/8)
		return ruleError(ErrInvalidCommitment, str)
	}
	for i := size; i < len(b)*8; i++ {
		if b.Get(i) {
			str := fmt.Sprintf("%s bitset has bit %d set past the last "+
				"member", name, i)
			return ruleError(ErrInvalidCommitment, str)
		}
	}
	return nil
}

// CheckCommitment validates a commitment mined in the block at the provided
// height for the quorum of the interval that starts at intervalStart with the
// provided quorum hash.  alreadyMined reports whether a commitment for the
// same quorum type and interval is already part of the chain.
//
// Commitments are rejected before the mining window of the interval.  Null
// commitments are accepted any time after that so an interval never stalls,
// while non-null commitments are rejected after the end of the window.  At
// most one commitment is accepted per quorum type and interval.
func CheckCommitment(params *chaincfg.LLMQParams, quorumHash chainhash.Hash,
	intervalStart, height int64, fc *FinalCommitment, alreadyMined bool) error {

	if alreadyMined {
		str := fmt.Sprintf("a commitment for %v quorum %v is already mined",
			params.Type, quorumHash)
		return ruleError(ErrCommitmentAlreadyMined, str)
	}
	if intervalStart%params.DKGInterval != 0 {
		str := fmt.Sprintf("height %d is not the start of a DKG interval",
			intervalStart)
		return ruleError(ErrInvalidCommitment, str)
	}
	offset := height - intervalStart
	if offset < params.DKGMiningWindowStart {
		str := fmt.Sprintf("commitment at offset %d is before the mining "+
			"window start %d", offset, params.DKGMiningWindowStart)
		return ruleError(ErrPrematureCommitment, str)
	}
	if fc.Version != CommitmentVersion {
		str := fmt.Sprintf("unsupported commitment version %d", fc.Version)
		return ruleError(ErrInvalidCommitment, str)
	}
	if fc.LLMQType != params.Type {
		str := fmt.Sprintf("commitment for quorum type %v, want %v",
			fc.LLMQType, params.Type)
		return ruleError(ErrInvalidCommitment, str)
	}
	if fc.QuorumHash != quorumHash {
		str := fmt.Sprintf("commitment for quorum %v, want %v",
			fc.QuorumHash, quorumHash)
		return ruleError(ErrInvalidCommitment, str)
	}
	if err := checkBits("signers", fc.Signers, params.Size); err != nil {
		return err
	}
	if err := checkBits("valid members", fc.ValidMembers, params.Size); err != nil {
		return err
	}
	if fc.IsNull() {
		return nil
	}

	if offset > params.DKGMiningWindowEnd {
		str := fmt.Sprintf("commitment at offset %d is after the mining "+
			"window end %d", offset, params.DKGMiningWindowEnd)
		return ruleError(ErrLateCommitment, str)
	}
	if n := fc.CountValidMembers(); n < params.MinSize {
		str := fmt.Sprintf("commitment has %d valid members, want at "+
			"least %d", n, params.MinSize)
		return ruleError(ErrInvalidCommitment, str)
	}
	if n := fc.CountSigners(); n < params.MinSize {
		str := fmt.Sprintf("commitment has %d signers, want at least %d",
			n, params.MinSize)
		return ruleError(ErrInvalidCommitment, str)
	}
	for i := 0; i < params.Size; i++ {
		if fc.Signers.Get(i) && !fc.ValidMembers.Get(i) {
			str := fmt.Sprintf("signer %d is not a valid member", i)
			return ruleError(ErrInvalidCommitment, str)
		}
	}
	if len(fc.QuorumPublicKey) != PublicKeySize {
		str := fmt.Sprintf("quorum public key has size %d, want %d",
			len(fc.QuorumPublicKey), PublicKeySize)
		return ruleError(ErrInvalidCommitment, str)
	}
	if fc.QuorumVvecHash == (chainhash.Hash{}) {
		return ruleError(ErrInvalidCommitment,
			"commitment has no verification vector hash")
	}
	return nil
}

// CheckCommitmentMembers validates a non-null commitment that passed
// CheckCommitment against the number of members the session of its quorum
// actually has.  Bits past the last member do not identify a member and are
// rejected.
func CheckCommitmentMembers(params *chaincfg.LLMQParams, fc *FinalCommitment, numMembers int) error {
	if fc.IsNull() {
		return nil
	}
	for i := numMembers; i < params.Size; i++ {
		if fc.Signers.Get(i) || fc.ValidMembers.Get(i) {
			str := fmt.Sprintf("commitment sets bit %d of a quorum with %d "+
				"members", i, numMembers)
			return ruleError(ErrInvalidCommitment, str)
		}
	}
	if numMembers < params.MinSize {
		str := fmt.Sprintf("quorum has %d members, want at least %d",
			numMembers, params.MinSize)
		return ruleError(ErrInvalidCommitment, str)
	}
	return nil
}
