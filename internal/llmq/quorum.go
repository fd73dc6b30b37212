// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package llmq

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/alterdot/adotd/internal/llmq/dkg"
	"github.com/decred/dcrd/chaincfg/chainhash"
)

// Quorum is a finalized quorum.  It must not be modified once created.
type Quorum struct {
	// Type is the quorum type.
	Type chaincfg.LLMQType

	// QuorumHash is the hash of the first block of the DKG interval that
	// created the quorum.
	QuorumHash chainhash.Hash

	// StartHeight is the height of the first block of the DKG interval.
	StartHeight int64

	// Members are the ProTxHashes of the valid members in member order.
	Members []chainhash.Hash

	// PublicKey is the threshold public key of the quorum.
	PublicKey []byte

	// CreationHeight is the height of the block that mined the commitment.
	CreationHeight int64

	// CommitmentHash is the hash of the mined commitment.
	CommitmentHash chainhash.Hash
}

// NewQuorum returns the quorum created by the provided non-null commitment
// mined at the provided height.  members are the ordered members of the
// session, of which the valid ones are kept.
func NewQuorum(fc *dkg.FinalCommitment, startHeight, height int64, members []dkg.Masternode) *Quorum {
	valid := make([]chainhash.Hash, 0, len(members))
	for i := range members {
		if i < len(fc.ValidMembers)*8 && fc.ValidMembers.Get(i) {
			valid = append(valid, members[i].ProTxHash)
		}
	}
	return &Quorum{
		Type:           fc.LLMQType,
		QuorumHash:     fc.QuorumHash,
		StartHeight:    startHeight,
		Members:        valid,
		PublicKey:      bytes.Clone(fc.QuorumPublicKey),
		CreationHeight: height,
		CommitmentHash: fc.Hash(),
	}
}

// Serialize returns the serialized quorum.
func (q *Quorum) Serialize() []byte {
	size := 1 + chainhash.HashSize + 4 + 2 + len(q.Members)*chainhash.HashSize +
		1 + len(q.PublicKey) + 4 + chainhash.HashSize
	b := make([]byte, 0, size)
	b = append(b, byte(q.Type))
	b = append(b, q.QuorumHash[:]...)
	b = binary.LittleEndian.AppendUint32(b, uint32(q.StartHeight))
	b = binary.LittleEndian.AppendUint16(b, uint16(len(q.Members)))
	for i := range q.Members {
		b = append(b, q.Members[i][:]...)
	}
	b = append(b, byte(len(q.PublicKey)))
	b = append(b, q.PublicKey...)
	b = binary.LittleEndian.AppendUint32(b, uint32(q.CreationHeight))
	b = append(b, q.CommitmentHash[:]...)
	return b
}

// DeserializeQuorum decodes a quorum serialized with Serialize.
func DeserializeQuorum(b []byte) (*Quorum, error) {
	const fixed = 1 + chainhash.HashSize + 4 + 2
	if len(b) < fixed {
		str := fmt.Sprintf("quorum data of %d bytes is too short", len(b))
		return nil, contextError(ErrMalformedQuorum, str)
	}
	q := &Quorum{Type: chaincfg.LLMQType(b[0])}
	copy(q.QuorumHash[:], b[1:])
	q.StartHeight = int64(binary.LittleEndian.Uint32(b[1+chainhash.HashSize:]))
	numMembers := int(binary.LittleEndian.Uint16(b[fixed-2:]))
	b = b[fixed:]
	if len(b) < numMembers*chainhash.HashSize+1 {
		str := fmt.Sprintf("quorum data too short for %d members", numMembers)
		return nil, contextError(ErrMalformedQuorum, str)
	}
	q.Members = make([]chainhash.Hash, numMembers)
	for i := range q.Members {
		copy(q.Members[i][:], b)
		b = b[chainhash.HashSize:]
	}
	pkLen := int(b[0])
	b = b[1:]
	if len(b) != pkLen+4+chainhash.HashSize {
		str := fmt.Sprintf("quorum data has %d trailing bytes, want %d",
			len(b), pkLen+4+chainhash.HashSize)
		return nil, contextError(ErrMalformedQuorum, str)
	}
	if pkLen > 0 {
		q.PublicKey = bytes.Clone(b[:pkLen])
	}
	b = b[pkLen:]
	q.CreationHeight = int64(binary.LittleEndian.Uint32(b))
	copy(q.CommitmentHash[:], b[4:])
	return q, nil
}
