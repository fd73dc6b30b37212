// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/crypto/blake256"
)

// Masternode describes a masternode that is eligible for quorum membership.
type Masternode struct {
	// ProTxHash is the hash of the registration transaction of the
	// masternode.  It uniquely identifies it.
	ProTxHash chainhash.Hash

	// OperatorKey is the compressed secp256k1 public key that signs the
	// DKG messages of the masternode.
	OperatorKey []byte
}

// memberScore returns the score of a masternode for the quorum of the given
// type that starts at the provided block.
func memberScore(t chaincfg.LLMQType, startHeight int64, startHash *chainhash.Hash, proTxHash *chainhash.Hash) [blake256.Size]byte {
	var buf [1 + 4 + 2*chainhash.HashSize]byte
	buf[0] = byte(t)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(startHeight))
	copy(buf[5:], startHash[:])
	copy(buf[5+chainhash.HashSize:], proTxHash[:])
	return blake256.Sum256(buf[:])
}

// DeriveMembers returns the ordered members of the quorum of the given type
// that starts at the provided height and block hash.  The masternodes of the
// snapshot are ordered by their score for the quorum, with ties broken by
// their ProTxHash, and the first Size of them are selected.  The result only
// depends on the inputs.
func DeriveMembers(params *chaincfg.LLMQParams, startHeight int64, startHash chainhash.Hash, snapshot []Masternode) []Masternode {
	type scored struct {
		score [blake256.Size]byte
		mn    Masternode
	}
	candidates := make([]scored, 0, len(snapshot))
	seen := make(map[chainhash.Hash]struct{}, len(snapshot))
	for _, mn := range snapshot {
		// Duplicate registrations in a snapshot only count once.
		if _, ok := seen[mn.ProTxHash]; ok {
			continue
		}
		seen[mn.ProTxHash] = struct{}{}
		candidates = append(candidates, scored{
			score: memberScore(params.Type, startHeight, &startHash, &mn.ProTxHash),
			mn:    mn,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if c := bytes.Compare(candidates[i].score[:], candidates[j].score[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(candidates[i].mn.ProTxHash[:],
			candidates[j].mn.ProTxHash[:]) < 0
	})

	n := len(candidates)
	if n > params.Size {
		n = params.Size
	}
	members := make([]Masternode, n)
	for i := range members {
		members[i] = candidates[i].mn
	}
	return members
}
