// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/jrick/bitset"
)

// testCommitment returns a commitment with the first n members valid.
func testCommitment(n int) *FinalCommitment {
	params := testLLMQParams()
	fc := NewNullCommitment(params, testQuorumHash)
	for i := 0; i < n; i++ {
		fc.Signers.Set(i)
		fc.ValidMembers.Set(i)
	}
	fc.QuorumPublicKey = bytes.Repeat([]byte{0x01}, PublicKeySize)
	fc.QuorumVvecHash = chainhash.Hash{0x02}
	return fc
}

// TestCheckCommitment ensures commitments are only accepted in the mining
// window of their interval with valid contents.
func TestCheckCommitment(t *testing.T) {
	t.Parallel()

	params := testLLMQParams()
	null := func() *FinalCommitment {
		return NewNullCommitment(params, testQuorumHash)
	}
	tests := []struct {
		name         string
		offset       int64
		fc           *FinalCommitment
		alreadyMined bool
		err          error
	}{{
		name:   "valid at window start",
		offset: 10,
		fc:     testCommitment(3),
	}, {
		name:   "valid at window end",
		offset: 18,
		fc:     testCommitment(5),
	}, {
		name:   "premature",
		offset: 9,
		fc:     testCommitment(5),
		err:    ErrPrematureCommitment,
	}, {
		name:   "premature null",
		offset: 2,
		fc:     null(),
		err:    ErrPrematureCommitment,
	}, {
		name:   "late",
		offset: 19,
		fc:     testCommitment(5),
		err:    ErrLateCommitment,
	}, {
		name:   "null in window",
		offset: 12,
		fc:     null(),
	}, {
		name:   "null after window",
		offset: 30,
		fc:     null(),
	}, {
		name:         "second commitment",
		offset:       12,
		fc:           null(),
		alreadyMined: true,
		err:          ErrCommitmentAlreadyMined,
	}, {
		name:   "too few valid members",
		offset: 12,
		fc:     testCommitment(2),
		err:    ErrInvalidCommitment,
	}, {
		name:   "wrong quorum type",
		offset: 12,
		fc: func() *FinalCommitment {
			fc := testCommitment(5)
			fc.LLMQType++
			return fc
		}(),
		err: ErrInvalidCommitment,
	}, {
		name:   "wrong quorum hash",
		offset: 12,
		fc: func() *FinalCommitment {
			fc := testCommitment(5)
			fc.QuorumHash = chainhash.Hash{}
			return fc
		}(),
		err: ErrInvalidCommitment,
	}, {
		name:   "oversized bitset",
		offset: 12,
		fc: func() *FinalCommitment {
			fc := testCommitment(5)
			fc.ValidMembers = bitset.NewBytes(16)
			return fc
		}(),
		err: ErrInvalidCommitment,
	}, {
		name:   "bit past last member",
		offset: 12,
		fc: func() *FinalCommitment {
			fc := testCommitment(5)
			fc.ValidMembers.Set(7)
			return fc
		}(),
		err: ErrInvalidCommitment,
	}, {
		name:   "signer not valid",
		offset: 12,
		fc: func() *FinalCommitment {
			fc := testCommitment(4)
			fc.Signers.Set(4)
			return fc
		}(),
		err: ErrInvalidCommitment,
	}, {
		name:   "missing public key",
		offset: 12,
		fc: func() *FinalCommitment {
			fc := testCommitment(5)
			fc.QuorumPublicKey = fc.QuorumPublicKey[:10]
			return fc
		}(),
		err: ErrInvalidCommitment,
	}}

	for _, test := range tests {
		err := CheckCommitment(params, testQuorumHash, testStartHeight,
			testStartHeight+test.offset, test.fc, test.alreadyMined)
		if !errors.Is(err, test.err) {
			t.Errorf("%q: unexpected error -- got %v, want %v", test.name,
				err, test.err)
		}
	}

	err := CheckCommitment(params, testQuorumHash, testStartHeight+1,
		testStartHeight+12, null(), false)
	if !errors.Is(err, ErrInvalidCommitment) {
		t.Errorf("unexpected error for unaligned interval: %v", err)
	}
}

// TestCommitmentSerialize ensures commitments survive serialization and that
// truncated data is rejected.
func TestCommitmentSerialize(t *testing.T) {
	t.Parallel()

	fc := testCommitment(4)
	b := fc.Serialize()
	if len(b) != fc.SerializeSize() {
		t.Fatalf("serialized %d bytes, size %d", len(b), fc.SerializeSize())
	}
	got, err := DeserializeCommitment(b)
	if err != nil {
		t.Fatalf("unable to deserialize: %v", err)
	}
	if !reflect.DeepEqual(got, fc) {
		t.Fatalf("mismatched commitment -- got %v, want %v", spew.Sdump(got),
			spew.Sdump(fc))
	}
	if got.Hash() != fc.Hash() {
		t.Fatalf("mismatched hash")
	}
	if got.IsNull() {
		t.Fatalf("commitment is null")
	}
	if !NewNullCommitment(testLLMQParams(), testQuorumHash).IsNull() {
		t.Fatalf("null commitment is not null")
	}

	if _, err := DeserializeCommitment(b[:len(b)-1]); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("unexpected error for short data: %v", err)
	}
	if _, err := DeserializeCommitment(append(b, 0)); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("unexpected error for trailing data: %v", err)
	}
}
