// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// TestDeriveMembers ensures member derivation only depends on the quorum,
// the interval start and the set of masternodes.
func TestDeriveMembers(t *testing.T) {
	t.Parallel()

	params := testLLMQParams()
	snapshot := testMembers(20)
	startHash := chainhash.Hash{0x01}

	members := DeriveMembers(params, 48, startHash, snapshot)
	if len(members) != params.Size {
		t.Fatalf("derived %d members, want %d", len(members), params.Size)
	}

	// Order and duplicates of the snapshot do not matter.
	shuffled := append([]Masternode(nil), snapshot...)
	shuffled = append(shuffled, snapshot[3], snapshot[7])
	rng := rand.New(rand.NewSource(7))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if got := DeriveMembers(params, 48, startHash, shuffled); !reflect.DeepEqual(got, members) {
		t.Fatalf("members depend on snapshot order")
	}

	// Another interval selects another ordering.
	other := DeriveMembers(params, 72, chainhash.Hash{0x02}, snapshot)
	if reflect.DeepEqual(other, members) {
		t.Fatalf("members do not depend on the interval")
	}

	// Small snapshots select every masternode.
	small := DeriveMembers(params, 48, startHash, snapshot[:3])
	if len(small) != 3 {
		t.Fatalf("derived %d members from 3 masternodes", len(small))
	}
	if got := DeriveMembers(params, 48, startHash, nil); len(got) != 0 {
		t.Fatalf("derived %d members from an empty snapshot", len(got))
	}
}
