// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"errors"
	"testing"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// TestAddHeader ensures headers are only connected to known parents at the
// expected height.
func TestAddHeader(t *testing.T) {
	t.Parallel()

	b := newChainBuilder(t)
	genesis := b.index.Genesis()
	tip := b.extendN(genesis, 3, always(noSignalVersion))

	tests := []struct {
		name   string
		header BlockHeader
		err    error
	}{{
		name: "valid header",
		header: BlockHeader{
			PrevBlock: tip.Hash(),
			Timestamp: time.Unix(testGenesisTime+1000, 0),
			Height:    4,
		},
		err: nil,
	}, {
		name: "duplicate header",
		header: BlockHeader{
			PrevBlock: tip.Hash(),
			Timestamp: time.Unix(testGenesisTime+1000, 0),
			Height:    4,
		},
		err: ErrDuplicateBlock,
	}, {
		name: "unknown parent",
		header: BlockHeader{
			PrevBlock: chainhash.Hash{0x01},
			Height:    4,
		},
		err: ErrMissingParent,
	}, {
		name: "wrong height",
		header: BlockHeader{
			PrevBlock: tip.Hash(),
			Height:    7,
		},
		err: ErrBadBlockHeight,
	}}

	for _, test := range tests {
		node, err := b.index.AddHeader(&test.header)
		if !errors.Is(err, test.err) {
			t.Errorf("%q: unexpected err -- got %v, want %v", test.name, err,
				test.err)
			continue
		}
		if err != nil {
			continue
		}
		hash := test.header.BlockHash()
		if node.Hash() != hash || b.index.LookupNode(&hash) != node {
			t.Errorf("%q: node not indexed by its hash", test.name)
		}
		if b.index.BestHeader() != node {
			t.Errorf("%q: best header not updated", test.name)
		}
	}

	_, err := NewHeaderIndex(&BlockHeader{Height: 1})
	if !errors.Is(err, ErrInvalidGenesis) {
		t.Fatalf("unexpected error for invalid genesis: %v", err)
	}
	missing := chainhash.Hash{0x02}
	if _, err := b.index.NodeByHash(&missing); !errors.Is(err, ErrUnknownBlock) {
		t.Fatalf("unexpected error for unknown block: %v", err)
	}
}

// TestAncestor ensures the skip list based ancestor lookups agree with walking
// the parents.
func TestAncestor(t *testing.T) {
	t.Parallel()

	b := newChainBuilder(t)
	tip := b.extendN(b.index.Genesis(), 300, always(noSignalVersion))

	byHeight := make(map[int64]*BlockNode)
	for node := tip; node != nil; node = node.Parent() {
		byHeight[node.Height()] = node
	}
	for height := int64(-1); height <= tip.Height()+1; height++ {
		want := byHeight[height]
		if got := tip.Ancestor(height); got != want {
			t.Fatalf("mismatched ancestor at height %d", height)
		}
	}
	if got := tip.RelativeAncestor(50); got != byHeight[250] {
		t.Fatalf("mismatched relative ancestor")
	}
}

// TestCalcPastMedianTime ensures the median time past uses the expected
// number of previous blocks.
func TestCalcPastMedianTime(t *testing.T) {
	t.Parallel()

	b := newChainBuilder(t)
	genesis := b.index.Genesis()
	if got := genesis.CalcPastMedianTime().Unix(); got != testGenesisTime {
		t.Fatalf("unexpected genesis median time %d", got)
	}

	tip := b.extendN(genesis, 30, always(noSignalVersion))
	for node := tip; node.Height() >= medianTimeBlocks-1; node = node.Parent() {
		got := uint64(node.CalcPastMedianTime().Unix())
		if want := medianTimeAt(node.Height()); got != want {
			t.Fatalf("unexpected median time at height %d -- got %d, want %d",
				node.Height(), got, want)
		}
	}
}
