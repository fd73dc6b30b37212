// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alterdot/adotd/chaincfg"
)

const (
	// testGenesisTime is the timestamp of the genesis block of the test
	// chains.
	testGenesisTime = 1600000000

	// testBlockSpacing is the number of seconds between test blocks.
	testBlockSpacing = 60

	// testWindow and testThreshold are the confirmation window and lock in
	// threshold of the test deployment.
	testWindow    = 10
	testThreshold = 8

	// signalVersion is a block version that signals for the test
	// deployment.
	signalVersion = chaincfg.VersionBitsTopBits | 1

	// noSignalVersion is a block version that does not signal for any
	// deployment.
	noSignalVersion = chaincfg.VersionBitsTopBits
)

// testParams returns regression test network parameters where only the CSV
// deployment can ever start.  It uses bit 0 with the provided start and expire
// times and the test window parameters.
func testParams(start, expire uint64) *chaincfg.Params {
	params := chaincfg.RegNetParams()
	params.MinerConfirmationWindow = testWindow
	params.RuleChangeActivationThreshold = testThreshold
	for i := range params.Deployments {
		d := &params.Deployments[i]
		d.StartTime = math.MaxUint64
		d.ExpireTime = math.MaxUint64
		d.WindowSize = 0
		d.Threshold = 0
	}
	csv := &params.Deployments[chaincfg.DeploymentCSV]
	csv.StartTime = start
	csv.ExpireTime = expire
	csv.WindowSize = testWindow
	csv.Threshold = testThreshold
	return params
}

// medianTimeAt returns the median time past of a test chain block at the
// provided height, which must be at least medianTimeBlocks-1.
func medianTimeAt(height int64) uint64 {
	return uint64(testGenesisTime + (height-medianTimeBlocks/2)*testBlockSpacing)
}

// chainBuilder builds test header chains.
type chainBuilder struct {
	t     *testing.T
	index *HeaderIndex
	nonce uint32
}

// newChainBuilder returns a builder with a fresh index containing only the
// genesis block.
func newChainBuilder(t *testing.T) *chainBuilder {
	t.Helper()

	index, err := NewHeaderIndex(&BlockHeader{
		Version:   noSignalVersion,
		Timestamp: time.Unix(testGenesisTime, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error creating header index: %v", err)
	}
	return &chainBuilder{t: t, index: index}
}

// extend adds a block with the given version on top of the provided node.
func (b *chainBuilder) extend(parent *BlockNode, version int32) *BlockNode {
	b.t.Helper()

	b.nonce++
	height := parent.height + 1
	node, err := b.index.AddHeader(&BlockHeader{
		Version:   version,
		PrevBlock: parent.hash,
		Timestamp: time.Unix(testGenesisTime+height*testBlockSpacing, 0),
		Nonce:     b.nonce,
		Height:    height,
	})
	if err != nil {
		b.t.Fatalf("unexpected error adding header at height %d: %v", height,
			err)
	}
	return node
}

// extendN adds count blocks on top of the provided node.  The version of each
// block is provided by the passed function given the block height.
func (b *chainBuilder) extendN(parent *BlockNode, count int, version func(height int64) int32) *BlockNode {
	b.t.Helper()

	node := parent
	for i := 0; i < count; i++ {
		node = b.extend(node, version(node.height+1))
	}
	return node
}

// always returns a version function that always returns the given version.
func always(version int32) func(int64) int32 {
	return func(int64) int32 { return version }
}

// memThresholdStore is an in-memory ThresholdStateStore.
type memThresholdStore struct {
	mtx     sync.Mutex
	states  map[[2]int64]map[[32]byte]StoredThresholdState
	deletes []int64
}

func newMemThresholdStore() *memThresholdStore {
	return &memThresholdStore{
		states: make(map[[2]int64]map[[32]byte]StoredThresholdState),
	}
}

func (s *memThresholdStore) PutThresholdStates(states []StoredThresholdState) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, state := range states {
		key := [2]int64{int64(state.ID), state.Height}
		if s.states[key] == nil {
			s.states[key] = make(map[[32]byte]StoredThresholdState)
		}
		s.states[key][state.Hash] = state
	}
	return nil
}

func (s *memThresholdStore) ThresholdStates() ([]StoredThresholdState, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	var all []StoredThresholdState
	for _, byHash := range s.states {
		for _, state := range byHash {
			all = append(all, state)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ID != all[j].ID {
			return all[i].ID < all[j].ID
		}
		return all[i].Height < all[j].Height
	})
	return all, nil
}

func (s *memThresholdStore) DeleteThresholdStatesAbove(height int64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for key := range s.states {
		if key[1] > height {
			delete(s.states, key)
		}
	}
	s.deletes = append(s.deletes, height)
	return nil
}

// count returns the number of stored states.
func (s *memThresholdStore) count() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	var n int
	for _, byHash := range s.states {
		n += len(byHash)
	}
	return n
}
