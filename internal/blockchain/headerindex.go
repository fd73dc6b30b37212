// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

const (
	// medianTimeBlocks is the number of previous blocks which should be
	// used to calculate the median time used to validate block timestamps.
	medianTimeBlocks = 11

	// blockHeaderLen is the number of bytes of a serialized block header.
	// Version 4 bytes + PrevBlock 32 bytes + MerkleRoot 32 bytes + Timestamp
	// 4 bytes + Bits 4 bytes + Nonce 4 bytes + Height 4 bytes.
	blockHeaderLen = 84
)

// BlockHeader defines the subset of a block header the rule activation and
// quorum logic depends on.
type BlockHeader struct {
	// Version of the block.  The top bits and deployment bits are used to
	// signal for consensus rule changes.
	Version int32

	// Hash of the previous block header in the block chain.
	PrevBlock chainhash.Hash

	// Merkle tree reference to hash of all transactions for the block.
	MerkleRoot chainhash.Hash

	// Time the block was created.  This is, unfortunately, encoded as a
	// uint32 on the wire and therefore is limited to 2106.
	Timestamp time.Time

	// Difficulty target for the block.
	Bits uint32

	// Nonce used to generate the block.
	Nonce uint32

	// Height is the height of the block in the block chain.
	Height int64
}

// Serialize encodes the block header to w.
func (h *BlockHeader) Serialize(w io.Writer) error {
	var buf [blockHeaderLen]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Version))
	copy(buf[4:36], h.PrevBlock[:])
	copy(buf[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[68:72], uint32(h.Timestamp.Unix()))
	binary.LittleEndian.PutUint32(buf[72:76], h.Bits)
	binary.LittleEndian.PutUint32(buf[76:80], h.Nonce)
	binary.LittleEndian.PutUint32(buf[80:84], uint32(h.Height))
	_, err := w.Write(buf[:])
	return err
}

// BlockHash computes the block identifier hash for the given block header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, blockHeaderLen))
	_ = h.Serialize(buf)
	return chainhash.HashH(buf.Bytes())
}

// BlockNode represents a block within the block chain.  It only holds the
// header fields needed to compute rule activation states and is immutable once
// created.
type BlockNode struct {
	// parent is the parent block for this node.
	parent *BlockNode

	// skipToAncestor is used to provide a skip list to significantly speed
	// up traversal to ancestors deep in history.
	skipToAncestor *BlockNode

	// hash is the hash of the block this node represents.
	hash chainhash.Hash

	// height is the position in the block chain.
	height int64

	// Some fields from block headers to aid in reconstructing headers and
	// calculating rule activation states.
	version   int32
	timestamp int64
}

// clearLowestOneBit clears the lowest set bit in the passed value.
func clearLowestOneBit(n int64) int64 {
	return n & (n - 1)
}

// calcSkipListHeight calculates the height of an ancestor block to use when
// constructing the ancestor traversal skip list.
func calcSkipListHeight(height int64) int64 {
	if height < 0 {
		return 0
	}

	// The chain is append only, so a deterministic skip list with a single
	// level reasonably close to O(log n) is enough.  The only requirement
	// for proper operation is that the calculated height is less than the
	// provided height.
	return clearLowestOneBit(clearLowestOneBit(height))
}

// newBlockNode returns a new block node for the given block header and parent
// node.
func newBlockNode(header *BlockHeader, parent *BlockNode) *BlockNode {
	node := &BlockNode{
		hash:      header.BlockHash(),
		height:    header.Height,
		version:   header.Version,
		timestamp: header.Timestamp.Unix(),
	}
	if parent != nil {
		node.parent = parent
		node.skipToAncestor = parent.Ancestor(calcSkipListHeight(node.height))
	}
	return node
}

// Hash returns the hash of the block the node represents.
func (node *BlockNode) Hash() chainhash.Hash {
	return node.hash
}

// Height returns the height of the block the node represents.
func (node *BlockNode) Height() int64 {
	return node.height
}

// Version returns the version of the block the node represents.
func (node *BlockNode) Version() int32 {
	return node.version
}

// Timestamp returns the timestamp of the block the node represents.
func (node *BlockNode) Timestamp() time.Time {
	return time.Unix(node.timestamp, 0)
}

// Parent returns the parent of the node or nil for the genesis block.
func (node *BlockNode) Parent() *BlockNode {
	return node.parent
}

// Ancestor returns the ancestor block node at the provided height by following
// the chain backwards from this node.  The returned block will be nil when a
// height is requested that is after the height of the passed node or is less
// than zero.
//
// This function is safe for concurrent access.
func (node *BlockNode) Ancestor(height int64) *BlockNode {
	if height < 0 || height > node.height {
		return nil
	}

	n := node
	for n != nil && n.height != height {
		// Skip to the linked ancestor when it won't overshoot the target
		// height.
		if n.skipToAncestor != nil && calcSkipListHeight(n.height) >= height {
			n = n.skipToAncestor
			continue
		}

		n = n.parent
	}

	return n
}

// RelativeAncestor returns the ancestor block node a relative 'distance' blocks
// before this node.  This is equivalent to calling Ancestor with the node's
// height minus provided distance.
//
// This function is safe for concurrent access.
func (node *BlockNode) RelativeAncestor(distance int64) *BlockNode {
	return node.Ancestor(node.height - distance)
}

// CalcPastMedianTime calculates the median time of the previous few blocks
// prior to, and including, the block node.
//
// This function is safe for concurrent access.
func (node *BlockNode) CalcPastMedianTime() time.Time {
	// Create a slice of the previous few block timestamps used to calculate
	// the median per the number defined by the constant medianTimeBlocks.
	timestamps := make([]int64, 0, medianTimeBlocks)
	iterNode := node
	for i := 0; i < medianTimeBlocks && iterNode != nil; i++ {
		timestamps = append(timestamps, iterNode.timestamp)
		iterNode = iterNode.parent
	}
	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i] < timestamps[j]
	})

	// NOTE: The consensus rules incorrectly calculate the median for even
	// numbers of blocks.  A true median averages the middle two elements
	// for a set with an even number of elements in it.  Since the constant
	// for the previous number of blocks to be used is odd, this is only an
	// issue for a few blocks near the beginning of the chain.
	medianTimestamp := timestamps[len(timestamps)/2]
	return time.Unix(medianTimestamp, 0)
}

// FindFork returns the final common block between the provided nodes.  It
// returns nil when the nodes do not share a common ancestor.
func FindFork(a, b *BlockNode) *BlockNode {
	if a == nil || b == nil {
		return nil
	}

	// Move the nodes to the same height before walking both chains back in
	// lockstep.
	if a.height > b.height {
		a = a.Ancestor(b.height)
	} else if b.height > a.height {
		b = b.Ancestor(a.height)
	}
	for a != b && a != nil && b != nil {
		a = a.parent
		b = b.parent
	}
	return a
}

// HeaderIndex provides facilities for keeping track of an in-memory index of
// the block header tree.  It tracks every known header, including those on
// side chains, so rule activation states can be computed for any branch.
//
// The index is safe for concurrent access.
type HeaderIndex struct {
	mtx        sync.RWMutex
	index      map[chainhash.Hash]*BlockNode
	genesis    *BlockNode
	bestHeader *BlockNode
}

// NewHeaderIndex returns a new header index rooted at the provided genesis
// header.
func NewHeaderIndex(genesis *BlockHeader) (*HeaderIndex, error) {
	if genesis.Height != 0 || genesis.PrevBlock != (chainhash.Hash{}) {
		str := fmt.Sprintf("genesis header has height %d and previous block "+
			"%s", genesis.Height, genesis.PrevBlock)
		return nil, contextError(ErrInvalidGenesis, str)
	}

	node := newBlockNode(genesis, nil)
	return &HeaderIndex{
		index:      map[chainhash.Hash]*BlockNode{node.hash: node},
		genesis:    node,
		bestHeader: node,
	}, nil
}

// AddHeader connects the provided header to its parent in the index and
// returns the resulting node.
//
// This function is safe for concurrent access.
func (hi *HeaderIndex) AddHeader(header *BlockHeader) (*BlockNode, error) {
	hash := header.BlockHash()

	hi.mtx.Lock()
	defer hi.mtx.Unlock()

	if _, ok := hi.index[hash]; ok {
		str := fmt.Sprintf("already have block %s", hash)
		return nil, ruleError(ErrDuplicateBlock, str)
	}
	parent, ok := hi.index[header.PrevBlock]
	if !ok {
		str := fmt.Sprintf("previous block %s of block %s is unknown",
			header.PrevBlock, hash)
		return nil, ruleError(ErrMissingParent, str)
	}
	if header.Height != parent.height+1 {
		str := fmt.Sprintf("block %s has height %d instead of %d", hash,
			header.Height, parent.height+1)
		return nil, ruleError(ErrBadBlockHeight, str)
	}

	node := newBlockNode(header, parent)
	hi.index[hash] = node
	if node.height > hi.bestHeader.height {
		hi.bestHeader = node
	}
	return node, nil
}

// LookupNode returns the block node identified by the provided hash.  It will
// return nil if there is no entry for the hash.
//
// This function is safe for concurrent access.
func (hi *HeaderIndex) LookupNode(hash *chainhash.Hash) *BlockNode {
	hi.mtx.RLock()
	node := hi.index[*hash]
	hi.mtx.RUnlock()
	return node
}

// NodeByHash returns the block node identified by the provided hash or an
// error wrapping ErrUnknownBlock.
//
// This function is safe for concurrent access.
func (hi *HeaderIndex) NodeByHash(hash *chainhash.Hash) (*BlockNode, error) {
	node := hi.LookupNode(hash)
	if node == nil {
		return nil, unknownBlockError(hash)
	}
	return node, nil
}

// HaveBlock returns whether or not the index contains the provided hash.
//
// This function is safe for concurrent access.
func (hi *HeaderIndex) HaveBlock(hash *chainhash.Hash) bool {
	return hi.LookupNode(hash) != nil
}

// Genesis returns the genesis node of the index.
func (hi *HeaderIndex) Genesis() *BlockNode {
	return hi.genesis
}

// BestHeader returns the first seen node with the greatest height.
//
// This function is safe for concurrent access.
func (hi *HeaderIndex) BestHeader() *BlockNode {
	hi.mtx.RLock()
	node := hi.bestHeader
	hi.mtx.RUnlock()
	return node
}

// Count returns the number of headers in the index.
//
// This function is safe for concurrent access.
func (hi *HeaderIndex) Count() int {
	hi.mtx.RLock()
	n := len(hi.index)
	hi.mtx.RUnlock()
	return n
}
