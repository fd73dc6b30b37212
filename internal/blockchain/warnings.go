// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/alterdot/adotd/chaincfg"
	"github.com/decred/dcrd/chaincfg/chainhash"
)

// unknownBitWarnCacheSize is the number of (bit, window) pairs remembered to
// avoid logging the same unknown bit warning repeatedly.
const unknownBitWarnCacheSize = 256

// unknownBitKey identifies an unknown bit within a confirmation window.
type unknownBitKey struct {
	bit        uint8
	windowHash chainhash.Hash
}

// UnknownBitWarning reports a version bit that miners signal for although it
// is not expected by any known deployment.
type UnknownBitWarning struct {
	// Bit is the version bit being signalled.
	Bit uint8

	// Count is the number of blocks in the window that signalled the bit.
	Count int64

	// WindowEnd is the height of the last block of the window.
	WindowEnd int64
}

// UnknownRuleWarnings returns a warning for every version bit that is not
// expected by any known deployment and that was signalled by more blocks than
// the network rule change activation threshold in the last complete
// confirmation window ending at or before the provided node.  This often
// indicates the local software is out of date.  The warnings are advisory and
// never affect consensus.
//
// This function is safe for concurrent access.
func (vb *VersionBits) UnknownRuleWarnings(node *BlockNode) ([]UnknownBitWarning, error) {
	if node == nil {
		return nil, nil
	}
	window := int64(vb.params.MinerConfirmationWindow)
	last := node.Ancestor(node.height - (node.height+1)%window)
	if last == nil {
		return nil, nil
	}

	vb.mtx.Lock()
	defer vb.mtx.Unlock()

	var counts [chaincfg.VersionBitsNumBits]int64
	countNode := last
	for i := int64(0); i < window && countNode != nil; i++ {
		version := countNode.version
		if version&chaincfg.VersionBitsTopMask == chaincfg.VersionBitsTopBits {
			expected, err := vb.computeBlockVersion(countNode.parent)
			if err != nil {
				return nil, err
			}
			unexpected := version &^ expected
			for bit := 0; bit < chaincfg.VersionBitsNumBits; bit++ {
				if unexpected&(1<<bit) != 0 {
					counts[bit]++
				}
			}
		}
		countNode = countNode.parent
	}

	var warnings []UnknownBitWarning
	threshold := int64(vb.params.RuleChangeActivationThreshold)
	for bit, count := range counts {
		if count <= threshold {
			continue
		}
		warnings = append(warnings, UnknownBitWarning{
			Bit:       uint8(bit),
			Count:     count,
			WindowEnd: last.height,
		})

		key := unknownBitKey{bit: uint8(bit), windowHash: last.hash}
		if !vb.warned.Contains(key) {
			vb.warned.Put(key)
			log.Warnf("Unknown new rules are about to activate (version bit "+
				"%d signalled by %d of %d blocks ending at height %d)", bit,
				count, window, last.height)
		}
	}
	return warnings, nil
}
