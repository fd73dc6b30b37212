// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"sort"
	"time"
)

// resolveEpochs folds the epoch records into fully populated constants.  The
// records must already be validated.
func resolveEpochs(epochs []Epoch) []EpochConstants {
	resolved := make([]EpochConstants, 0, len(epochs))
	var cur EpochConstants
	for i := range epochs {
		e := &epochs[i]
		cur.Index = i
		cur.Name = e.Name
		cur.Height = e.Height
		if e.PowTargetSpacing != 0 {
			cur.PowTargetSpacing = e.PowTargetSpacing
		}
		if e.MasternodeCollateral != 0 {
			cur.MasternodeCollateral = e.MasternodeCollateral
		}
		if e.AllowMinDifficultyBlocks != nil {
			cur.AllowMinDifficultyBlocks = *e.AllowMinDifficultyBlocks
		}
		if e.MinPeerProtoVersion != 0 {
			cur.MinPeerProtoVersion = e.MinPeerProtoVersion
		}
		if e.LLMQs != nil {
			cur.LLMQs = append(make([]LLMQType, 0, len(e.LLMQs)), e.LLMQs...)
		}
		resolved = append(resolved, cur)
	}
	return resolved
}

// epochConstants returns the resolved epochs, resolving them on demand for
// params that were never validated.
func (p *Params) epochConstants() []EpochConstants {
	if p.resolvedEpochs != nil {
		return p.resolvedEpochs
	}
	return resolveEpochs(p.Epochs)
}

// ActiveEpoch returns the constants of the last epoch whose first height is at
// or below the given height.  Heights before genesis are invalid input and
// must be rejected by the caller; they resolve to the genesis epoch.
func (p *Params) ActiveEpoch(height int64) EpochConstants {
	epochs := p.epochConstants()
	if len(epochs) == 0 {
		return EpochConstants{}
	}

	// Find the first epoch that starts after the height.  The active one is
	// the epoch right before it.
	idx := sort.Search(len(epochs), func(i int) bool {
		return epochs[i].Height > height
	})
	if idx == 0 {
		return epochs[0]
	}
	return epochs[idx-1]
}

// PowTargetSpacing returns the desired time between blocks at the given
// height.
func (p *Params) PowTargetSpacing(height int64) time.Duration {
	return p.ActiveEpoch(height).PowTargetSpacing
}

// MasternodeCollateral returns the masternode collateral, in whole coins,
// required at the given height.
func (p *Params) MasternodeCollateral(height int64) int64 {
	return p.ActiveEpoch(height).MasternodeCollateral
}

// HardForkHeight returns the first height of the named epoch and whether it
// exists.
func (p *Params) HardForkHeight(name string) (int64, bool) {
	for i := range p.Epochs {
		if p.Epochs[i].Name == name {
			return p.Epochs[i].Height, true
		}
	}
	return 0, false
}
