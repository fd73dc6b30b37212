// Copyright (c) 2017-2019 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"fmt"
)

// overlaps returns whether the signalling periods of the two deployments
// overlap.  Disabled deployments never signal.
func overlaps(a, b *Deployment) bool {
	if a.IsDisabled() || b.IsDisabled() {
		return false
	}
	return a.StartTime < b.ExpireTime && b.StartTime < a.ExpireTime
}

func (p *Params) validateDeployments() error {
	if p.MinerConfirmationWindow == 0 || p.RuleChangeActivationThreshold == 0 {
		str := fmt.Sprintf("network %s: default confirmation window %d and "+
			"threshold %d must be non-zero", p.Name, p.MinerConfirmationWindow,
			p.RuleChangeActivationThreshold)
		return configError(ErrZeroThreshold, str)
	}
	if p.RuleChangeActivationThreshold > p.MinerConfirmationWindow {
		str := fmt.Sprintf("network %s: default threshold %d exceeds default "+
			"confirmation window %d", p.Name, p.RuleChangeActivationThreshold,
			p.MinerConfirmationWindow)
		return configError(ErrThresholdExceedsWindow, str)
	}

	for i := range p.Deployments {
		d := &p.Deployments[i]
		if d.ID != DeploymentID(i) {
			str := fmt.Sprintf("network %s: deployment %v stored at index %d",
				p.Name, d.ID, i)
			return configError(ErrDeploymentIDMismatch, str)
		}
		if d.BitNumber >= VersionBitsReservedBit {
			str := fmt.Sprintf("network %s: deployment %v uses reserved bit %d",
				p.Name, d.ID, d.BitNumber)
			return configError(ErrReservedDeploymentBit, str)
		}

		window, threshold := p.DeploymentWindow(d), p.DeploymentThreshold(d)
		if threshold > window {
			str := fmt.Sprintf("network %s: deployment %v threshold %d exceeds "+
				"window size %d", p.Name, d.ID, threshold, window)
			return configError(ErrThresholdExceedsWindow, str)
		}

		for j := 0; j < i; j++ {
			other := &p.Deployments[j]
			if other.BitNumber == d.BitNumber && overlaps(d, other) {
				str := fmt.Sprintf("network %s: deployments %v and %v both use "+
					"bit %d during overlapping periods", p.Name, other.ID, d.ID,
					d.BitNumber)
				return configError(ErrDuplicateDeploymentBit, str)
			}
		}
	}
	return nil
}

// validateLLMQ ensures the quorum type parameters are internally consistent.
func validateLLMQ(netName string, q *LLMQParams) error {
	if !q.Type.IsKnown() {
		str := fmt.Sprintf("network %s: unknown quorum type %d", netName,
			uint8(q.Type))
		return configError(ErrUnknownLLMQ, str)
	}
	if q.Threshold <= 0 || q.Threshold > q.MinSize || q.MinSize > q.Size {
		str := fmt.Sprintf("network %s: quorum %v requires threshold (%d) <= "+
			"min size (%d) <= size (%d)", netName, q.Type, q.Threshold,
			q.MinSize, q.Size)
		return configError(ErrInvalidLLMQSizes, str)
	}
	if q.DKGInterval <= 0 || q.DKGPhaseBlocks <= 0 ||
		q.DKGPhaseBlocks*DKGPhaseCount > q.DKGInterval {

		str := fmt.Sprintf("network %s: quorum %v has invalid DKG schedule "+
			"(interval %d, phase blocks %d)", netName, q.Type, q.DKGInterval,
			q.DKGPhaseBlocks)
		return configError(ErrInvalidDKGSchedule, str)
	}
	if q.DKGMiningWindowStart < (DKGPhaseCount-1)*q.DKGPhaseBlocks ||
		q.DKGMiningWindowEnd < q.DKGMiningWindowStart ||
		q.DKGMiningWindowEnd >= q.DKGInterval {

		str := fmt.Sprintf("network %s: quorum %v mining window [%d, %d] must "+
			"start at or after %d and end before %d", netName, q.Type,
			q.DKGMiningWindowStart, q.DKGMiningWindowEnd,
			(DKGPhaseCount-1)*q.DKGPhaseBlocks, q.DKGInterval)
		return configError(ErrInvalidMiningWindow, str)
	}
	if q.DKGBadVotesThreshold <= 0 || q.DKGBadVotesThreshold > q.Size ||
		q.SigningActiveQuorumCount <= 0 || q.KeepOldConnections < 0 {

		str := fmt.Sprintf("network %s: quorum %v has invalid bad votes "+
			"threshold %d, active count %d, or old connections %d", netName,
			q.Type, q.DKGBadVotesThreshold, q.SigningActiveQuorumCount,
			q.KeepOldConnections)
		return configError(ErrInvalidQuorumRetention, str)
	}
	return nil
}

func (p *Params) validateLLMQs() error {
	seen := make(map[LLMQType]struct{}, len(p.LLMQs))
	for i := range p.LLMQs {
		q := &p.LLMQs[i]
		if err := validateLLMQ(p.Name, q); err != nil {
			return err
		}
		if _, ok := seen[q.Type]; ok {
			str := fmt.Sprintf("network %s: quorum %v configured more than "+
				"once", p.Name, q.Type)
			return configError(ErrDuplicateLLMQ, str)
		}
		seen[q.Type] = struct{}{}
	}

	if _, ok := seen[p.ChainLocksLLMQ]; !ok {
		str := fmt.Sprintf("network %s: chain locks quorum %v is not "+
			"configured", p.Name, p.ChainLocksLLMQ)
		return configError(ErrUnknownLLMQ, str)
	}
	if t, ok := p.InstantSendQuorum(); ok {
		if _, ok := seen[t]; !ok {
			str := fmt.Sprintf("network %s: instant send quorum %v is not "+
				"configured", p.Name, t)
			return configError(ErrUnknownLLMQ, str)
		}
	}
	return nil
}

func (p *Params) validateEpochs() error {
	if len(p.Epochs) == 0 {
		str := fmt.Sprintf("network %s: no epochs defined", p.Name)
		return configError(ErrMissingGenesisEpoch, str)
	}
	genesis := &p.Epochs[0]
	if genesis.Height != 0 || genesis.PowTargetSpacing <= 0 ||
		genesis.MasternodeCollateral <= 0 ||
		genesis.AllowMinDifficultyBlocks == nil ||
		genesis.MinPeerProtoVersion == 0 || genesis.LLMQs == nil {

		str := fmt.Sprintf("network %s: genesis epoch %q must be at height 0 "+
			"and set every constant", p.Name, genesis.Name)
		return configError(ErrMissingGenesisEpoch, str)
	}

	for i := range p.Epochs {
		e := &p.Epochs[i]
		if i > 0 && e.Height <= p.Epochs[i-1].Height {
			str := fmt.Sprintf("network %s: epoch %q at height %d does not "+
				"follow epoch %q at height %d", p.Name, e.Name, e.Height,
				p.Epochs[i-1].Name, p.Epochs[i-1].Height)
			return configError(ErrEpochOrder, str)
		}
		for _, t := range e.LLMQs {
			if _, ok := p.LLMQ(t); !ok {
				str := fmt.Sprintf("network %s: epoch %q schedules "+
					"unconfigured quorum %v", p.Name, e.Name, t)
				return configError(ErrUnknownLLMQ, str)
			}
		}
	}
	return nil
}

// Validate ensures the network parameters satisfy every invariant of the
// parameter table and resolves the epoch constants.  Parameters that fail
// validation must never be used.
func (p *Params) Validate() error {
	if err := p.validateDeployments(); err != nil {
		return err
	}
	if err := p.validateLLMQs(); err != nil {
		return err
	}
	if err := p.validateEpochs(); err != nil {
		return err
	}
	p.resolvedEpochs = resolveEpochs(p.Epochs)
	return nil
}

// mustValidate validates the provided network parameters and panics when they
// are invalid.  It must only be used with the hard-coded networks.
func mustValidate(params *Params) *Params {
	if err := params.Validate(); err != nil {
		panic(fmt.Sprintf("invalid network parameters: %v", err))
	}
	return params
}

func init() {
	for _, params := range []*Params{MainNetParams(), TestNetParams(),
		RegNetParams()} {

		mustValidate(params)
	}
}
