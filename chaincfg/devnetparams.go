// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"fmt"
)

// DevNetConfig holds the overrides that may be applied to a development
// network.  It is the only way to customize network parameters at runtime.
type DevNetConfig struct {
	// Name is the name of the devnet.  The resulting network is named
	// "devnet-<Name>".
	Name string

	// MinimumDifficultyBlocks is the number of initial blocks that may be
	// mined at the minimum difficulty.
	MinimumDifficultyBlocks int64

	// HighSubsidyBlocks is the number of initial blocks that receive a
	// subsidy multiplied by HighSubsidyFactor.
	HighSubsidyBlocks int64
	HighSubsidyFactor int64

	// LLMQChainLocks overrides the quorum type used for chain locks when
	// set.
	LLMQChainLocks *LLMQType

	// LLMQInstantSend overrides the quorum type used for instant send when
	// set.
	LLMQInstantSend *LLMQType
}

// DevNetParams returns the network parameters for a development network built
// from the regression test network and the provided overrides.  An error
// wrapping ErrInvalidDevNet or another ErrorKind is returned when the
// resulting parameters are invalid.
func DevNetParams(cfg DevNetConfig) (*Params, error) {
	if cfg.Name == "" {
		return nil, configError(ErrInvalidDevNet, "devnet name must not be empty")
	}
	if cfg.MinimumDifficultyBlocks < 0 || cfg.HighSubsidyBlocks < 0 {
		str := fmt.Sprintf("devnet %s: negative minimum difficulty blocks %d "+
			"or high subsidy blocks %d", cfg.Name, cfg.MinimumDifficultyBlocks,
			cfg.HighSubsidyBlocks)
		return nil, configError(ErrInvalidDevNet, str)
	}
	factor := cfg.HighSubsidyFactor
	if factor == 0 {
		factor = 1
	}
	if factor < 0 {
		str := fmt.Sprintf("devnet %s: negative high subsidy factor %d",
			cfg.Name, cfg.HighSubsidyFactor)
		return nil, configError(ErrInvalidDevNet, str)
	}

	// Start from a fresh copy of the regression test network so the
	// overrides never leak into it.
	params := RegNetParams()
	params.Name = "devnet-" + cfg.Name
	params.Epochs = append([]Epoch(nil), params.Epochs...)
	params.LLMQs = append([]LLMQParams(nil), params.LLMQs...)
	params.MinimumDifficultyBlocks = cfg.MinimumDifficultyBlocks
	params.HighSubsidyBlocks = cfg.HighSubsidyBlocks
	params.HighSubsidyFactor = factor
	if cfg.LLMQChainLocks != nil {
		params.ChainLocksLLMQ = *cfg.LLMQChainLocks
	}
	if cfg.LLMQInstantSend != nil {
		params.InstantSendLLMQ = llmqTypePtr(*cfg.LLMQInstantSend)
	}
	params.resolvedEpochs = nil

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}
