// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math"
	"time"
)

// TestNetParams returns the network parameters for the test network.
func TestNetParams() *Params {
	llmqs := mainNetLLMQs()
	llmqs = append(llmqs, LLMQParams{
		Type:                     LLMQ5_60,
		Name:                     "llmq_5_60",
		Size:                     5,
		MinSize:                  3,
		Threshold:                3,
		DKGInterval:              24,
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     10,
		DKGMiningWindowEnd:       18,
		DKGBadVotesThreshold:     2,
		SigningActiveQuorumCount: 2,
		KeepOldConnections:       3,
	})

	return mustValidate(&Params{
		Name:        "testnet",
		GenesisHash: newHashFromStr("00000f3b4c0e2ca4e3f6d3a0a35ba4d7b4c3c7df2e3e8c5d7c2b1f0a9e8d7c61"),

		RuleChangeActivationThreshold: 1512, // 75% for testchains
		MinerConfirmationWindow:       2016,
		Deployments: [DefinedDeployments]Deployment{
			DeploymentTestDummy: {
				ID:         DeploymentTestDummy,
				BitNumber:  27,
				StartTime:  1199145601, // January 1, 2008
				ExpireTime: 1230767999, // December 31, 2008
			},
			DeploymentCSV: {
				ID:         DeploymentCSV,
				BitNumber:  0,
				StartTime:  1516406400, // January 20, 2018
				ExpireTime: 1547942400, // January 20, 2019
			},
			DeploymentDIP0001: {
				ID:         DeploymentDIP0001,
				BitNumber:  1,
				StartTime:  1516406400, // January 20, 2018
				ExpireTime: 1547942400, // January 20, 2019
				WindowSize: 100,
				Threshold:  50, // 50% of 100
			},
			DeploymentBIP147: {
				ID:         DeploymentBIP147,
				BitNumber:  2,
				StartTime:  1590000000, // May 20, 2020
				ExpireTime: math.MaxInt64,
				WindowSize: 100,
				Threshold:  50, // 50% of 100
			},
			DeploymentDIP0003: {
				ID:         DeploymentDIP0003,
				BitNumber:  3,
				StartTime:  1590000000, // May 20, 2020
				ExpireTime: math.MaxInt64,
				WindowSize: 100,
				Threshold:  50, // 50% of 100
			},
			DeploymentDIP0008: {
				ID:         DeploymentDIP0008,
				BitNumber:  4,
				StartTime:  1590000000, // May 20, 2020
				ExpireTime: math.MaxInt64,
				WindowSize: 100,
				Threshold:  50, // 50% of 100
			},
		},

		Epochs: []Epoch{{
			Name:                     "genesis",
			Height:                   0,
			PowTargetSpacing:         150 * time.Second,
			MasternodeCollateral:     1000,
			AllowMinDifficultyBlocks: boolPtr(true),
			MinPeerProtoVersion:      70013,
			LLMQs:                    []LLMQType{},
		}, {
			Name:                "hf5",
			Height:              4001,
			MinPeerProtoVersion: 70019,
			LLMQs:               []LLMQType{LLMQ50_60, LLMQ400_60, LLMQ5_60},
		}, {
			Name:                 "hf6",
			Height:               6001,
			PowTargetSpacing:     60 * time.Second,
			MasternodeCollateral: 10000,
		}, {
			Name:                "hf8",
			Height:              8001,
			MinPeerProtoVersion: 70020,
			LLMQs:               []LLMQType{LLMQ10_60, LLMQ30_80, LLMQ5_60},
		}},
		LLMQs:          llmqs,
		ChainLocksLLMQ: LLMQ10_60,

		// No instant send quorum is configured on the test network.
		InstantSendLLMQ: nil,

		DIP0003Height:                  4001,
		DIP0006EnforcementHeight:       4100,
		DIP0008Height:                  8001,
		MasternodeMinimumConfirmations: 1,
		QuorumConfirmations:            2,
	})
}
