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

// regNetLLMQs returns the quorum types of the regression test network.  They
// are small enough to run full DKG sessions in tests.
func regNetLLMQs() []LLMQParams {
	return []LLMQParams{{
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
	}, {
		Type:                     LLMQ10_60,
		Name:                     "llmq_10_60",
		Size:                     10,
		MinSize:                  7,
		Threshold:                6,
		DKGInterval:              24,
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     10,
		DKGMiningWindowEnd:       18,
		DKGBadVotesThreshold:     7,
		SigningActiveQuorumCount: 2,
		KeepOldConnections:       3,
	}}
}

// RegNetParams returns the network parameters for the regression test network.
// This should not be confused with the public test network or the simulation
// test network.  The purpose of this network is primarily for unit tests and
// RPC server tests.  On the other hand, the simulation test network is
// intended for full integration tests between different applications such as
// wallets, voting service providers, mining pools, block explorers, and other
// services that build on the core node.
func RegNetParams() *Params {
	return mustValidate(&Params{
		Name:        "regnet",
		GenesisHash: newHashFromStr("2ced94b4ae95bba344cfa043268732d230649c640f92dce2d9518823d3057cb0"),

		// Consensus rule change deployments.
		RuleChangeActivationThreshold: 108, // 75% of MinerConfirmationWindow
		MinerConfirmationWindow:       144,
		Deployments: [DefinedDeployments]Deployment{
			DeploymentTestDummy: {
				ID:         DeploymentTestDummy,
				BitNumber:  27,
				StartTime:  0,
				ExpireTime: math.MaxInt64,
			},
			DeploymentCSV: {
				ID:         DeploymentCSV,
				BitNumber:  0,
				StartTime:  0,
				ExpireTime: math.MaxInt64,
			},
			DeploymentDIP0001: {
				ID:         DeploymentDIP0001,
				BitNumber:  1,
				StartTime:  0,
				ExpireTime: math.MaxInt64,
				WindowSize: 100,
				Threshold:  50, // 50% of 100
			},
			DeploymentBIP147: {
				ID:         DeploymentBIP147,
				BitNumber:  2,
				StartTime:  0,
				ExpireTime: math.MaxInt64,
				WindowSize: 100,
				Threshold:  50, // 50% of 100
			},
			DeploymentDIP0003: {
				ID:         DeploymentDIP0003,
				BitNumber:  3,
				StartTime:  0,
				ExpireTime: math.MaxInt64,
				WindowSize: 10,
				Threshold:  8, // 80% of 10
			},
			DeploymentDIP0008: {
				ID:         DeploymentDIP0008,
				BitNumber:  4,
				StartTime:  0,
				ExpireTime: math.MaxInt64,
				WindowSize: 10,
				Threshold:  8, // 80% of 10
			},
		},

		Epochs: []Epoch{{
			Name:                     "genesis",
			Height:                   0,
			PowTargetSpacing:         150 * time.Second,
			MasternodeCollateral:     1000,
			AllowMinDifficultyBlocks: boolPtr(true),
			MinPeerProtoVersion:      70015,
			LLMQs:                    []LLMQType{LLMQ5_60},
		}, {
			Name:                 "hf6",
			Height:               201,
			PowTargetSpacing:     60 * time.Second,
			MasternodeCollateral: 10000,
		}, {
			Name:                "hf8",
			Height:              401,
			MinPeerProtoVersion: 70020,
			LLMQs:               []LLMQType{LLMQ5_60, LLMQ10_60},
		}},
		LLMQs:           regNetLLMQs(),
		ChainLocksLLMQ:  LLMQ5_60,
		InstantSendLLMQ: llmqTypePtr(LLMQ5_60),

		DIP0003Height:                  2,
		DIP0006EnforcementHeight:       2,
		DIP0008Height:                  401,
		MasternodeMinimumConfirmations: 1,
		QuorumConfirmations:            2,
	})
}
