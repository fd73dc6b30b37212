// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"time"
)

// mainNetLLMQs returns the quorum types of the main network.
func mainNetLLMQs() []LLMQParams {
	return []LLMQParams{{
		Type:                     LLMQ50_60,
		Name:                     "llmq_50_60",
		Size:                     50,
		MinSize:                  40,
		Threshold:                30,
		DKGInterval:              24, // one DKG per hour
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     10, // DKGPhaseBlocks * 5 = after finalization
		DKGMiningWindowEnd:       18,
		DKGBadVotesThreshold:     40,
		SigningActiveQuorumCount: 24, // a full day worth of LLMQs
		KeepOldConnections:       25,
	}, {
		Type:                     LLMQ400_60,
		Name:                     "llmq_400_60",
		Size:                     400,
		MinSize:                  300,
		Threshold:                240,
		DKGInterval:              24 * 12, // one DKG every 12 hours
		DKGPhaseBlocks:           4,
		DKGMiningWindowStart:     20,
		DKGMiningWindowEnd:       28,
		DKGBadVotesThreshold:     300,
		SigningActiveQuorumCount: 4, // two days worth of LLMQs
		KeepOldConnections:       5,
	}, {
		Type:                     LLMQ400_85,
		Name:                     "llmq_400_85",
		Size:                     400,
		MinSize:                  350,
		Threshold:                340,
		DKGInterval:              24 * 24, // one DKG every 24 hours
		DKGPhaseBlocks:           4,
		DKGMiningWindowStart:     20,
		DKGMiningWindowEnd:       48, // give it a larger mining window
		DKGBadVotesThreshold:     300,
		SigningActiveQuorumCount: 4, // four days worth of LLMQs
		KeepOldConnections:       5,
	}, {
		Type:                     LLMQ10_60,
		Name:                     "llmq_10_60",
		Size:                     10,
		MinSize:                  7,
		Threshold:                6,
		DKGInterval:              48, // one DKG every 2 hours
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     10,
		DKGMiningWindowEnd:       18,
		DKGBadVotesThreshold:     7,
		SigningActiveQuorumCount: 6,
		KeepOldConnections:       7,
	}, {
		Type:                     LLMQ30_80,
		Name:                     "llmq_30_80",
		Size:                     30,
		MinSize:                  26,
		Threshold:                24,
		DKGInterval:              24 * 16, // one DKG every 16 hours
		DKGPhaseBlocks:           4,
		DKGMiningWindowStart:     20,
		DKGMiningWindowEnd:       28,
		DKGBadVotesThreshold:     26,
		SigningActiveQuorumCount: 3,
		KeepOldConnections:       4,
	}}
}

// MainNetParams returns the network parameters for the main Alterdot network.
func MainNetParams() *Params {
	return mustValidate(&Params{
		Name:        "mainnet",
		GenesisHash: newHashFromStr("00000b9ca5a59b9a3a2f2c1b6b0d1e02d7b0bb1b1a4c59c0d2a1e4f6b9c3a711"),

		// Consensus rule change deployments.
		//
		// The miner confirmation window is defined as:
		//   target proof of work timespan / target proof of work spacing
		RuleChangeActivationThreshold: 3226, // 80% of MinerConfirmationWindow
		MinerConfirmationWindow:       4032,
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
				StartTime:  1524477600, // April 23, 2018
				ExpireTime: 1556013600, // April 23, 2019
			},
			DeploymentDIP0001: {
				ID:         DeploymentDIP0001,
				BitNumber:  1,
				StartTime:  1524477600, // April 23, 2018
				ExpireTime: 1556013600, // April 23, 2019
				WindowSize: 4032,
				Threshold:  3226, // 80% of 4032
			},
			DeploymentBIP147: {
				ID:         DeploymentBIP147,
				BitNumber:  2,
				StartTime:  1600000000, // September 13, 2020
				ExpireTime: 1631536000, // September 13, 2021
				WindowSize: 4032,
				Threshold:  3226, // 80% of 4032
			},
			DeploymentDIP0003: {
				ID:         DeploymentDIP0003,
				BitNumber:  3,
				StartTime:  1600000000, // September 13, 2020
				ExpireTime: 1631536000, // September 13, 2021
				WindowSize: 4032,
				Threshold:  3226, // 80% of 4032
			},
			DeploymentDIP0008: {
				ID:         DeploymentDIP0008,
				BitNumber:  4,
				StartTime:  1609459200, // January 1, 2021
				ExpireTime: 1640995200, // January 1, 2022
				WindowSize: 4032,
				Threshold:  3226, // 80% of 4032
			},
		},

		// Hard forks ordered from oldest to newest.  Each epoch starts at the
		// block after the hard fork height.
		Epochs: []Epoch{{
			Name:                     "genesis",
			Height:                   0,
			PowTargetSpacing:         150 * time.Second,
			MasternodeCollateral:     1000,
			AllowMinDifficultyBlocks: boolPtr(false),
			MinPeerProtoVersion:      70013,
			LLMQs:                    []LLMQType{},
		}, {
			Name:   "hf1",
			Height: 15001,
		}, {
			Name:                "hf2",
			Height:              60001,
			MinPeerProtoVersion: 70015,
		}, {
			Name:   "hf3",
			Height: 120001,
		}, {
			Name:   "hf4",
			Height: 180001,
		}, {
			Name:                "hf5",
			Height:              250001,
			MinPeerProtoVersion: 70019,
			LLMQs:               []LLMQType{LLMQ50_60, LLMQ400_60, LLMQ400_85},
		}, {
			Name:                 "hf6",
			Height:               320001,
			PowTargetSpacing:     60 * time.Second,
			MasternodeCollateral: 10000,
		}, {
			// Lite/core network mode.
			Name:   "hf7",
			Height: 400001,
			LLMQs:  []LLMQType{LLMQ50_60},
		}, {
			// Exit core mode and reactivate masternode functionality.
			Name:                "hf8",
			Height:              480001,
			MinPeerProtoVersion: 70020,
			LLMQs:               []LLMQType{LLMQ10_60, LLMQ30_80},
		}},
		LLMQs:           mainNetLLMQs(),
		ChainLocksLLMQ:  LLMQ30_80,
		InstantSendLLMQ: llmqTypePtr(LLMQ10_60),

		DIP0003Height:                  250001,
		DIP0006EnforcementHeight:       250100,
		DIP0008Height:                  480001,
		MasternodeMinimumConfirmations: 15,
		QuorumConfirmations:            8,
	})
}
