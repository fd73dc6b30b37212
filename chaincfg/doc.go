// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines chain configuration parameters.
//
// In addition to the main Alterdot network, there also exists two standard
// networks: regression test and testnet.  Development networks may be created
// at runtime from an explicit DevNetConfig.  These networks are incompatible
// with each other and software should handle errors where input intended for
// one network is used on an application instance running on a different
// network.
//
// Each network defines the version bits deployments that may activate through
// miner signalling, the long-living masternode quorum (LLMQ) types and their
// distributed key generation schedule, and an ordered sequence of hard fork
// epochs.  The epoch dependent constants that apply at a given height are
// selected with ActiveEpoch:
//
//	params := chaincfg.MainNetParams()
//	epoch := params.ActiveEpoch(height)
//	fmt.Println(epoch.Name, epoch.PowTargetSpacing, epoch.MasternodeCollateral)
//
// Every parameter table is validated before use.  The standard networks are
// validated when the package is initialized and cause a panic when they are
// invalid.
package chaincfg
