// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"fmt"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

const (
	// VersionBitsTopBits is the value the top three bits of a block version
	// must have in order for the block to signal for deployments via version
	// bits.
	VersionBitsTopBits int32 = 0x20000000

	// VersionBitsTopMask is the bitmask used to extract the top three bits
	// of a block version.
	VersionBitsTopMask int32 = -0x20000000 // 0xe0000000

	// VersionBitsNumBits is the total number of bits available for
	// deployments.  Bit 28 and above overlap the top bits and are never
	// assigned.
	VersionBitsNumBits = 29

	// VersionBitsReservedBit is the lowest bit that may never be assigned to
	// a deployment.
	VersionBitsReservedBit = 28
)

// DeploymentID identifies a consensus rule change that is activated through
// version bits signalling.  The set of deployments is closed and known at
// compile time.
type DeploymentID uint8

// These constants define the known deployments.
const (
	// DeploymentTestDummy is a dummy deployment used for testing purposes.
	DeploymentTestDummy DeploymentID = iota

	// DeploymentCSV is the deployment of BIP0068, BIP0112, and BIP0113.
	DeploymentCSV

	// DeploymentDIP0001 is the deployment of DIP0001 and lower transaction
	// fees.
	DeploymentDIP0001

	// DeploymentBIP147 is the deployment of BIP0147 (NULLDUMMY).
	DeploymentBIP147

	// DeploymentDIP0003 is the deployment of DIP0002 and DIP0003 (special
	// transactions and deterministic masternode lists).
	DeploymentDIP0003

	// DeploymentDIP0008 is the deployment of chain lock enforcement.
	DeploymentDIP0008

	// DefinedDeployments is the number of currently defined deployments.
	// It MUST be the last entry.
	DefinedDeployments
)

// deploymentIDStrings is a map of DeploymentID values back to their constant
// names for pretty printing.
var deploymentIDStrings = map[DeploymentID]string{
	DeploymentTestDummy: "testdummy",
	DeploymentCSV:       "csv",
	DeploymentDIP0001:   "dip0001",
	DeploymentBIP147:    "bip147",
	DeploymentDIP0003:   "dip0003",
	DeploymentDIP0008:   "dip0008",
}

// String returns the DeploymentID as a human-readable name.
func (id DeploymentID) String() string {
	if s := deploymentIDStrings[id]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown DeploymentID (%d)", uint8(id))
}

// Deployment defines details related to a specific consensus rule change that
// is signalled for by miners via version bits.  This is part of BIP0009.
type Deployment struct {
	// ID identifies the deployment.
	ID DeploymentID

	// BitNumber defines the specific bit number within the block version
	// this particular soft-fork deployment refers to.
	BitNumber uint8

	// StartTime is the median block time after which signalling for the
	// deployment starts.
	StartTime uint64

	// ExpireTime is the median block time after which the attempted
	// deployment expires.
	ExpireTime uint64

	// WindowSize is the number of blocks in each confirmation window.  Zero
	// means the network MinerConfirmationWindow applies.
	WindowSize uint32

	// Threshold is the number of blocks within a window that must signal
	// in order to lock in the deployment.  Zero means the network
	// RuleChangeActivationThreshold applies.
	Threshold uint32
}

// Mask returns the block version bitmask of the deployment.
func (d *Deployment) Mask() int32 {
	return 1 << d.BitNumber
}

// IsDisabled returns whether the deployment can never reach the started state
// because it expires as soon as it starts.
func (d *Deployment) IsDisabled() bool {
	return d.StartTime >= d.ExpireTime
}

// LLMQType identifies a long-living masternode quorum type.  The set of types
// is closed and known at compile time.
type LLMQType uint8

// These constants define the known quorum types.  The values are part of the
// consensus encoding of quorum commitments and must not change.
const (
	// LLMQ50_60 has 50 members and a 30 (60%) threshold, one per hour.
	LLMQ50_60 LLMQType = 1

	// LLMQ400_60 has 400 members and a 240 (60%) threshold, one every 12
	// hours.
	LLMQ400_60 LLMQType = 2

	// LLMQ400_85 has 400 members and a 340 (85%) threshold, one every 24
	// hours.
	LLMQ400_85 LLMQType = 3

	// LLMQ10_60 has 10 members and a 6 (60%) threshold, one every 2 hours.
	LLMQ10_60 LLMQType = 4

	// LLMQ30_80 has 30 members and a 24 (80%) threshold, one every 16 hours.
	LLMQ30_80 LLMQType = 6

	// LLMQ5_60 has 5 members and a 3 (60%) threshold.  It is only used on
	// test networks.
	LLMQ5_60 LLMQType = 100
)

// String returns the LLMQType as a human-readable name.
func (t LLMQType) String() string {
	switch t {
	case LLMQ50_60:
		return "llmq_50_60"
	case LLMQ400_60:
		return "llmq_400_60"
	case LLMQ400_85:
		return "llmq_400_85"
	case LLMQ10_60:
		return "llmq_10_60"
	case LLMQ30_80:
		return "llmq_30_80"
	case LLMQ5_60:
		return "llmq_5_60"
	}
	return fmt.Sprintf("Unknown LLMQType (%d)", uint8(t))
}

// IsKnown returns whether the quorum type is one of the defined types.
func (t LLMQType) IsKnown() bool {
	switch t {
	case LLMQ50_60, LLMQ400_60, LLMQ400_85, LLMQ10_60, LLMQ30_80, LLMQ5_60:
		return true
	}
	return false
}

// LLMQParams configures a long-living masternode quorum type and its
// distributed key generation.
type LLMQParams struct {
	// Type identifies the quorum type.
	Type LLMQType

	// Name is only used in logging and user interfaces.
	Name string

	// Size is the number of members of the quorum.
	Size int

	// MinSize is the minimum number of valid members after the DKG.  No
	// commitment can be created with fewer valid members.
	MinSize int

	// Threshold is the number of members required to recover a threshold
	// signature.
	Threshold int

	// DKGInterval is the number of blocks between the start of two DKG
	// sessions.
	DKGInterval int64

	// DKGPhaseBlocks is the number of blocks each DKG phase lasts.
	DKGPhaseBlocks int64

	// DKGMiningWindowStart is the offset within the DKG interval, inclusive,
	// from which (possibly null) commitments may be mined.
	DKGMiningWindowStart int64

	// DKGMiningWindowEnd is the offset within the DKG interval, inclusive,
	// after which non-null commitments are no longer accepted.
	DKGMiningWindowEnd int64

	// DKGBadVotesThreshold is the number of distinct members that must
	// complain about a member for it to be considered bad by everyone.
	DKGBadVotesThreshold int

	// SigningActiveQuorumCount is the number of quorums considered active
	// for signing sessions.
	SigningActiveQuorumCount int

	// KeepOldConnections is the number of retired quorums for which
	// connections are kept for inter-quorum communication.
	KeepOldConnections int
}

// DKGPhaseCount is the number of DKG phases preceding the mining window.
const DKGPhaseCount = 6

// Epoch describes the constants that change at a hard fork.  Zero and nil
// fields mean the value of the previous epoch carries over.  The first epoch
// of a network must be at height zero and must set every field.
type Epoch struct {
	// Name is a human-readable identifier of the hard fork.
	Name string

	// Height is the first block height the epoch applies to.
	Height int64

	// PowTargetSpacing is the desired amount of time to generate each
	// block.
	PowTargetSpacing time.Duration

	// MasternodeCollateral is the amount, in whole coins, a masternode must
	// lock as collateral.
	MasternodeCollateral int64

	// AllowMinDifficultyBlocks defines whether blocks may be mined at the
	// minimum difficulty once enough time has passed without a block.
	AllowMinDifficultyBlocks *bool

	// MinPeerProtoVersion is the oldest protocol version accepted from
	// peers.
	MinPeerProtoVersion uint32

	// LLMQs is the set of quorum types that run DKG sessions.
	LLMQs []LLMQType
}

// EpochConstants is the fully resolved set of epoch dependent constants that
// apply at a given height.
type EpochConstants struct {
	Index                    int
	Name                     string
	Height                   int64
	PowTargetSpacing         time.Duration
	MasternodeCollateral     int64
	AllowMinDifficultyBlocks bool
	MinPeerProtoVersion      uint32
	LLMQs                    []LLMQType
}

// Params defines an Alterdot network by its parameters.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// GenesisHash is the starting block hash.
	GenesisHash chainhash.Hash

	// RuleChangeActivationThreshold is the default number of blocks in a
	// confirmation window that must signal for a deployment to lock in.  It
	// also defines the warning threshold for unknown deployment bits.
	RuleChangeActivationThreshold uint32

	// MinerConfirmationWindow is the default number of blocks in each
	// threshold state retarget window.
	MinerConfirmationWindow uint32

	// Deployments define the specific consensus rule changes to be signalled
	// for, indexed by their ID.
	Deployments [DefinedDeployments]Deployment

	// Epochs is the ordered list of hard fork epochs.
	Epochs []Epoch

	// LLMQs defines every quorum type known to the network.
	LLMQs []LLMQParams

	// ChainLocksLLMQ is the quorum type used for chain locks.
	ChainLocksLLMQ LLMQType

	// InstantSendLLMQ is the quorum type used for instant send locks.  It is
	// nil when no instant send quorum is configured.
	InstantSendLLMQ *LLMQType

	// DIP0003Height is the height at which registration of deterministic
	// masternodes starts.
	DIP0003Height int64

	// DIP0006EnforcementHeight is the height from which DKG sessions are
	// run.
	DIP0006EnforcementHeight int64

	// DIP0008Height is the height at which chain lock context is enabled.
	DIP0008Height int64

	// MasternodeMinimumConfirmations is the number of confirmations the
	// collateral of a masternode requires.
	MasternodeMinimumConfirmations int64

	// QuorumConfirmations is the number of blocks on top of the block that
	// mined a quorum commitment before the quorum is used for signing.
	QuorumConfirmations int64

	// These parameters are only used on devnets.
	MinimumDifficultyBlocks int64
	HighSubsidyBlocks       int64
	HighSubsidyFactor       int64

	// resolvedEpochs is populated by Validate.
	resolvedEpochs []EpochConstants
}

// newHashFromStr converts the passed big-endian hex string into a
// chainhash.Hash.  It only differs from the one available in chainhash in that
// it panics on an error since it will only (and must only) be called with
// hard-coded, and therefore known good, hashes.
func newHashFromStr(hexStr string) chainhash.Hash {
	hash, err := chainhash.NewHashFromStr(hexStr)
	if err != nil {
		panic(err)
	}
	return *hash
}

// boolPtr returns a pointer to the passed bool for use in epoch records.
func boolPtr(b bool) *bool {
	return &b
}

// llmqTypePtr returns a pointer to the passed quorum type.
func llmqTypePtr(t LLMQType) *LLMQType {
	return &t
}

// Deployment returns the deployment with the given ID.
func (p *Params) Deployment(id DeploymentID) (*Deployment, bool) {
	if id >= DefinedDeployments {
		return nil, false
	}
	return &p.Deployments[id], true
}

// DeploymentWindow returns the confirmation window size of the deployment.
func (p *Params) DeploymentWindow(d *Deployment) uint32 {
	if d.WindowSize != 0 {
		return d.WindowSize
	}
	return p.MinerConfirmationWindow
}

// DeploymentThreshold returns the lock in threshold of the deployment.
func (p *Params) DeploymentThreshold(d *Deployment) uint32 {
	if d.Threshold != 0 {
		return d.Threshold
	}
	return p.RuleChangeActivationThreshold
}

// LLMQ returns the parameters of the given quorum type.
func (p *Params) LLMQ(t LLMQType) (*LLMQParams, bool) {
	for i := range p.LLMQs {
		if p.LLMQs[i].Type == t {
			return &p.LLMQs[i], true
		}
	}
	return nil, false
}

// InstantSendQuorum returns the quorum type used for instant send and whether
// one is configured.
func (p *Params) InstantSendQuorum() (LLMQType, bool) {
	if p.InstantSendLLMQ == nil {
		return 0, false
	}
	return *p.InstantSendLLMQ, true
}

// ActiveLLMQs returns the parameters of every quorum type that runs DKG
// sessions at the given height.  No quorum type is active before DIP0006 is
// enforced.
func (p *Params) ActiveLLMQs(height int64) []*LLMQParams {
	if height < p.DIP0006EnforcementHeight {
		return nil
	}
	epoch := p.ActiveEpoch(height)
	active := make([]*LLMQParams, 0, len(epoch.LLMQs))
	for _, t := range epoch.LLMQs {
		if params, ok := p.LLMQ(t); ok {
			active = append(active, params)
		}
	}
	return active
}
