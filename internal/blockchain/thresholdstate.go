// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2017-2023 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"sync"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/container/lru"
)

// thresholdCacheSize is the maximum number of window states cached per
// deployment.  Evicted states are transparently recomputed.
const thresholdCacheSize = 2048

// ThresholdState define the various threshold states used when voting on
// consensus changes.
type ThresholdState byte

// These constants are used to identify specific threshold states.
const (
	// ThresholdInvalid is an invalid state and exists for use as the zero value
	// in error paths.
	ThresholdInvalid ThresholdState = iota

	// ThresholdDefined is the initial state for each deployment and is the
	// state for the genesis block has by definition for all deployments.
	ThresholdDefined

	// ThresholdStarted is the state for a deployment once its start time has
	// been reached.
	ThresholdStarted

	// ThresholdLockedIn is the state for a deployment during the retarget
	// period which is after the ThresholdStarted state period and the number of
	// blocks that have signalled for the deployment equal or exceed the
	// required number of blocks for the deployment.
	ThresholdLockedIn

	// ThresholdActive is the state for a deployment for all blocks after a
	// retarget period in which the deployment was in the ThresholdLockedIn
	// state.
	ThresholdActive

	// ThresholdFailed is the state for a deployment once its expiration time
	// has been reached and it did not reach the ThresholdLockedIn state.
	ThresholdFailed
)

// thresholdStateStrings is a map of ThresholdState values back to their
// constant names for pretty printing.
var thresholdStateStrings = map[ThresholdState]string{
	ThresholdInvalid:  "ThresholdInvalid",
	ThresholdDefined:  "ThresholdDefined",
	ThresholdStarted:  "ThresholdStarted",
	ThresholdLockedIn: "ThresholdLockedIn",
	ThresholdActive:   "ThresholdActive",
	ThresholdFailed:   "ThresholdFailed",
}

// String returns the ThresholdState as a human-readable name.
func (t ThresholdState) String() string {
	if s := thresholdStateStrings[t]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ThresholdState (%d)", int(t))
}

// ThresholdStateTuple contains the state of a deployment for a confirmation
// window along with the first height at which the state applied.
type ThresholdStateTuple struct {
	// State contains the current ThresholdState.
	State ThresholdState

	// SinceHeight is the height of the first block of the window the state
	// was first reached in.
	SinceHeight int64
}

// thresholdStateTupleStrings is a map of ThresholdState values back to their
// constant names for pretty printing.
var thresholdStateTupleStrings = map[ThresholdState]string{
	ThresholdInvalid:  "invalid",
	ThresholdDefined:  "defined",
	ThresholdStarted:  "started",
	ThresholdLockedIn: "lockedin",
	ThresholdActive:   "active",
	ThresholdFailed:   "failed",
}

// String returns the ThresholdStateTuple as a human-readable tuple.
func (t ThresholdStateTuple) String() string {
	if s := thresholdStateTupleStrings[t.State]; s != "" {
		return fmt.Sprintf("%v (since: %d)", s, t.SinceHeight)
	}
	return "invalid"
}

// StoredThresholdState is the persisted form of the threshold state of a
// deployment for the window that ends with the identified block.
type StoredThresholdState struct {
	ID     chaincfg.DeploymentID
	Height int64
	Hash   chainhash.Hash
	State  ThresholdStateTuple
}

// ThresholdStateStore persists calculated threshold states so they can be
// reloaded without replaying the full chain history.
type ThresholdStateStore interface {
	// PutThresholdStates stores the provided states.
	PutThresholdStates(states []StoredThresholdState) error

	// ThresholdStates returns every stored state.
	ThresholdStates() ([]StoredThresholdState, error)

	// DeleteThresholdStatesAbove removes every stored state for a window
	// that ends above the provided height.
	DeleteThresholdStatesAbove(height int64) error
}

// cachedState is a threshold state cache entry.  The height of the window
// boundary block is kept so entries can be purged on reorg.
type cachedState struct {
	height int64
	state  ThresholdStateTuple
}

// deploymentInfo houses the cached threshold states of a deployment along with
// the effective window parameters.
type deploymentInfo struct {
	deployment *chaincfg.Deployment
	window     int64
	threshold  int64
	cache      *lru.Map[chainhash.Hash, cachedState]
}

// VersionBits computes the BIP0009 threshold states of the deployments of a
// network.  States are cached by the hash of the last block of each window so
// competing chains never share entries.
//
// It is safe for concurrent access.
type VersionBits struct {
	mtx         sync.Mutex
	params      *chaincfg.Params
	store       ThresholdStateStore
	deployments [chaincfg.DefinedDeployments]deploymentInfo
	warned      *lru.Set[unknownBitKey]
}

// NewVersionBits returns a VersionBits instance for the provided network.  The
// store is optional.  When it is provided, previously persisted states are
// loaded into the caches.
func NewVersionBits(params *chaincfg.Params, store ThresholdStateStore) (*VersionBits, error) {
	vb := &VersionBits{
		params: params,
		store:  store,
		warned: lru.NewSet[unknownBitKey](unknownBitWarnCacheSize),
	}
	for i := range params.Deployments {
		d := &params.Deployments[i]
		vb.deployments[i] = deploymentInfo{
			deployment: d,
			window:     int64(params.DeploymentWindow(d)),
			threshold:  int64(params.DeploymentThreshold(d)),
			cache:      lru.NewMap[chainhash.Hash, cachedState](thresholdCacheSize),
		}
	}

	if store == nil {
		return vb, nil
	}
	stored, err := store.ThresholdStates()
	if err != nil {
		return nil, err
	}
	for i := range stored {
		s := &stored[i]
		if s.ID >= chaincfg.DefinedDeployments {
			log.Warnf("Ignoring stored threshold state for unknown deployment %d",
				uint8(s.ID))
			continue
		}
		info := &vb.deployments[s.ID]
		info.cache.Put(s.Hash, cachedState{height: s.Height, state: s.State})
	}
	log.Debugf("Loaded %d threshold states", len(stored))
	return vb, nil
}

// deploymentInfo returns the deployment info for the provided id.
func (vb *VersionBits) deploymentInfo(id chaincfg.DeploymentID) (*deploymentInfo, error) {
	if id >= chaincfg.DefinedDeployments {
		str := fmt.Sprintf("deployment ID %d does not exist", uint8(id))
		return nil, contextError(ErrUnknownDeploymentID, str)
	}
	return &vb.deployments[id], nil
}

// isSignalling returns whether the provided block version signals for the
// deployment with the given mask.
func isSignalling(version int32, mask int32) bool {
	return version&chaincfg.VersionBitsTopMask == chaincfg.VersionBitsTopBits &&
		version&mask != 0
}

// nextThresholdState returns the current rule change threshold state for the
// block AFTER the given node and deployment.  The cache is used to ensure the
// threshold states for previous windows are only calculated once.  Newly
// calculated states are appended to the returned slice so they can be
// persisted.
//
// This function MUST be called with the version bits lock held.
func (vb *VersionBits) nextThresholdState(prevNode *BlockNode, info *deploymentInfo) (ThresholdStateTuple, []StoredThresholdState) {
	// The threshold state for the window that contains the genesis block is
	// defined by definition.
	defined := ThresholdStateTuple{State: ThresholdDefined}
	if prevNode == nil {
		return defined, nil
	}

	// Get the ancestor that is the last block of the previous confirmation
	// window in order to get its threshold state.  This can be done because
	// the state is the same for all blocks within a given window.
	window := info.window
	prevNode = prevNode.Ancestor(prevNode.height - (prevNode.height+1)%window)

	// Iterate backwards through each of the previous confirmation windows
	// to find the most recently cached threshold state.
	beginTime := info.deployment.StartTime
	cache := info.cache
	var neededStates []*BlockNode
	var newStates []StoredThresholdState
	for prevNode != nil {
		// Nothing more to do if the state of the block is already
		// cached.
		if _, ok := cache.Get(prevNode.hash); ok {
			break
		}

		// The start and expiration times are based on the median block
		// time, so calculate it now.
		medianTime := prevNode.CalcPastMedianTime()

		// The state is simply defined if the start time hasn't been reached
		// yet.
		if uint64(medianTime.Unix()) < beginTime {
			cache.Put(prevNode.hash, cachedState{prevNode.height, defined})
			newStates = append(newStates, StoredThresholdState{
				ID:     info.deployment.ID,
				Height: prevNode.height,
				Hash:   prevNode.hash,
				State:  defined,
			})
			break
		}

		// Add this node to the list of nodes that need the state
		// calculated and cached.
		neededStates = append(neededStates, prevNode)

		// Get the ancestor that is the last block of the previous
		// confirmation window.
		prevNode = prevNode.RelativeAncestor(window)
	}

	// Start with the threshold state for the most recent confirmation
	// window that has a cached state.
	stateTuple := defined
	if prevNode != nil {
		entry, ok := cache.Get(prevNode.hash)
		if !ok {
			// A cache entry is guaranteed to exist due to the above code and
			// the code below relies on it, so assert the assumption.
			panicf("threshold state cache lookup failed for %v", prevNode.hash)
		}
		stateTuple = entry.state
	}

	// Since each threshold state depends on the state of the previous
	// window, iterate starting from the oldest unknown window.
	endTime := info.deployment.ExpireTime
	mask := info.deployment.Mask()
	for neededNum := len(neededStates) - 1; neededNum >= 0; neededNum-- {
		prevNode := neededStates[neededNum]
		medianTimeUnix := uint64(prevNode.CalcPastMedianTime().Unix())

		nextState := stateTuple.State
		switch stateTuple.State {
		case ThresholdDefined:
			// The deployment of the rule change fails if it expires
			// before it is accepted and locked in.
			if medianTimeUnix >= endTime {
				nextState = ThresholdFailed
				break
			}

			// The state for the rule moves to the started state
			// once its start time has been reached (and it hasn't
			// already expired per the above).
			if medianTimeUnix >= beginTime {
				nextState = ThresholdStarted
			}

		case ThresholdStarted:
			// The deployment of the rule change fails if it expires
			// before it is accepted and locked in.  This takes precedence
			// over locking in during the final window.
			if medianTimeUnix >= endTime {
				nextState = ThresholdFailed
				break
			}

			// At this point, the rule change is still being signalled
			// for, so iterate backwards through the confirmation window
			// to count all of the signalling blocks in it.
			var count int64
			countNode := prevNode
			for i := int64(0); i < window && countNode != nil; i++ {
				if isSignalling(countNode.version, mask) {
					count++
				}
				countNode = countNode.parent
			}

			// The state is locked in if the number of blocks in the
			// window that signalled for the rule change meets the
			// activation threshold.
			if count >= info.threshold {
				nextState = ThresholdLockedIn
			}

		case ThresholdLockedIn:
			// The new rule becomes active when its previous state
			// was locked in.
			nextState = ThresholdActive

		// Nothing to do if the previous state is active or failed since
		// they are both terminal states.
		case ThresholdActive:
		case ThresholdFailed:
		}

		if nextState != stateTuple.State {
			stateTuple = ThresholdStateTuple{
				State:       nextState,
				SinceHeight: prevNode.height + 1,
			}
			log.Debugf("Deployment %v moved to %v at height %d",
				info.deployment.ID, nextState, prevNode.height+1)
		}

		// Update the cache to avoid recalculating the state in the
		// future.
		cache.Put(prevNode.hash, cachedState{prevNode.height, stateTuple})
		newStates = append(newStates, StoredThresholdState{
			ID:     info.deployment.ID,
			Height: prevNode.height,
			Hash:   prevNode.hash,
			State:  stateTuple,
		})
	}

	return stateTuple, newStates
}

// deploymentState returns the threshold state of the deployment for the block
// AFTER the provided node and persists newly calculated states.
//
// This function MUST be called with the version bits lock held.
func (vb *VersionBits) deploymentState(prevNode *BlockNode, info *deploymentInfo) (ThresholdStateTuple, error) {
	state, newStates := vb.nextThresholdState(prevNode, info)
	if vb.store != nil && len(newStates) > 0 {
		if err := vb.store.PutThresholdStates(newStates); err != nil {
			return ThresholdStateTuple{}, err
		}
	}
	return state, nil
}

// NextState returns the current rule change threshold state of the given
// deployment ID for the block AFTER the provided node.
//
// This function is safe for concurrent access.
func (vb *VersionBits) NextState(prevNode *BlockNode, id chaincfg.DeploymentID) (ThresholdStateTuple, error) {
	info, err := vb.deploymentInfo(id)
	if err != nil {
		return ThresholdStateTuple{}, err
	}

	vb.mtx.Lock()
	state, err := vb.deploymentState(prevNode, info)
	vb.mtx.Unlock()
	return state, err
}

// StateAt returns the threshold state of the given deployment ID for the
// provided block.
//
// This function is safe for concurrent access.
func (vb *VersionBits) StateAt(node *BlockNode, id chaincfg.DeploymentID) (ThresholdStateTuple, error) {
	return vb.NextState(node.parent, id)
}

// StateSinceHeight returns the height of the first block of the window in
// which the current state of the deployment was reached for the block AFTER
// the provided node.
//
// This function is safe for concurrent access.
func (vb *VersionBits) StateSinceHeight(prevNode *BlockNode, id chaincfg.DeploymentID) (int64, error) {
	state, err := vb.NextState(prevNode, id)
	if err != nil {
		return 0, err
	}
	return state.SinceHeight, nil
}

// IsActive returns whether the deployment is active for the block AFTER the
// provided node.
//
// This function is safe for concurrent access.
func (vb *VersionBits) IsActive(prevNode *BlockNode, id chaincfg.DeploymentID) (bool, error) {
	state, err := vb.NextState(prevNode, id)
	if err != nil {
		return false, err
	}
	return state.State == ThresholdActive, nil
}

// WindowStatistics describes the signalling progress of a deployment within
// the confirmation window of a block.
type WindowStatistics struct {
	// Period is the number of blocks in the confirmation window.
	Period int64

	// Threshold is the number of signalling blocks required to lock in.
	Threshold int64

	// Elapsed is the number of blocks of the window up to and including the
	// block.
	Elapsed int64

	// Count is the number of signalling blocks among the elapsed blocks.
	Count int64

	// Possible indicates whether the threshold can still be reached within
	// the window.
	Possible bool
}

// Statistics returns the signalling statistics of the given deployment for the
// confirmation window the provided block is part of.
//
// This function is safe for concurrent access.
func (vb *VersionBits) Statistics(node *BlockNode, id chaincfg.DeploymentID) (WindowStatistics, error) {
	info, err := vb.deploymentInfo(id)
	if err != nil {
		return WindowStatistics{}, err
	}

	stats := WindowStatistics{
		Period:    info.window,
		Threshold: info.threshold,
		Elapsed:   node.height%info.window + 1,
	}
	mask := info.deployment.Mask()
	countNode := node
	for i := int64(0); i < stats.Elapsed && countNode != nil; i++ {
		if isSignalling(countNode.version, mask) {
			stats.Count++
		}
		countNode = countNode.parent
	}
	stats.Possible = stats.Period-stats.Threshold >= stats.Elapsed-stats.Count
	return stats, nil
}

// ComputeBlockVersion returns the block version a miner should use for the
// block AFTER the provided node.  It signals for every deployment that is
// started or locked in.
//
// This function is safe for concurrent access.
func (vb *VersionBits) ComputeBlockVersion(prevNode *BlockNode) (int32, error) {
	vb.mtx.Lock()
	defer vb.mtx.Unlock()
	return vb.computeBlockVersion(prevNode)
}

// computeBlockVersion returns the expected block version for the block AFTER
// the provided node.
//
// This function MUST be called with the version bits lock held.
func (vb *VersionBits) computeBlockVersion(prevNode *BlockNode) (int32, error) {
	version := chaincfg.VersionBitsTopBits
	for i := range vb.deployments {
		info := &vb.deployments[i]
		state, err := vb.deploymentState(prevNode, info)
		if err != nil {
			return 0, err
		}
		switch state.State {
		case ThresholdStarted, ThresholdLockedIn:
			version |= info.deployment.Mask()
		}
	}
	return version, nil
}

// PurgeAbove discards every cached and persisted threshold state for a window
// that ends above the provided height.  It must be called when the chain is
// reorganized to a tip at the provided height.
//
// This function is safe for concurrent access.
func (vb *VersionBits) PurgeAbove(height int64) error {
	vb.mtx.Lock()
	defer vb.mtx.Unlock()

	var purged int
	for i := range vb.deployments {
		cache := vb.deployments[i].cache
		for _, hash := range cache.Keys() {
			entry, ok := cache.Peek(hash)
			if ok && entry.height > height {
				cache.Delete(hash)
				purged++
			}
		}
	}
	log.Debugf("Purged %d threshold states above height %d", purged, height)

	if vb.store != nil {
		return vb.store.DeleteThresholdStatesAbove(height)
	}
	return nil
}
