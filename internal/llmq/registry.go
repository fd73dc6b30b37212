// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package llmq

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/decred/dcrd/chaincfg/chainhash"
)

// historyMargin is the number of confirmed quorums per type kept in memory
// beyond the active and retained ones so that shallow reorgs can restore
// evicted quorums without reloading them.
const historyMargin = 16

// QuorumStore persists finalized quorums.
type QuorumStore interface {
	// PutQuorum stores a finalized quorum.
	PutQuorum(q *Quorum) error

	// Quorums returns the stored quorums of the given type ordered by
	// creation height.
	Quorums(t chaincfg.LLMQType) ([]*Quorum, error)

	// DeleteQuorumsAbove removes the quorums created above the provided
	// height.
	DeleteQuorumsAbove(height int64) error
}

// registrySnapshot is an immutable view of the active and retained quorums
// of every type.
type registrySnapshot struct {
	active   map[chaincfg.LLMQType][]*Quorum
	retained map[chaincfg.LLMQType][]*Quorum
}

// Registry tracks the active and retained quorums of every quorum type.
//
// A finalized quorum only becomes active once the block that mined its
// commitment has QuorumConfirmations confirmations.  The newest
// SigningActiveQuorumCount confirmed quorums of a type are active and the
// KeepOldConnections quorums before them are retained.  Readers never block:
// every change publishes a new snapshot.
type Registry struct {
	params *chaincfg.Params
	store  QuorumStore

	mtx     sync.Mutex
	tip     int64
	pending []*Quorum
	history map[chaincfg.LLMQType][]*Quorum

	snapshot atomic.Pointer[registrySnapshot]
}

// NewRegistry returns a registry for the provided network that persists
// quorums to the provided store, which may be nil.  Stored quorums are loaded
// and become active with the first call to ConnectTip.
func NewRegistry(params *chaincfg.Params, store QuorumStore) (*Registry, error) {
	r := &Registry{
		params:  params,
		store:   store,
		tip:     -1,
		history: make(map[chaincfg.LLMQType][]*Quorum),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	r.publish()
	return r, nil
}

// historyLimit returns the number of confirmed quorums kept in memory for
// the quorum type.
func historyLimit(params *chaincfg.LLMQParams) int {
	return params.SigningActiveQuorumCount + params.KeepOldConnections +
		historyMargin
}

// load populates the pending quorums from the store.
//
// This function MUST be called with the registry lock held.
func (r *Registry) load() error {
	r.pending = r.pending[:0]
	for t := range r.history {
		delete(r.history, t)
	}
	if r.store == nil {
		return nil
	}
	for i := range r.params.LLMQs {
		params := &r.params.LLMQs[i]
		quorums, err := r.store.Quorums(params.Type)
		if err != nil {
			return err
		}
		if limit := historyLimit(params); len(quorums) > limit {
			quorums = quorums[len(quorums)-limit:]
		}
		r.pending = append(r.pending, quorums...)
	}
	sortQuorums(r.pending)
	log.Debugf("Loaded %d quorums", len(r.pending))
	return nil
}

func sortQuorums(quorums []*Quorum) {
	sort.SliceStable(quorums, func(i, j int) bool {
		return quorums[i].CreationHeight < quorums[j].CreationHeight
	})
}

// confirmed returns whether the quorum has enough confirmations at the tip.
func (r *Registry) confirmed(q *Quorum) bool {
	return r.tip >= q.CreationHeight &&
		r.tip-q.CreationHeight+1 >= r.params.QuorumConfirmations
}

// promote moves every sufficiently confirmed pending quorum to the history
// of its type and publishes a new snapshot.
//
// This function MUST be called with the registry lock held.
func (r *Registry) promote() {
	var promoted int
	remaining := r.pending[:0]
	for _, q := range r.pending {
		if !r.confirmed(q) {
			remaining = append(remaining, q)
			continue
		}
		params, _ := r.params.LLMQ(q.Type)
		history := append(r.history[q.Type], q)
		if limit := historyLimit(params); len(history) > limit {
			history = append([]*Quorum(nil), history[len(history)-limit:]...)
		}
		r.history[q.Type] = history
		promoted++
		log.Debugf("Quorum %v of type %v created at height %d is active",
			q.QuorumHash, q.Type, q.CreationHeight)
	}
	for i := len(remaining); i < len(r.pending); i++ {
		r.pending[i] = nil
	}
	r.pending = remaining
	if promoted > 0 {
		r.publish()
	}
}

// publish builds and stores a new snapshot from the confirmed quorums.
//
// This function MUST be called with the registry lock held.
func (r *Registry) publish() {
	snap := &registrySnapshot{
		active:   make(map[chaincfg.LLMQType][]*Quorum, len(r.history)),
		retained: make(map[chaincfg.LLMQType][]*Quorum, len(r.history)),
	}
	for t, history := range r.history {
		params, _ := r.params.LLMQ(t)
		activeStart := len(history) - params.SigningActiveQuorumCount
		if activeStart < 0 {
			activeStart = 0
		}
		retainedStart := activeStart - params.KeepOldConnections
		if retainedStart < 0 {
			retainedStart = 0
		}
		snap.active[t] = append([]*Quorum(nil), history[activeStart:]...)
		snap.retained[t] = append([]*Quorum(nil),
			history[retainedStart:activeStart]...)
	}
	r.snapshot.Store(snap)
}

// OnQuorumFinalized adds a quorum whose commitment was mined.  It becomes
// active once its commitment is sufficiently confirmed.
func (r *Registry) OnQuorumFinalized(q *Quorum) error {
	if _, ok := r.params.LLMQ(q.Type); !ok {
		str := fmt.Sprintf("quorum %v has unknown type %v", q.QuorumHash,
			q.Type)
		return contextError(ErrUnknownQuorumType, str)
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	isDup := func(quorums []*Quorum) bool {
		for _, other := range quorums {
			if other.Type == q.Type && other.QuorumHash == q.QuorumHash {
				return true
			}
		}
		return false
	}
	if isDup(r.pending) || isDup(r.history[q.Type]) {
		str := fmt.Sprintf("quorum %v of type %v already exists",
			q.QuorumHash, q.Type)
		return contextError(ErrDuplicateQuorum, str)
	}
	if r.store != nil {
		if err := r.store.PutQuorum(q); err != nil {
			return err
		}
	}
	r.pending = append(r.pending, q)
	sortQuorums(r.pending)
	r.promote()
	return nil
}

// ConnectTip notifies the registry of the new chain tip height and activates
// the quorums that became sufficiently confirmed.
func (r *Registry) ConnectTip(height int64) {
	r.mtx.Lock()
	r.tip = height
	r.promote()
	r.mtx.Unlock()
}

// PurgeAbove removes every quorum created above the provided height, which is
// the height of the new chain tip after a reorg.  Quorums that were evicted
// by the removed ones become active or retained again.
func (r *Registry) PurgeAbove(height int64) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.tip > height {
		r.tip = height
	}
	if r.store != nil {
		if err := r.store.DeleteQuorumsAbove(height); err != nil {
			return err
		}
		if err := r.load(); err != nil {
			return err
		}
	} else {
		keep := func(quorums []*Quorum) []*Quorum {
			kept := make([]*Quorum, 0, len(quorums))
			for _, q := range quorums {
				if q.CreationHeight <= height {
					kept = append(kept, q)
				}
			}
			return kept
		}
		r.pending = keep(r.pending)
		for t, history := range r.history {
			r.history[t] = keep(history)
		}
		// Confirmed quorums may be unconfirmed at the new tip.
		for t, history := range r.history {
			r.pending = append(r.pending, history...)
			delete(r.history, t)
		}
		sortQuorums(r.pending)
	}
	r.promote()
	r.publish()
	return nil
}

// ActiveQuorumsFor returns the active quorums of the given type ordered by
// creation height.
func (r *Registry) ActiveQuorumsFor(t chaincfg.LLMQType) []*Quorum {
	return append([]*Quorum(nil), r.snapshot.Load().active[t]...)
}

// RetainedQuorumsFor returns the retired quorums of the given type that are
// still retained ordered by creation height.
func (r *Registry) RetainedQuorumsFor(t chaincfg.LLMQType) []*Quorum {
	return append([]*Quorum(nil), r.snapshot.Load().retained[t]...)
}

// signingScore returns the score of a quorum for a signing request.  The
// quorum with the lowest score is responsible for the request.
func signingScore(q *Quorum, requestID *chainhash.Hash) chainhash.Hash {
	var buf [1 + 2*chainhash.HashSize]byte
	buf[0] = byte(q.Type)
	copy(buf[1:], q.QuorumHash[:])
	copy(buf[1+chainhash.HashSize:], requestID[:])
	return chainhash.HashH(buf[:])
}

// QuorumForSigningRequest returns the active quorum of the given type that is
// responsible for the signing request with the provided ID.  The selection
// only depends on the active quorums and the request ID.
func (r *Registry) QuorumForSigningRequest(t chaincfg.LLMQType, requestID chainhash.Hash) (*Quorum, error) {
	active := r.snapshot.Load().active[t]
	if len(active) == 0 {
		str := fmt.Sprintf("no active quorum of type %v", t)
		return nil, contextError(ErrNoActiveQuorum, str)
	}
	var best *Quorum
	var bestScore chainhash.Hash
	for _, q := range active {
		score := signingScore(q, &requestID)
		if best == nil || bytes.Compare(score[:], bestScore[:]) < 0 {
			best, bestScore = q, score
		}
	}
	return best, nil
}
