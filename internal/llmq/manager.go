// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package llmq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/alterdot/adotd/internal/llmq/dkg"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/container/apbf"
	"github.com/decred/dcrd/container/lru"
	"golang.org/x/sync/errgroup"
)

const (
	// defaultMaxPendingMessages is the default number of premature
	// messages buffered per session.
	defaultMaxPendingMessages = 1024

	// seenMessagesSize is the number of recently processed message hashes
	// remembered to drop duplicates early.
	seenMessagesSize = 16384

	// maxRejectedMessages is the minimum number of rejected message hashes
	// to track, and rejectedMessagesFPRate is the false positive rate of
	// the filter tracking them.
	maxRejectedMessages    = 8192
	rejectedMessagesFPRate = 0.0000001
)

// MasternodeListProvider provides the masternode list at a height.
type MasternodeListProvider interface {
	// SnapshotAt returns the masternodes registered at the given height.
	SnapshotAt(height int64) ([]dkg.Masternode, error)
}

// ManagerConfig is the configuration of a Manager.
type ManagerConfig struct {
	// ChainParams identifies the network.
	ChainParams *chaincfg.Params

	// Registry receives the quorums of mined commitments.
	Registry *Registry

	// Masternodes provides the masternode list snapshots members are
	// derived from.
	Masternodes MasternodeListProvider

	// Crypto is the secret sharing capability used by the sessions.
	Crypto dkg.Crypto

	// MaxPendingMessages is the number of premature messages buffered per
	// session.  Zero selects a default.
	MaxPendingMessages int

	// MaxReorgDepth is the number of blocks after the end of a DKG
	// interval for which its state is kept to handle reorgs.  Zero keeps it
	// for one more DKG interval.
	MaxReorgDepth int64
}

// ConnectedBlock describes a block connected to the main chain.
type ConnectedBlock struct {
	Height      int64
	Hash        chainhash.Hash
	Commitments []*dkg.FinalCommitment
}

// IntervalResult is the outcome of a DKG interval.  Quorum is only set when
// the status is dkg.StatusFinalized.  Failed intervals leave the quorum slot
// of the interval empty.
type IntervalResult struct {
	Type        chaincfg.LLMQType
	StartHeight int64
	QuorumHash  chainhash.Hash
	Height      int64
	Status      dkg.Status
	Quorum      *Quorum
}

type sessionKey struct {
	llmqType   chaincfg.LLMQType
	quorumHash chainhash.Hash
}

// interval is the state of the DKG interval of a quorum type.
type interval struct {
	params      *chaincfg.LLMQParams
	startHeight int64
	quorumHash  chainhash.Hash
	session     *dkg.Session

	// minedHeight is the height of the block that mined a commitment and
	// closedHeight the height at which the result was reported.  Both are
	// -1 until then.
	minedHeight  int64
	closedHeight int64

	pendingMtx sync.Mutex
	pending    []dkg.Message
}

// failureStatus returns the status reported when the interval closes without
// a quorum.
func (iv *interval) failureStatus() dkg.Status {
	if iv.session.Outcome().Status == dkg.StatusFailedNoQuorum {
		return dkg.StatusFailedNoQuorum
	}
	return dkg.StatusFailedTimeout
}

// Manager runs the DKG sessions of every active quorum type as blocks are
// connected and feeds the resulting quorums to the registry.
//
// BlockConnected and BlockDisconnected must be called from the single block
// processing path.  Messages may be processed concurrently.
type Manager struct {
	cfg ManagerConfig

	mtx       sync.RWMutex
	tip       int64
	intervals map[sessionKey]*interval
	seen      *lru.Set[chainhash.Hash]
	rejected  *apbf.Filter
}

// NewManager returns a manager for the provided configuration.
func NewManager(cfg *ManagerConfig) *Manager {
	c := *cfg
	if c.MaxPendingMessages == 0 {
		c.MaxPendingMessages = defaultMaxPendingMessages
	}
	return &Manager{
		cfg:       c,
		tip:       -1,
		intervals: make(map[sessionKey]*interval),
		seen:      lru.NewSet[chainhash.Hash](seenMessagesSize),
		rejected:  apbf.NewFilter(maxRejectedMessages, rejectedMessagesFPRate),
	}
}

// Tip returns the height of the last connected block or -1.
func (m *Manager) Tip() int64 {
	m.mtx.RLock()
	tip := m.tip
	m.mtx.RUnlock()
	return tip
}

// sortedIntervals returns the tracked intervals ordered by start height and
// quorum type.
//
// This function MUST be called with the manager lock held.
func (m *Manager) sortedIntervals() []*interval {
	ivs := make([]*interval, 0, len(m.intervals))
	for _, iv := range m.intervals {
		ivs = append(ivs, iv)
	}
	sort.Slice(ivs, func(i, j int) bool {
		if ivs[i].startHeight != ivs[j].startHeight {
			return ivs[i].startHeight < ivs[j].startHeight
		}
		return ivs[i].params.Type < ivs[j].params.Type
	})
	return ivs
}

// checkCommitments validates the commitments of a block.
//
// This function MUST be called with the manager lock held.
func (m *Manager) checkCommitments(b *ConnectedBlock) error {
	minedNow := make(map[sessionKey]struct{}, len(b.Commitments))
	for _, fc := range b.Commitments {
		params, ok := m.cfg.ChainParams.LLMQ(fc.LLMQType)
		if !ok {
			str := fmt.Sprintf("commitment for unknown quorum type %v",
				fc.LLMQType)
			return contextError(ErrUnknownQuorumType, str)
		}
		key := sessionKey{fc.LLMQType, fc.QuorumHash}
		iv, ok := m.intervals[key]
		if !ok {
			str := fmt.Sprintf("commitment for unknown %v quorum %v",
				fc.LLMQType, fc.QuorumHash)
			return contextError(ErrUnknownSession, str)
		}
		_, dup := minedNow[key]
		err := dkg.CheckCommitment(params, iv.quorumHash, iv.startHeight,
			b.Height, fc, iv.minedHeight >= 0 || dup)
		if err != nil {
			return err
		}
		numMembers := len(iv.session.Members())
		if err := dkg.CheckCommitmentMembers(params, fc, numMembers); err != nil {
			return err
		}
		minedNow[key] = struct{}{}
	}
	return nil
}

// newIntervals returns the intervals that start at the provided block.
//
// This function MUST be called with the manager lock held.
func (m *Manager) newIntervals(b *ConnectedBlock) ([]*interval, error) {
	var ivs []*interval
	var snapshot []dkg.Masternode
	for _, params := range m.cfg.ChainParams.ActiveLLMQs(b.Height) {
		if b.Height%params.DKGInterval != 0 {
			continue
		}
		if snapshot == nil {
			var err error
			snapshot, err = m.cfg.Masternodes.SnapshotAt(b.Height)
			if err != nil {
				return nil, err
			}
		}
		members := dkg.DeriveMembers(params, b.Height, b.Hash, snapshot)
		session := dkg.NewSession(&dkg.SessionConfig{
			Params:      params,
			StartHeight: b.Height,
			QuorumHash:  b.Hash,
			Members:     members,
			Crypto:      m.cfg.Crypto,
		})
		ivs = append(ivs, &interval{
			params:       params,
			startHeight:  b.Height,
			quorumHash:   b.Hash,
			session:      session,
			minedHeight:  -1,
			closedHeight: -1,
		})
	}
	return ivs, nil
}

// BlockConnected processes the block connected at the tip of the main chain.
// It validates the commitments the block mines, starts the sessions of the
// intervals beginning at the block, steps every session and returns the
// results of the intervals that closed with the block.  Blocks mining an
// invalid commitment are rejected before any state changes.
func (m *Manager) BlockConnected(b *ConnectedBlock) ([]IntervalResult, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.tip >= 0 && b.Height != m.tip+1 {
		str := fmt.Sprintf("block %v at height %d does not extend tip %d",
			b.Hash, b.Height, m.tip)
		return nil, contextError(ErrUnexpectedBlock, str)
	}
	if err := m.checkCommitments(b); err != nil {
		return nil, err
	}
	started, err := m.newIntervals(b)
	if err != nil {
		return nil, err
	}

	var results []IntervalResult
	for _, fc := range b.Commitments {
		iv := m.intervals[sessionKey{fc.LLMQType, fc.QuorumHash}]
		iv.minedHeight = b.Height
		if fc.IsNull() {
			if iv.closedHeight < 0 {
				iv.closedHeight = b.Height
				results = append(results, IntervalResult{
					Type:        iv.params.Type,
					StartHeight: iv.startHeight,
					QuorumHash:  iv.quorumHash,
					Height:      b.Height,
					Status:      iv.failureStatus(),
				})
			}
			continue
		}

		q := NewQuorum(fc, iv.startHeight, b.Height, iv.session.Members())
		if err := m.cfg.Registry.OnQuorumFinalized(q); err != nil {
			return nil, err
		}
		iv.closedHeight = b.Height
		results = append(results, IntervalResult{
			Type:        iv.params.Type,
			StartHeight: iv.startHeight,
			QuorumHash:  iv.quorumHash,
			Height:      b.Height,
			Status:      dkg.StatusFinalized,
			Quorum:      q,
		})
		log.Infof("Mined %v quorum %v with %d members at height %d",
			q.Type, q.QuorumHash, len(q.Members), b.Height)
	}

	m.tip = b.Height
	for _, iv := range started {
		m.intervals[sessionKey{iv.params.Type, iv.quorumHash}] = iv
		log.Debugf("Started %v DKG session %v at height %d with %d members",
			iv.params.Type, iv.quorumHash, b.Height,
			len(iv.session.Members()))
	}

	for _, iv := range m.sortedIntervals() {
		before := iv.session.Phase()
		if after := iv.session.AdvanceTo(b.Height); after != before {
			m.replay(iv)
		}

		offset := b.Height - iv.startHeight
		if iv.closedHeight < 0 && offset > iv.params.DKGMiningWindowEnd {
			iv.closedHeight = b.Height
			status := iv.failureStatus()
			results = append(results, IntervalResult{
				Type:        iv.params.Type,
				StartHeight: iv.startHeight,
				QuorumHash:  iv.quorumHash,
				Height:      b.Height,
				Status:      status,
			})
			log.Warnf("%v DKG interval %v starting at height %d closed "+
				"without a quorum: %v", iv.params.Type, iv.quorumHash,
				iv.startHeight, status)
		}

		keep := m.cfg.MaxReorgDepth
		if keep == 0 {
			keep = iv.params.DKGInterval
		}
		if offset > iv.params.DKGInterval+keep {
			delete(m.intervals, sessionKey{iv.params.Type, iv.quorumHash})
		}
	}

	m.cfg.Registry.ConnectTip(b.Height)
	return results, nil
}

// BlockDisconnected processes the disconnection of the tip block at the
// provided height.  Intervals that start at the block are dropped, the
// sessions of the others move back to the phase of the new tip and the
// commitments and results of the block are undone.
func (m *Manager) BlockDisconnected(height int64) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if height != m.tip {
		str := fmt.Sprintf("disconnected block at height %d is not the "+
			"tip %d", height, m.tip)
		return contextError(ErrUnexpectedBlock, str)
	}
	for key, iv := range m.intervals {
		if iv.startHeight >= height {
			delete(m.intervals, key)
			continue
		}
		if iv.minedHeight >= height {
			iv.minedHeight = -1
		}
		if iv.closedHeight >= height {
			iv.closedHeight = -1
		}
		iv.session.RewindTo(height - 1)
	}
	m.tip = height - 1
	return m.cfg.Registry.PurgeAbove(m.tip)
}

// deliver passes a message to the session.
func deliver(s *dkg.Session, msg dkg.Message) error {
	switch msg := msg.(type) {
	case *dkg.Contribution:
		return s.ReceiveContribution(msg)
	case *dkg.Complaint:
		return s.ReceiveComplaint(msg)
	case *dkg.Justification:
		return s.ReceiveJustification(msg)
	}
	str := fmt.Sprintf("unsupported message type %T", msg)
	return contextError(ErrUnknownMessage, str)
}

// replay delivers the buffered premature messages of the interval after its
// session changed phase.  Messages that are still premature stay buffered.
func (m *Manager) replay(iv *interval) {
	iv.pendingMtx.Lock()
	defer iv.pendingMtx.Unlock()

	remaining := iv.pending[:0]
	for _, msg := range iv.pending {
		err := deliver(iv.session, msg)
		switch {
		case errors.Is(err, dkg.ErrPrematureMessage):
			remaining = append(remaining, msg)
		case err != nil:
			log.Debugf("Dropped buffered %s message from member %d of %v "+
				"quorum %v: %v", msg.Command(), msg.Sender(),
				iv.params.Type, iv.quorumHash, err)
		}
	}
	for i := len(remaining); i < len(iv.pending); i++ {
		iv.pending[i] = nil
	}
	iv.pending = remaining
}

// ProcessMessage passes a DKG message to its session.  Messages for a phase
// the session has not reached yet are buffered and delivered once it does.
func (m *Manager) ProcessMessage(msg dkg.Message) error {
	hash := msg.Hash()
	if m.seen.Contains(hash) {
		return ContextError{
			Err:         dkg.ErrDuplicateMessage,
			Description: fmt.Sprintf("message %v already processed", hash),
		}
	}
	if m.rejected.Contains(hash[:]) {
		str := fmt.Sprintf("message %v was recently rejected", hash)
		return contextError(ErrRejectedMessage, str)
	}

	m.mtx.RLock()
	defer m.mtx.RUnlock()

	iv, ok := m.intervals[sessionKey{msg.Type(), msg.Quorum()}]
	if !ok {
		str := fmt.Sprintf("%s message for unknown %v quorum %v",
			msg.Command(), msg.Type(), msg.Quorum())
		return contextError(ErrUnknownSession, str)
	}

	iv.pendingMtx.Lock()
	defer iv.pendingMtx.Unlock()

	err := deliver(iv.session, msg)
	switch {
	case err == nil:
		m.seen.Put(hash)
		return nil
	case errors.Is(err, dkg.ErrPrematureMessage):
	case isInvalidMessage(err):
		m.rejected.Add(hash[:])
		return err
	default:
		return err
	}
	if len(iv.pending) >= m.cfg.MaxPendingMessages {
		str := fmt.Sprintf("%d premature messages already buffered for "+
			"%v quorum %v", len(iv.pending), iv.params.Type, iv.quorumHash)
		return contextError(ErrTooManyPending, str)
	}
	m.seen.Put(hash)
	iv.pending = append(iv.pending, msg)
	return nil
}

// isInvalidMessage returns whether the error rejects a message regardless of
// the state of its session.
func isInvalidMessage(err error) bool {
	return errors.Is(err, dkg.ErrInvalidSignature) ||
		errors.Is(err, dkg.ErrMalformedMessage) ||
		errors.Is(err, dkg.ErrNotMember) ||
		errors.Is(err, dkg.ErrWrongSession)
}

// ProcessMessages processes a batch of messages.  Messages of different
// sessions are processed concurrently while the messages of one session are
// processed in order.  The returned errors correspond to the messages.
func (m *Manager) ProcessMessages(ctx context.Context, msgs []dkg.Message) ([]error, error) {
	errs := make([]error, len(msgs))
	groups := make(map[sessionKey][]int)
	var order []sessionKey
	for i, msg := range msgs {
		key := sessionKey{msg.Type(), msg.Quorum()}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, key := range order {
		idxs := groups[key]
		g.Go(func() error {
			for _, i := range idxs {
				if err := ctx.Err(); err != nil {
					return err
				}
				errs[i] = m.ProcessMessage(msgs[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return errs, nil
}

// Session returns the session of the quorum type with the provided quorum
// hash.
func (m *Manager) Session(t chaincfg.LLMQType, quorumHash chainhash.Hash) (*dkg.Session, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	iv, ok := m.intervals[sessionKey{t, quorumHash}]
	if !ok {
		return nil, false
	}
	return iv.session, true
}

// OpenSessions returns the sessions of the intervals that have not closed
// yet ordered by start height and quorum type.
func (m *Manager) OpenSessions() []*dkg.Session {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	var sessions []*dkg.Session
	for _, iv := range m.sortedIntervals() {
		if iv.closedHeight < 0 {
			sessions = append(sessions, iv.session)
		}
	}
	return sessions
}
