// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/alterdot/adotd/internal/blockchain"
	"github.com/alterdot/adotd/internal/llmq"
	"github.com/alterdot/adotd/internal/llmq/dkg"
	"github.com/alterdot/adotd/internal/progresslog"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/crypto/blake256"
	"github.com/decred/dcrd/crypto/rand"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// simGenesisTime is the timestamp of the simulated genesis block.
	simGenesisTime = 1600000000

	// simBits is the difficulty of every simulated block.
	simBits = 0x207fffff
)

// masternodeList is a fixed masternode list.
type masternodeList []dkg.Masternode

// SnapshotAt returns the masternode list.  Registrations never change during
// a simulation.
func (l masternodeList) SnapshotAt(int64) ([]dkg.Masternode, error) {
	return l, nil
}

type sessionKey struct {
	llmqType   chaincfg.LLMQType
	quorumHash chainhash.Hash
}

// simSession drives the members of a DKG session.
type simSession struct {
	session       *dkg.Session
	participants  []*dkg.Participant
	byzantine     map[uint16]bool
	done          map[dkg.Phase]bool
	contributions []*dkg.Contribution
	complaints    []*dkg.Complaint
	mined         bool
}

// summary accumulates the outcome of a simulation.
type summary struct {
	Blocks      int64
	Finalized   int
	Failed      int
	Rejected    int
	Warnings    int
	Deployments map[chaincfg.DeploymentID]blockchain.ThresholdStateTuple
}

// simulator mines a chain of synthetic blocks, signals for deployments and
// runs the DKG sessions of every masternode.
type simulator struct {
	cfg    *config
	params *chaincfg.Params
	rand   io.Reader

	index    *blockchain.HeaderIndex
	vb       *blockchain.VersionBits
	registry *llmq.Registry
	mgr      *llmq.Manager
	progress *progresslog.Logger

	keys     map[chainhash.Hash]*secp256k1.PrivateKey
	sessions map[sessionKey]*simSession
	tip      *blockchain.BlockNode
	epoch    int
	states   [chaincfg.DefinedDeployments]blockchain.ThresholdStateTuple
	sum      summary
}

// store is the persistence used by a simulator.
type store interface {
	blockchain.ThresholdStateStore
	llmq.QuorumStore
}

// simMasternodes returns n masternodes with deterministic operator keys.
func simMasternodes(n int) (masternodeList, map[chainhash.Hash]*secp256k1.PrivateKey) {
	mns := make(masternodeList, 0, n)
	keys := make(map[chainhash.Hash]*secp256k1.PrivateKey, n)
	for i := 0; i < n; i++ {
		var seed [8]byte
		binary.LittleEndian.PutUint64(seed[:], uint64(i))
		keyBytes := blake256.Sum256(append([]byte("llmqsim-operator"), seed[:]...))
		key := secp256k1.PrivKeyFromBytes(keyBytes[:])
		proTxHash := chainhash.HashH(append([]byte("llmqsim-protx"), seed[:]...))
		keys[proTxHash] = key
		mns = append(mns, dkg.Masternode{
			ProTxHash:   proTxHash,
			OperatorKey: key.PubKey().SerializeCompressed(),
		})
	}
	return mns, keys
}

// newSimulator returns a simulator for the provided configuration that
// persists its state to the provided store, which may be nil.
func newSimulator(cfg *config, st store) (*simulator, error) {
	params := cfg.params
	genesis := &blockchain.BlockHeader{
		Version:   1,
		Timestamp: time.Unix(simGenesisTime, 0),
		Bits:      simBits,
	}
	index, err := blockchain.NewHeaderIndex(genesis)
	if err != nil {
		return nil, err
	}

	var tss blockchain.ThresholdStateStore
	var qs llmq.QuorumStore
	if st != nil {
		tss, qs = st, st
	}
	vb, err := blockchain.NewVersionBits(params, tss)
	if err != nil {
		return nil, err
	}
	registry, err := llmq.NewRegistry(params, qs)
	if err != nil {
		return nil, err
	}

	mns, keys := simMasternodes(cfg.Masternodes)
	mgr := llmq.NewManager(&llmq.ManagerConfig{
		ChainParams: params,
		Registry:    registry,
		Masternodes: mns,
		Crypto:      dkg.BLSCrypto{},
	})
	s := &simulator{
		cfg:      cfg,
		params:   params,
		rand:     rand.Reader(),
		index:    index,
		vb:       vb,
		registry: registry,
		mgr:      mgr,
		progress: progresslog.New("Processed", simuLog),
		keys:     keys,
		sessions: make(map[sessionKey]*simSession),
		tip:      index.Genesis(),
	}
	s.sum.Deployments = make(map[chaincfg.DeploymentID]blockchain.ThresholdStateTuple)

	// The genesis block is connected like any other block so the DKG
	// intervals are aligned to it.
	if _, err := mgr.BlockConnected(&llmq.ConnectedBlock{
		Height: 0,
		Hash:   s.tip.Hash(),
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// blockVersion returns the version of the block after the tip.  It signals
// for the started deployments miners are configured to signal for.
func (s *simulator) blockVersion() (int32, error) {
	version, err := s.vb.ComputeBlockVersion(s.tip)
	if err != nil {
		return 0, err
	}
	for i := range s.params.Deployments {
		d := &s.params.Deployments[i]
		if !s.cfg.signals(d.ID) {
			version &^= d.Mask()
		}
	}
	return version, nil
}

// commitments returns the final commitments to mine in the block at the
// provided height.
func (s *simulator) commitments(height int64) []*dkg.FinalCommitment {
	var fcs []*dkg.FinalCommitment
	for _, ss := range s.sessions {
		if ss.mined {
			continue
		}
		params := ss.session.Params()
		if !dkg.InMiningWindow(params, height-ss.session.StartHeight()) {
			continue
		}
		outcome := ss.session.Outcome()
		switch {
		case outcome.Status == dkg.StatusFinalized:
			fcs = append(fcs, outcome.Commitment)
		case outcome.Status.Failed():
			fcs = append(fcs, dkg.NewNullCommitment(params,
				ss.session.QuorumHash()))
		}
	}
	return fcs
}

// merkleRoot commits to the final commitments of a block.
func merkleRoot(fcs []*dkg.FinalCommitment) chainhash.Hash {
	var buf bytes.Buffer
	for _, fc := range fcs {
		buf.Write(fc.Serialize())
	}
	return chainhash.HashH(buf.Bytes())
}

// step mines and connects the next block.
func (s *simulator) step(ctx context.Context) error {
	height := s.tip.Height() + 1
	version, err := s.blockVersion()
	if err != nil {
		return err
	}
	fcs := s.commitments(height)
	header := &blockchain.BlockHeader{
		Version:    version,
		PrevBlock:  s.tip.Hash(),
		MerkleRoot: merkleRoot(fcs),
		Timestamp:  s.tip.Timestamp().Add(s.params.PowTargetSpacing(height)),
		Bits:       simBits,
		Height:     height,
	}
	node, err := s.index.AddHeader(header)
	if err != nil {
		return err
	}
	results, err := s.mgr.BlockConnected(&llmq.ConnectedBlock{
		Height:      height,
		Hash:        node.Hash(),
		Commitments: fcs,
	})
	if err != nil {
		return fmt.Errorf("block %v at height %d rejected: %w", node.Hash(),
			height, err)
	}
	s.tip = node
	s.sum.Blocks++

	progress := progresslog.BlockProgress{
		Height:    height,
		Timestamp: node.Timestamp(),
	}
	for _, fc := range fcs {
		if ss, ok := s.sessions[sessionKey{fc.LLMQType, fc.QuorumHash}]; ok {
			ss.mined = true
		}
		if !fc.IsNull() {
			progress.CommitmentsMined++
		}
	}
	for _, r := range results {
		if r.Status == dkg.StatusFinalized {
			s.sum.Finalized++
			continue
		}
		s.sum.Failed++
		progress.IntervalsFailed++
		simuLog.Infof("%v DKG interval starting at height %d failed: %v",
			r.Type, r.StartHeight, r.Status)
	}

	progress.SessionsStarted = s.trackSessions()
	if err := s.runDKG(ctx); err != nil {
		return err
	}
	if err := s.logRuleChanges(); err != nil {
		return err
	}
	s.progress.LogProgress(&progress, height == s.cfg.Blocks)
	return nil
}

// trackSessions starts driving new sessions and forgets the sessions the
// manager dropped.  It returns the number of new sessions.
func (s *simulator) trackSessions() int {
	var started int
	for _, session := range s.mgr.OpenSessions() {
		key := sessionKey{session.Params().Type, session.QuorumHash()}
		if _, ok := s.sessions[key]; ok {
			continue
		}
		members := session.Members()
		ss := &simSession{
			session:      session,
			participants: make([]*dkg.Participant, len(members)),
			byzantine:    make(map[uint16]bool),
			done:         make(map[dkg.Phase]bool),
		}
		for i := range members {
			ss.participants[i] = dkg.NewParticipant(session, uint16(i),
				s.keys[members[i].ProTxHash])
			if i < s.cfg.Byzantine {
				ss.byzantine[uint16(i)] = true
			}
		}
		s.sessions[key] = ss
		started++
	}
	for key := range s.sessions {
		if _, ok := s.mgr.Session(key.llmqType, key.quorumHash); !ok {
			delete(s.sessions, key)
		}
	}
	return started
}

// corrupt returns a copy of the contribution whose shares for every other
// member are invalid.
func corrupt(c *dkg.Contribution, key *secp256k1.PrivateKey) (*dkg.Contribution, error) {
	bad := *c
	bad.Shares = make([][]byte, len(c.Shares))
	for i, share := range c.Shares {
		bad.Shares[i] = share
		if uint16(i) == c.Member {
			continue
		}
		flipped := bytes.Clone(share)
		flipped[len(flipped)-1] ^= 0x01
		bad.Shares[i] = flipped
	}
	if err := dkg.SignMessage(&bad, key); err != nil {
		return nil, err
	}
	return &bad, nil
}

// sessionMessages returns the messages the members of the session send in its
// current phase.
func (s *simulator) sessionMessages(ss *simSession) ([]dkg.Message, error) {
	phase := ss.session.Phase()
	if ss.done[phase] {
		return nil, nil
	}
	ss.done[phase] = true

	var msgs []dkg.Message
	switch phase {
	case dkg.PhaseContribute:
		for _, p := range ss.participants {
			c, err := p.Contribute(s.rand)
			if err != nil {
				return nil, err
			}
			if ss.byzantine[p.Index()] {
				key := s.keys[ss.session.Members()[p.Index()].ProTxHash]
				if c, err = corrupt(c, key); err != nil {
					return nil, err
				}
			}
			ss.contributions = append(ss.contributions, c)
			msgs = append(msgs, c)
		}

	case dkg.PhaseComplain:
		for _, p := range ss.participants {
			if ss.byzantine[p.Index()] {
				continue
			}
			c, err := p.Complain(ss.contributions)
			if err != nil {
				return nil, err
			}
			if c != nil {
				ss.complaints = append(ss.complaints, c)
				msgs = append(msgs, c)
			}
		}

	case dkg.PhaseJustify:
		for _, p := range ss.participants {
			if ss.byzantine[p.Index()] {
				continue
			}
			j, err := p.Justify(ss.complaints)
			if err != nil {
				return nil, err
			}
			if j != nil {
				msgs = append(msgs, j)
			}
		}
	}
	return msgs, nil
}

// runDKG sends the messages of every session for its current phase.
func (s *simulator) runDKG(ctx context.Context) error {
	var msgs []dkg.Message
	for _, ss := range s.sessions {
		sessionMsgs, err := s.sessionMessages(ss)
		if err != nil {
			return err
		}
		msgs = append(msgs, sessionMsgs...)
	}
	if len(msgs) == 0 {
		return nil
	}
	errs, err := s.mgr.ProcessMessages(ctx, msgs)
	if err != nil {
		return err
	}
	for i, err := range errs {
		if err != nil {
			s.sum.Rejected++
			simuLog.Debugf("Rejected %s message from member %d: %v",
				msgs[i].Command(), msgs[i].Sender(), err)
		}
	}
	return nil
}

// logRuleChanges logs epoch changes, deployment state changes and unknown
// rule warnings at the tip.
func (s *simulator) logRuleChanges() error {
	height := s.tip.Height()
	if epoch := s.params.ActiveEpoch(height); epoch.Index != s.epoch {
		s.epoch = epoch.Index
		simuLog.Infof("Epoch %q is active at height %d (target spacing %v, "+
			"%d quorum types)", epoch.Name, height, epoch.PowTargetSpacing,
			len(epoch.LLMQs))
	}

	for i := range s.params.Deployments {
		id := s.params.Deployments[i].ID
		state, err := s.vb.NextState(s.tip, id)
		if err != nil {
			return err
		}
		s.sum.Deployments[id] = state
		if state.State != s.states[id].State {
			s.states[id] = state
			simuLog.Infof("Deployment %v is %v for height %d", id, state,
				height+1)
		}
	}

	window := int64(s.params.MinerConfirmationWindow)
	if (height+1)%window == 0 {
		warnings, err := s.vb.UnknownRuleWarnings(s.tip)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			s.sum.Warnings++
			simuLog.Warnf("Unknown version bit %d signalled by %d blocks in "+
				"the window ending at height %d", w.Bit, w.Count, w.WindowEnd)
		}
	}
	return nil
}

// run simulates the configured number of blocks.
func (s *simulator) run(ctx context.Context) error {
	for s.tip.Height() < s.cfg.Blocks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// logSummary logs the outcome of the simulation along with the quorum
// responsible for signing the tip.
func (s *simulator) logSummary() {
	simuLog.Infof("Simulated %d %s: %d %s finalized, %d %s failed, "+
		"%d rejected %s", s.sum.Blocks, pickNoun(int(s.sum.Blocks), "block",
		"blocks"), s.sum.Finalized, pickNoun(s.sum.Finalized, "quorum",
		"quorums"), s.sum.Failed, pickNoun(s.sum.Failed, "interval",
		"intervals"), s.sum.Rejected, pickNoun(s.sum.Rejected, "message",
		"messages"))

	for i := range s.params.LLMQs {
		t := s.params.LLMQs[i].Type
		active := s.registry.ActiveQuorumsFor(t)
		retained := s.registry.RetainedQuorumsFor(t)
		if len(active) == 0 && len(retained) == 0 {
			continue
		}
		simuLog.Infof("%v: %d active, %d retained", t, len(active),
			len(retained))
	}

	requestID := s.tip.Hash()
	q, err := s.registry.QuorumForSigningRequest(s.params.ChainLocksLLMQ,
		requestID)
	if err != nil {
		simuLog.Infof("No quorum can sign the chain lock of the tip: %v", err)
		return
	}
	simuLog.Infof("The chain lock of block %v is signed by %v quorum %v "+
		"created at height %d", requestID, q.Type, q.QuorumHash,
		q.CreationHeight)
}
