// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/jrick/bitset"
)

// Status describes the outcome of a DKG session.
type Status uint8

// These constants define the possible session outcomes.
const (
	// StatusPending means the session has not produced an outcome yet.
	StatusPending Status = iota

	// StatusFinalized means the session assembled a final commitment.
	StatusFinalized

	// StatusFailedNoQuorum means fewer than the minimum number of members
	// were valid after the commit phase.
	StatusFailedNoQuorum

	// StatusFailedTimeout means the mining window of the interval closed
	// without a valid commitment being mined.
	StatusFailedTimeout
)

var statusStrings = map[Status]string{
	StatusPending:        "pending",
	StatusFinalized:      "finalized",
	StatusFailedNoQuorum: "failed (no quorum)",
	StatusFailedTimeout:  "failed (timeout)",
}

// String returns the status as a human-readable name.
func (s Status) String() string {
	if str := statusStrings[s]; str != "" {
		return str
	}
	return fmt.Sprintf("Unknown Status (%d)", uint8(s))
}

// Failed returns whether the status is a failure.
func (s Status) Failed() bool {
	return s == StatusFailedNoQuorum || s == StatusFailedTimeout
}

// Outcome is the result of a DKG session.  Commitment is only set when the
// status is StatusFinalized.
type Outcome struct {
	Status     Status
	Commitment *FinalCommitment
}

// SessionConfig holds the configuration of a session.
type SessionConfig struct {
	// Params are the parameters of the quorum type.
	Params *chaincfg.LLMQParams

	// StartHeight is the height of the first block of the DKG interval.
	StartHeight int64

	// QuorumHash is the hash of the first block of the DKG interval.
	QuorumHash chainhash.Hash

	// Members are the ordered members of the quorum as returned by
	// DeriveMembers.
	Members []Masternode

	// Crypto verifies and combines the secret sharing contributions.
	Crypto Crypto
}

// Session tracks the DKG of one quorum type for one interval.  It is stepped
// by AdvanceTo as blocks are connected and fed the messages of the members.
// All methods are safe for concurrent use.
type Session struct {
	params      *chaincfg.LLMQParams
	startHeight int64
	quorumHash  chainhash.Hash
	members     []Masternode
	crypto      Crypto

	mtx   sync.Mutex
	phase Phase

	// Messages are indexed by the member index of their author.
	contributions  []*Contribution
	contribValid   []bool
	complaints     []*Complaint
	justifications []*Justification

	// accused[a][b] is set when member b complained about member a and
	// resolved[a][b] once a revealed a valid share for b.
	accused    [][]bool
	resolved   [][]bool
	provenBad  []bool
	valid, bad []uint16
	outcome    Outcome
}

// NewSession returns a session in the initialized phase for the provided
// configuration.
func NewSession(cfg *SessionConfig) *Session {
	n := len(cfg.Members)
	s := &Session{
		params:         cfg.Params,
		startHeight:    cfg.StartHeight,
		quorumHash:     cfg.QuorumHash,
		members:        cfg.Members,
		crypto:         cfg.Crypto,
		phase:          PhaseInitialized,
		contributions:  make([]*Contribution, n),
		contribValid:   make([]bool, n),
		complaints:     make([]*Complaint, n),
		justifications: make([]*Justification, n),
		accused:        make([][]bool, n),
		resolved:       make([][]bool, n),
		provenBad:      make([]bool, n),
	}
	for i := range s.accused {
		s.accused[i] = make([]bool, n)
		s.resolved[i] = make([]bool, n)
	}
	return s
}

// Params returns the parameters of the quorum type of the session.
func (s *Session) Params() *chaincfg.LLMQParams { return s.params }

// StartHeight returns the height of the first block of the interval.
func (s *Session) StartHeight() int64 { return s.startHeight }

// QuorumHash returns the hash of the first block of the interval.
func (s *Session) QuorumHash() chainhash.Hash { return s.quorumHash }

// Members returns the ordered members of the session.  The caller must not
// modify the returned slice.
func (s *Session) Members() []Masternode { return s.members }

// MemberIndex returns the index of the masternode with the provided ProTxHash.
func (s *Session) MemberIndex(proTxHash *chainhash.Hash) (uint16, bool) {
	for i := range s.members {
		if s.members[i].ProTxHash == *proTxHash {
			return uint16(i), true
		}
	}
	return 0, false
}

// Phase returns the current phase of the session.
func (s *Session) Phase() Phase {
	s.mtx.Lock()
	phase := s.phase
	s.mtx.Unlock()
	return phase
}

// AdvanceTo steps the session through every phase up to the phase of the
// provided height and returns the resulting phase.  Heights past the final
// phase leave the session finalized.  The session never moves backwards.
func (s *Session) AdvanceTo(height int64) Phase {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	offset := height - s.startHeight
	if offset < 0 {
		return s.phase
	}
	target := PhaseAt(s.params, offset)
	if target == PhaseIdle {
		target = PhaseFinalize
	}
	for s.phase < target {
		s.phase++
		log.Tracef("%v quorum %v entered phase %v at height %d",
			s.params.Type, s.quorumHash, s.phase, height)
		switch s.phase {
		case PhaseCommit:
			s.evaluate()
		case PhaseFinalize:
			s.finalize()
		}
	}
	return s.phase
}

// RewindTo moves the session back to the phase of the provided height after
// the blocks above it were disconnected.  The valid and bad members and the
// outcome are discarded when the session moves back before the phase that
// determined them, so they are determined again from the messages received
// once the session advances.  Received messages are kept.
func (s *Session) RewindTo(height int64) Phase {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	offset := height - s.startHeight
	target := PhaseAt(s.params, offset)
	switch {
	case offset < 0:
		target = PhaseInitialized
	case target == PhaseIdle:
		target = PhaseFinalize
	}
	if target >= s.phase {
		return s.phase
	}
	if s.phase >= PhaseCommit && target < PhaseCommit {
		s.valid, s.bad = nil, nil
		s.outcome = Outcome{}
	}
	if s.outcome.Status == StatusFinalized && target < PhaseFinalize {
		s.outcome = Outcome{}
	}
	log.Debugf("%v quorum %v rewound from phase %v to %v at height %d",
		s.params.Type, s.quorumHash, s.phase, target, height)
	s.phase = target
	return s.phase
}

// checkHeader validates the session, author and signature of a message and
// that the session is in the phase of the message.
func (s *Session) checkHeader(m Message, phase Phase) error {
	if m.Type() != s.params.Type || m.Quorum() != s.quorumHash {
		str := fmt.Sprintf("%s message for %v quorum %v sent to session "+
			"for %v quorum %v", m.Command(), m.Type(), m.Quorum(),
			s.params.Type, s.quorumHash)
		return ruleError(ErrWrongSession, str)
	}
	sender := m.Sender()
	if int(sender) >= len(s.members) {
		str := fmt.Sprintf("%s message from member %d of a %d member "+
			"quorum", m.Command(), sender, len(s.members))
		return ruleError(ErrNotMember, str)
	}
	if !VerifyMessage(m, s.members[sender].OperatorKey) {
		str := fmt.Sprintf("%s message from member %d has an invalid "+
			"signature", m.Command(), sender)
		return ruleError(ErrInvalidSignature, str)
	}
	switch {
	case s.phase < phase:
		str := fmt.Sprintf("%s message received in phase %v", m.Command(),
			s.phase)
		return ruleError(ErrPrematureMessage, str)
	case s.phase > phase:
		str := fmt.Sprintf("%s message received in phase %v", m.Command(),
			s.phase)
		return ruleError(ErrLateMessage, str)
	}
	return nil
}

// checkFirst returns an error when the author of m already sent a message of
// the same kind, whose hash is prev.  A different message is equivocation.
func (s *Session) checkFirst(m Message, prev Message) error {
	if prev == nil {
		return nil
	}
	if prev.Hash() == m.Hash() {
		str := fmt.Sprintf("duplicate %s message from member %d",
			m.Command(), m.Sender())
		return ruleError(ErrDuplicateMessage, str)
	}
	log.Warnf("Member %d (%v) of %v quorum %v equivocated on its %s message",
		m.Sender(), s.members[m.Sender()].ProTxHash, s.params.Type,
		s.quorumHash, m.Command())
	str := fmt.Sprintf("member %d sent a second, different %s message",
		m.Sender(), m.Command())
	return ruleError(ErrEquivocation, str)
}

// ReceiveContribution records the contribution of a member.  Only the first
// contribution of each member is recorded.  A contribution with a malformed
// verification vector or share count is recorded as invalid.
func (s *Session) ReceiveContribution(c *Contribution) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.checkHeader(c, PhaseContribute); err != nil {
		return err
	}
	var prev Message
	if p := s.contributions[c.Member]; p != nil {
		prev = p
	}
	if err := s.checkFirst(c, prev); err != nil {
		return err
	}

	s.contributions[c.Member] = c
	err := s.crypto.VerifyVerificationVector(c.VVec, s.params.Threshold)
	if err == nil && len(c.Shares) != len(s.members) {
		str := fmt.Sprintf("contribution has %d shares for %d members",
			len(c.Shares), len(s.members))
		err = ruleError(ErrMalformedMessage, str)
	}
	if err != nil {
		log.Debugf("Invalid contribution from member %d of %v quorum %v: %v",
			c.Member, s.params.Type, s.quorumHash, err)
		return err
	}
	s.contribValid[c.Member] = true
	return nil
}

// ReceiveComplaint records the members accused by a complaint.  The accused
// bitset holds one bit per member of a full quorum of the quorum type, even
// when the session has fewer members.  Accusations have set semantics.
//
// A member files all of its accusations in a single complaint.  Only the
// first complaint of each member is recorded and a second, different
// complaint is rejected as equivocation without adding its accusations.
func (s *Session) ReceiveComplaint(c *Complaint) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.checkHeader(c, PhaseComplain); err != nil {
		return err
	}
	n := len(s.members)
	if len(c.Accused) != (s.params.Size+7)/8 {
		str := fmt.Sprintf("complaint bitset has %d bytes for a %d member "+
			"quorum", len(c.Accused), s.params.Size)
		return ruleError(ErrMalformedMessage, str)
	}
	for i := n; i < len(c.Accused)*8; i++ {
		if c.Accused.Get(i) {
			str := fmt.Sprintf("complaint accuses unknown member %d", i)
			return ruleError(ErrNotMember, str)
		}
	}
	if c.Accused.Get(int(c.Member)) {
		return ruleError(ErrMalformedMessage, "member complains about itself")
	}
	var prev Message
	if p := s.complaints[c.Member]; p != nil {
		prev = p
	}
	if err := s.checkFirst(c, prev); err != nil {
		return err
	}

	s.complaints[c.Member] = c
	for i := 0; i < n; i++ {
		if c.Accused.Get(i) {
			s.accused[i][c.Member] = true
		}
	}
	return nil
}

// ReceiveJustification records the shares revealed by an accused member.
// Each valid share resolves the complaint of its accuser while an invalid
// share proves the member misbehaved.
func (s *Session) ReceiveJustification(j *Justification) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.checkHeader(j, PhaseJustify); err != nil {
		return err
	}
	sender := j.Member
	var accusers int
	for _, a := range s.accused[sender] {
		if a {
			accusers++
		}
	}
	if accusers == 0 {
		str := fmt.Sprintf("justification from member %d that nobody "+
			"complained about", sender)
		return ruleError(ErrNotAccused, str)
	}
	seen := make(map[uint16]struct{}, len(j.Shares))
	for _, rs := range j.Shares {
		if int(rs.Accuser) >= len(s.members) || !s.accused[sender][rs.Accuser] {
			str := fmt.Sprintf("justification reveals a share for member "+
				"%d which did not complain", rs.Accuser)
			return ruleError(ErrMalformedMessage, str)
		}
		if _, ok := seen[rs.Accuser]; ok {
			str := fmt.Sprintf("justification reveals two shares for "+
				"member %d", rs.Accuser)
			return ruleError(ErrMalformedMessage, str)
		}
		seen[rs.Accuser] = struct{}{}
	}
	var prev Message
	if p := s.justifications[sender]; p != nil {
		prev = p
	}
	if err := s.checkFirst(j, prev); err != nil {
		return err
	}

	s.justifications[sender] = j
	if !s.contribValid[sender] {
		// Members without a valid contribution are bad regardless.
		return nil
	}
	vvec := s.contributions[sender].VVec
	for _, rs := range j.Shares {
		err := s.crypto.VerifyShare(vvec, rs.Accuser, rs.Share)
		if errors.Is(err, ErrInvalidShare) || errors.Is(err, ErrInvalidVerificationVector) {
			log.Debugf("Member %d of %v quorum %v revealed an invalid "+
				"share for member %d: %v", sender, s.params.Type,
				s.quorumHash, rs.Accuser, err)
			s.provenBad[sender] = true
			continue
		}
		if err != nil {
			return err
		}
		s.resolved[sender][rs.Accuser] = true
	}
	return nil
}

// evaluate determines the valid and bad members.  A member is bad when it
// has no valid contribution, revealed an invalid share, or has at least
// DKGBadVotesThreshold unresolved accusers.  A member is valid when it has a
// valid contribution and no unresolved accuser.
func (s *Session) evaluate() {
	for i := range s.members {
		var unresolved int
		for j := range s.members {
			if s.accused[i][j] && !s.resolved[i][j] {
				unresolved++
			}
		}
		switch {
		case !s.contribValid[i] || s.provenBad[i] ||
			unresolved >= s.params.DKGBadVotesThreshold:
			s.bad = append(s.bad, uint16(i))
		case unresolved == 0:
			s.valid = append(s.valid, uint16(i))
		}
	}
	if len(s.valid) < s.params.MinSize {
		log.Warnf("%v quorum %v failed: %d valid members, need %d",
			s.params.Type, s.quorumHash, len(s.valid), s.params.MinSize)
		s.outcome.Status = StatusFailedNoQuorum
	}
}

// finalize assembles the final commitment from the contributions of the
// valid members.
func (s *Session) finalize() {
	if s.outcome.Status != StatusPending {
		return
	}
	vvecs := make([][][]byte, 0, len(s.valid))
	validMembers := bitset.NewBytes(s.params.Size)
	for _, i := range s.valid {
		vvecs = append(vvecs, s.contributions[i].VVec)
		validMembers.Set(int(i))
	}
	agg, err := s.crypto.AggregateVerificationVectors(vvecs)
	if err != nil {
		log.Errorf("Unable to aggregate %v quorum %v: %v", s.params.Type,
			s.quorumHash, err)
		s.outcome.Status = StatusFailedNoQuorum
		return
	}

	signers := make(bitset.Bytes, len(validMembers))
	copy(signers, validMembers)
	s.outcome = Outcome{
		Status: StatusFinalized,
		Commitment: &FinalCommitment{
			Version:         CommitmentVersion,
			LLMQType:        s.params.Type,
			QuorumHash:      s.quorumHash,
			Signers:         signers,
			ValidMembers:    validMembers,
			QuorumPublicKey: agg[0],
			QuorumVvecHash:  chainhash.HashH(bytes.Join(agg, nil)),
		},
	}
	log.Debugf("Finalized %v quorum %v with %d valid members", s.params.Type,
		s.quorumHash, len(s.valid))
}

// Outcome returns the outcome of the session.
func (s *Session) Outcome() Outcome {
	s.mtx.Lock()
	outcome := s.outcome
	s.mtx.Unlock()
	return outcome
}

// ValidMembers returns the indexes of the valid members once the session
// reached the commit phase.
func (s *Session) ValidMembers() []uint16 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]uint16(nil), s.valid...)
}

// BadMembers returns the indexes of the bad members once the session reached
// the commit phase.
func (s *Session) BadMembers() []uint16 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]uint16(nil), s.bad...)
}
