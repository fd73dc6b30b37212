// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"errors"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/jrick/bitset"
)

// TestSessionComplaints ensures the valid and bad members and the outcome of
// sessions follow from the complaints filed against members.
func TestSessionComplaints(t *testing.T) {
	tests := []struct {
		name       string
		complaints map[uint16][]uint16 // accuser -> accused
		wantValid  []uint16
		wantBad    []uint16
		wantStatus Status
	}{{
		name:       "no complaints",
		wantValid:  []uint16{memberA, memberB, memberC, memberD, memberE},
		wantStatus: StatusFinalized,
	}, {
		name: "two unjustified complaints make a member bad",
		complaints: map[uint16][]uint16{
			memberB: {memberA},
			memberC: {memberA},
		},
		wantValid:  []uint16{memberB, memberC, memberD, memberE},
		wantBad:    []uint16{memberA},
		wantStatus: StatusFinalized,
	}, {
		name: "one unjustified complaint excludes without marking bad",
		complaints: map[uint16][]uint16{
			memberB: {memberA},
		},
		wantValid:  []uint16{memberB, memberC, memberD, memberE},
		wantStatus: StatusFinalized,
	}, {
		name: "three accusers of two members each",
		complaints: map[uint16][]uint16{
			memberA: {memberC, memberD},
			memberB: {memberC, memberE},
			memberC: {memberD, memberE},
		},
		wantValid:  []uint16{memberA, memberB},
		wantBad:    []uint16{memberC, memberD, memberE},
		wantStatus: StatusFailedNoQuorum,
	}}

	for _, test := range tests {
		q := newTestQuorum(t, testLLMQParams())
		q.contributeAll()
		q.advance(PhaseComplain)
		for accuser := memberA; accuser <= memberE; accuser++ {
			if accused, ok := test.complaints[accuser]; ok {
				q.complain(accuser, accused...)
			}
		}
		q.advance(PhaseFinalize)

		if got := q.session.ValidMembers(); !reflect.DeepEqual(got, test.wantValid) {
			t.Errorf("%q: mismatched valid members -- got %v, want %v",
				test.name, got, test.wantValid)
		}
		if got := q.session.BadMembers(); !reflect.DeepEqual(got, test.wantBad) {
			t.Errorf("%q: mismatched bad members -- got %v, want %v",
				test.name, got, test.wantBad)
		}
		outcome := q.session.Outcome()
		if outcome.Status != test.wantStatus {
			t.Errorf("%q: unexpected status -- got %v, want %v", test.name,
				outcome.Status, test.wantStatus)
			continue
		}
		if outcome.Status != StatusFinalized {
			if outcome.Commitment != nil {
				t.Errorf("%q: failed session has a commitment", test.name)
			}
			continue
		}
		fc := outcome.Commitment
		if got := fc.CountValidMembers(); got != len(test.wantValid) {
			t.Errorf("%q: commitment has %d valid members, want %d",
				test.name, got, len(test.wantValid))
		}
		for _, i := range test.wantValid {
			if !fc.ValidMembers.Get(int(i)) || !fc.Signers.Get(int(i)) {
				t.Errorf("%q: member %d missing from commitment", test.name, i)
			}
		}
		err := CheckCommitment(q.params, testQuorumHash, testStartHeight,
			testStartHeight+q.params.DKGMiningWindowStart, fc, false)
		if err != nil {
			t.Errorf("%q: finalized commitment rejected: %v", test.name, err)
		}
	}
}

// TestSessionJustification ensures revealed shares resolve complaints when
// they match the verification vector of the accused member and prove it bad
// otherwise.
func TestSessionJustification(t *testing.T) {
	t.Run("valid justification", func(t *testing.T) {
		q := newTestQuorum(t, testLLMQParams())
		q.contributeAll()
		q.advance(PhaseComplain)
		c1 := q.complain(memberB, memberA)
		c2 := q.complain(memberC, memberA)
		q.advance(PhaseJustify)
		j, err := q.parts[memberA].Justify([]*Complaint{c1, c2})
		if err != nil {
			t.Fatalf("unable to justify: %v", err)
		}
		if len(j.Shares) != 2 {
			t.Fatalf("justification reveals %d shares, want 2", len(j.Shares))
		}
		if err := q.session.ReceiveJustification(j); err != nil {
			t.Fatalf("justification rejected: %v", err)
		}
		q.advance(PhaseFinalize)
		if got := q.session.ValidMembers(); len(got) != 5 {
			t.Fatalf("unexpected valid members %v", got)
		}
	})

	t.Run("invalid justification", func(t *testing.T) {
		q := newTestQuorum(t, testLLMQParams())
		contribs := q.contributeAll()
		q.advance(PhaseComplain)
		q.complain(memberB, memberA)
		q.advance(PhaseJustify)
		j := &Justification{
			Header: q.parts[memberA].header(),
			Shares: []RevealedShare{{
				Accuser: memberB,
				Share:   contribs[memberA].Shares[memberC],
			}},
		}
		if err := SignMessage(j, testKey(int(memberA))); err != nil {
			t.Fatalf("unable to sign: %v", err)
		}
		if err := q.session.ReceiveJustification(j); err != nil {
			t.Fatalf("justification rejected: %v", err)
		}
		q.advance(PhaseFinalize)
		if got := q.session.BadMembers(); !reflect.DeepEqual(got, []uint16{memberA}) {
			t.Fatalf("unexpected bad members %v", got)
		}
	})

	t.Run("dealer sends a bad share", func(t *testing.T) {
		q := newTestQuorum(t, testLLMQParams())
		q.advance(PhaseContribute)
		contribs := make([]*Contribution, 0, len(q.parts))
		for i, p := range q.parts {
			c, err := p.Contribute(q.rand)
			if err != nil {
				t.Fatalf("unable to contribute: %v", err)
			}
			if uint16(i) == memberA {
				// Deal member B the share of member C.
				c.Shares = append([][]byte(nil), c.Shares...)
				c.Shares[memberB] = c.Shares[memberC]
				if err := SignMessage(c, testKey(i)); err != nil {
					t.Fatalf("unable to sign: %v", err)
				}
			}
			if err := q.session.ReceiveContribution(c); err != nil {
				t.Fatalf("contribution rejected: %v", err)
			}
			contribs = append(contribs, c)
		}

		q.advance(PhaseComplain)
		var complaints []*Complaint
		for i, p := range q.parts {
			c, err := p.Complain(contribs)
			if err != nil {
				t.Fatalf("unable to complain: %v", err)
			}
			if c == nil {
				continue
			}
			if uint16(i) != memberB || !c.Accused.Get(int(memberA)) {
				t.Fatalf("unexpected complaint %v", spew.Sdump(c))
			}
			if err := q.session.ReceiveComplaint(c); err != nil {
				t.Fatalf("complaint rejected: %v", err)
			}
			complaints = append(complaints, c)
		}
		if len(complaints) != 1 {
			t.Fatalf("got %d complaints, want 1", len(complaints))
		}

		// The participant of member A still holds the shares it dealt
		// honestly, so revealing them resolves the complaint.
		q.advance(PhaseJustify)
		j, err := q.parts[memberA].Justify(complaints)
		if err != nil {
			t.Fatalf("unable to justify: %v", err)
		}
		if err := q.session.ReceiveJustification(j); err != nil {
			t.Fatalf("justification rejected: %v", err)
		}
		q.advance(PhaseFinalize)
		if got := q.session.Outcome().Status; got != StatusFinalized {
			t.Fatalf("unexpected status %v", got)
		}
		if got := q.session.ValidMembers(); len(got) != 5 {
			t.Fatalf("unexpected valid members %v", got)
		}
	})
}

// TestSessionMessageRules ensures messages are rejected with the expected
// error kinds.
func TestSessionMessageRules(t *testing.T) {
	q := newTestQuorum(t, testLLMQParams())

	early, err := q.parts[memberA].Contribute(q.rand)
	if err != nil {
		t.Fatalf("unable to contribute: %v", err)
	}
	if err := q.session.ReceiveContribution(early); !errors.Is(err, ErrPrematureMessage) {
		t.Fatalf("unexpected error for premature contribution: %v", err)
	}

	contribs := q.contributeAll()
	if err := q.session.ReceiveContribution(contribs[memberA]); !errors.Is(err, ErrDuplicateMessage) {
		t.Fatalf("unexpected error for duplicate contribution: %v", err)
	}
	if err := q.session.ReceiveContribution(early); !errors.Is(err, ErrEquivocation) {
		t.Fatalf("unexpected error for second contribution: %v", err)
	}

	wrongSession := *contribs[memberB]
	wrongSession.QuorumHash[0] ^= 0xff
	if err := q.session.ReceiveContribution(&wrongSession); !errors.Is(err, ErrWrongSession) {
		t.Fatalf("unexpected error for wrong session: %v", err)
	}
	notMember := *contribs[memberB]
	notMember.Member = 9
	if err := q.session.ReceiveContribution(&notMember); !errors.Is(err, ErrNotMember) {
		t.Fatalf("unexpected error for unknown member: %v", err)
	}
	forged := *contribs[memberB]
	forged.Member = memberC
	if err := q.session.ReceiveContribution(&forged); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("unexpected error for forged contribution: %v", err)
	}

	q.advance(PhaseComplain)
	if err := q.session.ReceiveContribution(contribs[memberA]); !errors.Is(err, ErrLateMessage) {
		t.Fatalf("unexpected error for late contribution: %v", err)
	}
	selfSet := bitset.NewBytes(q.params.Size)
	selfSet.Set(int(memberC))
	self, err := q.parts[memberC].ComplainAbout(selfSet)
	if err != nil {
		t.Fatalf("unable to complain: %v", err)
	}
	if err := q.session.ReceiveComplaint(self); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("unexpected error for complaint about self: %v", err)
	}
	c := q.complain(memberB, memberA)
	if err := q.session.ReceiveComplaint(c); !errors.Is(err, ErrDuplicateMessage) {
		t.Fatalf("unexpected error for duplicate complaint: %v", err)
	}

	q.advance(PhaseJustify)
	j, err := q.parts[memberD].Justify([]*Complaint{c})
	if err != nil || j != nil {
		t.Fatalf("unaccused member justified: %v", err)
	}
	unaccused := &Justification{
		Header: q.parts[memberD].header(),
		Shares: []RevealedShare{{Accuser: memberB, Share: make([]byte, ShareSize)}},
	}
	if err := SignMessage(unaccused, testKey(int(memberD))); err != nil {
		t.Fatalf("unable to sign: %v", err)
	}
	if err := q.session.ReceiveJustification(unaccused); !errors.Is(err, ErrNotAccused) {
		t.Fatalf("unexpected error for unaccused justification: %v", err)
	}
}

// TestSessionMissingContribution ensures members that do not contribute are
// bad and that sessions stay pending until they reach the final phase.
func TestSessionMissingContribution(t *testing.T) {
	q := newTestQuorum(t, testLLMQParams())
	q.advance(PhaseContribute)
	for _, i := range []uint16{memberB, memberD, memberE} {
		c, err := q.parts[i].Contribute(q.rand)
		if err != nil {
			t.Fatalf("unable to contribute: %v", err)
		}
		if err := q.session.ReceiveContribution(c); err != nil {
			t.Fatalf("contribution rejected: %v", err)
		}
	}
	q.advance(PhaseJustify)
	if got := q.session.Outcome().Status; got != StatusPending {
		t.Fatalf("unexpected status before commit %v", got)
	}

	// Advancing far past the interval leaves the session finalized.
	if got := q.session.AdvanceTo(testStartHeight + 1000); got != PhaseFinalize {
		t.Fatalf("unexpected phase %v", got)
	}
	if got := q.session.AdvanceTo(testStartHeight); got != PhaseFinalize {
		t.Fatalf("session moved backwards to %v", got)
	}
	if got := q.session.BadMembers(); !reflect.DeepEqual(got, []uint16{memberA, memberC}) {
		t.Fatalf("unexpected bad members %v", got)
	}
	outcome := q.session.Outcome()
	if outcome.Status != StatusFinalized || outcome.Commitment.CountValidMembers() != 3 {
		t.Fatalf("unexpected outcome %v", spew.Sdump(outcome))
	}
}

// TestSessionFewerMembers ensures sessions with fewer members than the size
// of the quorum type use full size bitsets and produce commitments that pass
// validation.
func TestSessionFewerMembers(t *testing.T) {
	params := testLLMQParams()
	params.Size = 10
	params.MinSize = 6
	params.Threshold = 6
	const numMembers = 8

	q := newTestQuorumMembers(t, params, numMembers)
	contribs := q.contributeAll()
	q.advance(PhaseComplain)
	if c, err := q.parts[memberB].Complain(contribs); err != nil || c != nil {
		t.Fatalf("honest member complained: %v", err)
	}

	short := bitset.NewBytes(numMembers)
	short.Set(int(memberA))
	c, err := q.parts[memberB].ComplainAbout(short)
	if err != nil {
		t.Fatalf("unable to complain: %v", err)
	}
	if err := q.session.ReceiveComplaint(c); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("unexpected error for short complaint bitset: %v", err)
	}
	pastLast := bitset.NewBytes(params.Size)
	pastLast.Set(numMembers + 1)
	c, err = q.parts[memberB].ComplainAbout(pastLast)
	if err != nil {
		t.Fatalf("unable to complain: %v", err)
	}
	if err := q.session.ReceiveComplaint(c); !errors.Is(err, ErrNotMember) {
		t.Fatalf("unexpected error for complaint about a non-member: %v", err)
	}
	q.complain(memberB, numMembers-1)
	q.advance(PhaseFinalize)

	outcome := q.session.Outcome()
	if outcome.Status != StatusFinalized {
		t.Fatalf("unexpected outcome %v", spew.Sdump(outcome))
	}
	fc := outcome.Commitment
	want := (params.Size + 7) / 8
	if len(fc.Signers) != want || len(fc.ValidMembers) != want {
		t.Fatalf("commitment bitsets have %d and %d bytes, want %d",
			len(fc.Signers), len(fc.ValidMembers), want)
	}
	if got := fc.CountValidMembers(); got != numMembers-1 {
		t.Fatalf("commitment has %d valid members, want %d", got,
			numMembers-1)
	}
	err = CheckCommitment(params, testQuorumHash, testStartHeight,
		testStartHeight+params.DKGMiningWindowStart, fc, false)
	if err != nil {
		t.Fatalf("finalized commitment rejected: %v", err)
	}
	if err := CheckCommitmentMembers(params, fc, numMembers); err != nil {
		t.Fatalf("finalized commitment rejected: %v", err)
	}
}

// TestSessionSecondComplaint ensures a second, different complaint of a
// member is rejected without changing the recorded accusations.
func TestSessionSecondComplaint(t *testing.T) {
	q := newTestQuorum(t, testLLMQParams())
	q.contributeAll()
	q.advance(PhaseComplain)
	q.complain(memberB, memberA)

	set := bitset.NewBytes(q.params.Size)
	set.Set(int(memberC))
	second, err := q.parts[memberB].ComplainAbout(set)
	if err != nil {
		t.Fatalf("unable to complain: %v", err)
	}
	if err := q.session.ReceiveComplaint(second); !errors.Is(err, ErrEquivocation) {
		t.Fatalf("unexpected error for second complaint: %v", err)
	}
	q.advance(PhaseFinalize)

	want := []uint16{memberB, memberC, memberD, memberE}
	if got := q.session.ValidMembers(); !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatched valid members -- got %v, want %v", got, want)
	}
}

// TestSessionRewind ensures sessions moved back by a reorg accept the
// messages of the phases they return to and determine their members again.
func TestSessionRewind(t *testing.T) {
	q := newTestQuorum(t, testLLMQParams())
	q.contributeAll()
	q.advance(PhaseComplain)
	c := q.complain(memberB, memberA)
	q.advance(PhaseCommit)

	want := []uint16{memberB, memberC, memberD, memberE}
	if got := q.session.ValidMembers(); !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatched valid members -- got %v, want %v", got, want)
	}
	j, err := q.parts[memberA].Justify([]*Complaint{c})
	if err != nil || j == nil {
		t.Fatalf("accused member did not justify: %v", err)
	}
	if err := q.session.ReceiveJustification(j); !errors.Is(err, ErrLateMessage) {
		t.Fatalf("unexpected error for late justification: %v", err)
	}

	// Rewinding never moves a session forward.
	if got := q.session.RewindTo(q.heightOf(PhaseFinalize)); got != PhaseCommit {
		t.Fatalf("rewind moved the session to %v", got)
	}
	if got := q.session.RewindTo(q.heightOf(PhaseJustify)); got != PhaseJustify {
		t.Fatalf("session rewound to %v, want %v", got, PhaseJustify)
	}
	if got := q.session.ValidMembers(); len(got) != 0 {
		t.Fatalf("valid members %v kept after rewinding", got)
	}
	if err := q.session.ReceiveJustification(j); err != nil {
		t.Fatalf("justification rejected after rewinding: %v", err)
	}
	q.advance(PhaseFinalize)

	want = []uint16{memberA, memberB, memberC, memberD, memberE}
	if got := q.session.ValidMembers(); !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatched valid members -- got %v, want %v", got, want)
	}
	outcome := q.session.Outcome()
	if outcome.Status != StatusFinalized || outcome.Commitment.CountValidMembers() != 5 {
		t.Fatalf("unexpected outcome %v", spew.Sdump(outcome))
	}

	// Moving back before the final phase discards the commitment but keeps
	// the members.
	if got := q.session.RewindTo(q.heightOf(PhaseCommit)); got != PhaseCommit {
		t.Fatalf("session rewound to %v, want %v", got, PhaseCommit)
	}
	if got := q.session.Outcome().Status; got != StatusPending {
		t.Fatalf("unexpected status after rewinding %v", got)
	}
	if got := q.session.ValidMembers(); !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatched valid members -- got %v, want %v", got, want)
	}
	q.advance(PhaseFinalize)
	if got := q.session.Outcome().Status; got != StatusFinalized {
		t.Fatalf("unexpected status after advancing again %v", got)
	}
}
