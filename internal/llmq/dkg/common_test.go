// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"math/rand"
	"testing"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/jrick/bitset"
)

// testLLMQParams returns the parameters of a five member quorum with a
// threshold of three where two unresolved complaints make a member bad.
func testLLMQParams() *chaincfg.LLMQParams {
	return &chaincfg.LLMQParams{
		Type:                     chaincfg.LLMQ5_60,
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
	}
}

const testStartHeight = 48

var testQuorumHash = chainhash.Hash{0xaa, 0xbb}

// Member indexes used by the session tests.
const (
	memberA uint16 = iota
	memberB
	memberC
	memberD
	memberE
)

// testKey returns the deterministic operator key of the member at index i.
func testKey(i int) *secp256k1.PrivateKey {
	return secp256k1.PrivKeyFromBytes([]byte{30: 0x01, 31: byte(i + 1)})
}

// testMembers returns n masternodes with deterministic keys.
func testMembers(n int) []Masternode {
	members := make([]Masternode, n)
	for i := range members {
		members[i] = Masternode{
			ProTxHash:   chainhash.Hash{0: byte(i + 1), 31: 0x5a},
			OperatorKey: testKey(i).PubKey().SerializeCompressed(),
		}
	}
	return members
}

// testQuorum is a session together with a participant for every member.
type testQuorum struct {
	t       *testing.T
	params  *chaincfg.LLMQParams
	session *Session
	parts   []*Participant
	rand    *rand.Rand
}

func newTestQuorum(t *testing.T, params *chaincfg.LLMQParams) *testQuorum {
	t.Helper()
	return newTestQuorumMembers(t, params, params.Size)
}

// newTestQuorumMembers returns a test quorum with n members, which may be
// fewer than the size of the quorum type.
func newTestQuorumMembers(t *testing.T, params *chaincfg.LLMQParams, n int) *testQuorum {
	t.Helper()

	members := testMembers(n)
	s := NewSession(&SessionConfig{
		Params:      params,
		StartHeight: testStartHeight,
		QuorumHash:  testQuorumHash,
		Members:     members,
		Crypto:      BLSCrypto{},
	})
	parts := make([]*Participant, len(members))
	for i := range parts {
		parts[i] = NewParticipant(s, uint16(i), testKey(i))
	}
	return &testQuorum{
		t:       t,
		params:  params,
		session: s,
		parts:   parts,
		rand:    rand.New(rand.NewSource(1)),
	}
}

// heightOf returns the first height of the provided phase.
func (q *testQuorum) heightOf(phase Phase) int64 {
	return testStartHeight + int64(phase-PhaseInitialized)*q.params.DKGPhaseBlocks
}

// advance steps the session to the first height of the provided phase.
func (q *testQuorum) advance(phase Phase) {
	q.t.Helper()
	if got := q.session.AdvanceTo(q.heightOf(phase)); got != phase {
		q.t.Fatalf("session in phase %v, want %v", got, phase)
	}
}

// contributeAll makes every member contribute and returns the
// contributions.
func (q *testQuorum) contributeAll() []*Contribution {
	q.t.Helper()
	q.advance(PhaseContribute)
	contribs := make([]*Contribution, len(q.parts))
	for i, p := range q.parts {
		c, err := p.Contribute(q.rand)
		if err != nil {
			q.t.Fatalf("member %d failed to contribute: %v", i, err)
		}
		if err := q.session.ReceiveContribution(c); err != nil {
			q.t.Fatalf("contribution of member %d rejected: %v", i, err)
		}
		contribs[i] = c
	}
	return contribs
}

// complain makes accuser complain about the accused members.
func (q *testQuorum) complain(accuser uint16, accused ...uint16) *Complaint {
	q.t.Helper()
	set := bitset.NewBytes(q.params.Size)
	for _, a := range accused {
		set.Set(int(a))
	}
	c, err := q.parts[accuser].ComplainAbout(set)
	if err != nil {
		q.t.Fatalf("unable to create complaint: %v", err)
	}
	if err := q.session.ReceiveComplaint(c); err != nil {
		q.t.Fatalf("complaint of member %d rejected: %v", accuser, err)
	}
	return c
}
