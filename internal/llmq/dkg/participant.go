// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/jrick/bitset"
)

// Participant creates the messages of the local member of a session.
type Participant struct {
	session *Session
	index   uint16
	key     *secp256k1.PrivateKey
	shares  [][]byte
}

// NewParticipant returns a participant for the member at the provided index
// that signs with the provided operator key.
func NewParticipant(s *Session, index uint16, key *secp256k1.PrivateKey) *Participant {
	return &Participant{session: s, index: index, key: key}
}

// Index returns the member index of the participant.
func (p *Participant) Index() uint16 { return p.index }

func (p *Participant) header() Header {
	return Header{
		LLMQType:   p.session.params.Type,
		QuorumHash: p.session.quorumHash,
		Member:     p.index,
	}
}

// Contribute deals a new polynomial and returns the signed contribution.
func (p *Participant) Contribute(rand io.Reader) (*Contribution, error) {
	vvec, shares, err := GenerateContribution(rand, p.session.params.Threshold,
		len(p.session.members))
	if err != nil {
		return nil, err
	}
	p.shares = shares
	c := &Contribution{Header: p.header(), VVec: vvec, Shares: shares}
	if err := SignMessage(c, p.key); err != nil {
		return nil, err
	}
	return c, nil
}

// Complain verifies the share dealt to the participant by every other
// contribution and returns a signed complaint against the dealers of invalid
// shares.  It returns nil when there is nothing to complain about.
func (p *Participant) Complain(contributions []*Contribution) (*Complaint, error) {
	n := len(p.session.members)
	accused := bitset.NewBytes(p.session.params.Size)
	var found bool
	for _, c := range contributions {
		if c.Member == p.index || int(c.Member) >= n {
			continue
		}
		var err error
		if int(p.index) >= len(c.Shares) {
			err = ruleError(ErrInvalidShare, "missing share")
		} else {
			err = p.session.crypto.VerifyShare(c.VVec, p.index,
				c.Shares[p.index])
		}
		if err != nil {
			accused.Set(int(c.Member))
			found = true
		}
	}
	if !found {
		return nil, nil
	}
	return p.ComplainAbout(accused)
}

// ComplainAbout returns a signed complaint against the members set in the
// provided bitset.
func (p *Participant) ComplainAbout(accused bitset.Bytes) (*Complaint, error) {
	c := &Complaint{Header: p.header(), Accused: accused}
	if err := SignMessage(c, p.key); err != nil {
		return nil, err
	}
	return c, nil
}

// Justify returns a signed justification revealing the shares the
// participant dealt to every member that complained about it.  It returns
// nil when nobody complained.
func (p *Participant) Justify(complaints []*Complaint) (*Justification, error) {
	var shares []RevealedShare
	for _, c := range complaints {
		if c.Member == p.index || int(p.index) >= len(c.Accused)*8 ||
			!c.Accused.Get(int(p.index)) {
			continue
		}
		if int(c.Member) >= len(p.shares) {
			continue
		}
		shares = append(shares, RevealedShare{
			Accuser: c.Member,
			Share:   p.shares[c.Member],
		})
	}
	if len(shares) == 0 {
		return nil, nil
	}
	j := &Justification{Header: p.header(), Shares: shares}
	if err := SignMessage(j, p.key); err != nil {
		return nil, err
	}
	return j, nil
}
