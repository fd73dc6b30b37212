// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"encoding/binary"
	"hash"
	"sort"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/crypto/blake256"
	"github.com/jrick/bitset"
)

// Message commands.
const (
	CmdContribution  = "qcontrib"
	CmdComplaint     = "qcomplaint"
	CmdJustification = "qjustify"
)

// SignatureSize is the size of the Schnorr signature carried by every DKG
// message.
const SignatureSize = 64

// Message describes a signed DKG message sent by a quorum member.
type Message interface {
	// Command returns the message command.
	Command() string

	// Type returns the quorum type of the session the message belongs to.
	Type() chaincfg.LLMQType

	// Quorum returns the quorum hash of the session the message belongs to.
	Quorum() chainhash.Hash

	// Sender returns the member index of the message author.
	Sender() uint16

	// Sig returns the signature of the message.  Signing writes into the
	// returned slice.
	Sig() []byte

	// WriteSignedData writes the message fields covered by the signature.
	WriteSignedData(hash.Hash)

	// Hash returns the hash of the message including its signature.
	Hash() chainhash.Hash
}

// Header holds the fields shared by all DKG messages.
type Header struct {
	LLMQType   chaincfg.LLMQType
	QuorumHash chainhash.Hash
	Member     uint16
	Signature  [SignatureSize]byte
}

// Type returns the quorum type of the message.
func (h *Header) Type() chaincfg.LLMQType { return h.LLMQType }

// Quorum returns the quorum hash of the message.
func (h *Header) Quorum() chainhash.Hash { return h.QuorumHash }

// Sender returns the member index of the message author.
func (h *Header) Sender() uint16 { return h.Member }

// Sig returns the message signature.
func (h *Header) Sig() []byte { return h.Signature[:] }

func (h *Header) writeHeader(w hash.Hash, command string) {
	var buf [1 + chainhash.HashSize + 2]byte
	buf[0] = byte(h.LLMQType)
	copy(buf[1:], h.QuorumHash[:])
	binary.LittleEndian.PutUint16(buf[1+chainhash.HashSize:], h.Member)
	w.Write([]byte(command))
	w.Write(buf[:])
}

func writeVarBytes(w hash.Hash, b []byte) {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(b)))
	w.Write(l[:])
	w.Write(b)
}

func messageHash(m Message) chainhash.Hash {
	h := blake256.New()
	m.WriteSignedData(h)
	h.Write(m.Sig())
	var mh chainhash.Hash
	copy(mh[:], h.Sum(nil))
	return mh
}

// Contribution is the secret sharing contribution of a member.  VVec is the
// verification vector of the polynomial of the member, holding one
// compressed group element per threshold coefficient, and Shares holds the
// secret share for every member of the quorum, indexed by member.  Share
// confidentiality is provided by the transport.
type Contribution struct {
	Header
	VVec   [][]byte
	Shares [][]byte
}

var _ Message = (*Contribution)(nil)

// Command returns the message command.
func (c *Contribution) Command() string { return CmdContribution }

// WriteSignedData writes the signed fields of the contribution.
func (c *Contribution) WriteSignedData(h hash.Hash) {
	c.writeHeader(h, CmdContribution)
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(c.VVec)))
	h.Write(n[:])
	for _, v := range c.VVec {
		writeVarBytes(h, v)
	}
	binary.LittleEndian.PutUint32(n[:], uint32(len(c.Shares)))
	h.Write(n[:])
	for _, s := range c.Shares {
		writeVarBytes(h, s)
	}
}

// Hash returns the hash of the contribution.
func (c *Contribution) Hash() chainhash.Hash { return messageHash(c) }

// Complaint lists the members whose contribution the author could not
// verify.  Accused holds one bit for each of the Size members of a full
// quorum of the quorum type.
type Complaint struct {
	Header
	Accused bitset.Bytes
}

var _ Message = (*Complaint)(nil)

// Command returns the message command.
func (c *Complaint) Command() string { return CmdComplaint }

// WriteSignedData writes the signed fields of the complaint.
func (c *Complaint) WriteSignedData(h hash.Hash) {
	c.writeHeader(h, CmdComplaint)
	writeVarBytes(h, c.Accused)
}

// Hash returns the hash of the complaint.
func (c *Complaint) Hash() chainhash.Hash { return messageHash(c) }

// RevealedShare is the share an accused member dealt to its accuser,
// published in the clear so every member can check it.
type RevealedShare struct {
	Accuser uint16
	Share   []byte
}

// Justification reveals the shares disputed by the accusers of the author.
type Justification struct {
	Header
	Shares []RevealedShare
}

var _ Message = (*Justification)(nil)

// Command returns the message command.
func (j *Justification) Command() string { return CmdJustification }

// WriteSignedData writes the signed fields of the justification.  Shares are
// covered in accuser order.
func (j *Justification) WriteSignedData(h hash.Hash) {
	j.writeHeader(h, CmdJustification)
	shares := make([]RevealedShare, len(j.Shares))
	copy(shares, j.Shares)
	sort.Slice(shares, func(a, b int) bool {
		return shares[a].Accuser < shares[b].Accuser
	})
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(shares)))
	h.Write(n[:])
	for _, s := range shares {
		var acc [2]byte
		binary.LittleEndian.PutUint16(acc[:], s.Accuser)
		h.Write(acc[:])
		writeVarBytes(h, s.Share)
	}
}

// Hash returns the hash of the justification.
func (j *Justification) Hash() chainhash.Hash { return messageHash(j) }
