// Copyright (c) 2023-2024 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"bytes"
	"fmt"
	"hash"

	"github.com/decred/dcrd/crypto/blake256"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

const tag = "adotd-llmq-dkg-signature"

// SignMessage creates a signature for the message m with the operator key of
// its author and writes the signature into the message.
func SignMessage(m Message, priv *secp256k1.PrivateKey) error {
	h := blake256.New()
	sig, err := schnorr.Sign(priv, sigHash(h, m))
	if err != nil {
		return err
	}
	copy(m.Sig(), sig.Serialize())
	return nil
}

// VerifyMessage verifies that a message carries a valid signature for the
// provided serialized operator public key.
func VerifyMessage(m Message, pub []byte) bool {
	pkParsed, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return false
	}
	sigParsed, err := schnorr.ParseSignature(m.Sig())
	if err != nil {
		return false
	}
	h := blake256.New()
	return sigParsed.Verify(sigHash(h, m), pkParsed)
}

// sigHash returns the hash committed to by the signature of m.  The hash of
// the signed data is bound to the message command, quorum type and quorum
// hash so a signature can not be replayed in another session.
func sigHash(h hash.Hash, m Message) []byte {
	m.WriteSignedData(h)
	dataHash := h.Sum(nil)

	h.Reset()

	quorum := m.Quorum()
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, tag+",%s,%d,%x,%d,%x", m.Command(), uint8(m.Type()),
		quorum[:], m.Sender(), dataHash)
	h.Write(buf.Bytes())
	return h.Sum(nil)
}
