// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"fmt"
	"io"

	bls "github.com/cloudflare/circl/ecc/bls12381"
)

const (
	// PublicKeySize is the size of a compressed group element of a
	// verification vector.
	PublicKeySize = bls.G1SizeCompressed

	// ShareSize is the size of a serialized secret share.
	ShareSize = bls.ScalarSize
)

// BLSCrypto implements Crypto with Feldman verifiable secret sharing over the
// G1 group of BLS12-381.  The share of the member at index i is the dealer
// polynomial evaluated at i+1.
type BLSCrypto struct{}

var _ Crypto = BLSCrypto{}

func parseVVec(vvec [][]byte) ([]bls.G1, error) {
	points := make([]bls.G1, len(vvec))
	for i, b := range vvec {
		if len(b) != PublicKeySize {
			str := fmt.Sprintf("verification vector element %d has size %d, "+
				"want %d", i, len(b), PublicKeySize)
			return nil, ruleError(ErrInvalidVerificationVector, str)
		}
		if err := points[i].SetBytes(b); err != nil {
			str := fmt.Sprintf("verification vector element %d is not a "+
				"valid group element: %v", i, err)
			return nil, ruleError(ErrInvalidVerificationVector, str)
		}
	}
	return points, nil
}

// VerifyVerificationVector returns an error when the verification vector does
// not hold exactly threshold valid group elements or commits to an identity
// public key.
func (BLSCrypto) VerifyVerificationVector(vvec [][]byte, threshold int) error {
	if len(vvec) != threshold {
		str := fmt.Sprintf("verification vector has %d elements, want %d",
			len(vvec), threshold)
		return ruleError(ErrInvalidVerificationVector, str)
	}
	points, err := parseVVec(vvec)
	if err != nil {
		return err
	}
	if points[0].IsIdentity() {
		return ruleError(ErrInvalidVerificationVector,
			"verification vector commits to the identity")
	}
	return nil
}

// VerifyShare checks share*G == sum(vvec[j] * x^j) with x = memberIndex+1.
func (BLSCrypto) VerifyShare(vvec [][]byte, memberIndex uint16, share []byte) error {
	points, err := parseVVec(vvec)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return ruleError(ErrInvalidVerificationVector,
			"empty verification vector")
	}
	if len(share) != ShareSize {
		str := fmt.Sprintf("share has size %d, want %d", len(share), ShareSize)
		return ruleError(ErrInvalidShare, str)
	}
	var s bls.Scalar
	if err := s.UnmarshalBinary(share); err != nil {
		str := fmt.Sprintf("share is not a valid scalar: %v", err)
		return ruleError(ErrInvalidShare, str)
	}

	var x bls.Scalar
	x.SetUint64(uint64(memberIndex) + 1)

	// Horner evaluation of the committed polynomial in the exponent.
	var want bls.G1
	want.SetIdentity()
	for j := len(points) - 1; j >= 0; j-- {
		want.ScalarMult(&x, &want)
		want.Add(&want, &points[j])
	}

	var got bls.G1
	got.ScalarMult(&s, bls.G1Generator())
	if !got.IsEqual(&want) {
		str := fmt.Sprintf("share for member %d does not match the "+
			"verification vector", memberIndex)
		return ruleError(ErrInvalidShare, str)
	}
	return nil
}

// AggregateVerificationVectors sums the verification vectors element-wise.
func (BLSCrypto) AggregateVerificationVectors(vvecs [][][]byte) ([][]byte, error) {
	if len(vvecs) == 0 {
		return nil, ruleError(ErrInvalidVerificationVector,
			"no verification vectors to aggregate")
	}
	var sum []bls.G1
	for i, vvec := range vvecs {
		points, err := parseVVec(vvec)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			sum = points
			continue
		}
		if len(points) != len(sum) {
			str := fmt.Sprintf("verification vector %d has %d elements, "+
				"want %d", i, len(points), len(sum))
			return nil, ruleError(ErrInvalidVerificationVector, str)
		}
		for j := range sum {
			sum[j].Add(&sum[j], &points[j])
		}
	}
	agg := make([][]byte, len(sum))
	for j := range sum {
		agg[j] = sum[j].BytesCompressed()
	}
	return agg, nil
}

// GenerateContribution deals a fresh random polynomial of the provided
// threshold and returns its verification vector and the shares of n members.
func GenerateContribution(rand io.Reader, threshold, n int) (vvec, shares [][]byte, err error) {
	if threshold < 1 || n < threshold {
		return nil, nil, fmt.Errorf("invalid threshold %d for %d members",
			threshold, n)
	}
	coeffs := make([]bls.Scalar, threshold)
	vvec = make([][]byte, threshold)
	for j := range coeffs {
		if err := coeffs[j].Random(rand); err != nil {
			return nil, nil, err
		}
		var p bls.G1
		p.ScalarMult(&coeffs[j], bls.G1Generator())
		vvec[j] = p.BytesCompressed()
	}

	shares = make([][]byte, n)
	for i := range shares {
		var x, acc bls.Scalar
		x.SetUint64(uint64(i) + 1)
		for j := threshold - 1; j >= 0; j-- {
			acc.Mul(&acc, &x)
			acc.Add(&acc, &coeffs[j])
		}
		shares[i], err = acc.MarshalBinary()
		if err != nil {
			return nil, nil, err
		}
	}
	return vvec, shares, nil
}
