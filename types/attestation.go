package types

import (
	"errors"
	"fmt"

	"github.com/geanlabs/leanattest/common/bitfield"
	"github.com/geanlabs/leanattest/common/ssz"
	"github.com/geanlabs/leanattest/common/types"
	"github.com/geanlabs/leanattest/crypto/bls"
)

var (
	ErrBitfieldLength   = errors.New("bitfield length does not match committee size")
	ErrBitfieldMismatch = errors.New("aggregation and custody bitfields differ in length")
	ErrCustodyNotSubset = errors.New("custody bitfield has bits outside the aggregation bitfield")
)

// Attestation is an aggregate vote by a committee on AttestationData.
//
// Encoding order: aggregation bitfield (length-prefixed), data (fixed),
// custody bitfield (length-prefixed), aggregate signature (fixed 96 bytes).
type Attestation struct {
	AggregationBitfield *bitfield.Bitfield
	Data                AttestationData
	CustodyBitfield     *bitfield.Bitfield
	AggregateSignature  *bls.AggregateSignature
}

func (a *Attestation) EncodeSSZ(dst []byte) []byte {
	dst = bitfieldOrEmpty(a.AggregationBitfield).EncodeSSZ(dst)
	dst = a.Data.EncodeSSZ(dst)
	dst = bitfieldOrEmpty(a.CustodyBitfield).EncodeSSZ(dst)
	return signatureOrEmpty(a.AggregateSignature).EncodeSSZ(dst)
}

func (a *Attestation) DecodeSSZ(buf []byte, offset int) (int, error) {
	var (
		out  Attestation
		agg  bitfield.Bitfield
		cust bitfield.Bitfield
		sig  bls.AggregateSignature
		next int
		err  error
	)
	if next, err = agg.DecodeSSZ(buf, offset); err != nil {
		return offset, fmt.Errorf("aggregation bitfield: %w", err)
	}
	if next, err = out.Data.DecodeSSZ(buf, next); err != nil {
		return offset, fmt.Errorf("data: %w", err)
	}
	if next, err = cust.DecodeSSZ(buf, next); err != nil {
		return offset, fmt.Errorf("custody bitfield: %w", err)
	}
	if next, err = sig.DecodeSSZ(buf, next); err != nil {
		return offset, fmt.Errorf("aggregate signature: %w", err)
	}
	out.AggregationBitfield, out.CustodyBitfield, out.AggregateSignature = &agg, &cust, &sig
	*a = out
	return next, nil
}

// HashTreeRoot merkleizes the four field roots.
func (a *Attestation) HashTreeRoot() types.Root {
	return ssz.HashTreeRootContainer(
		bitfieldOrEmpty(a.AggregationBitfield).HashTreeRoot(),
		a.Data.HashTreeRoot(),
		bitfieldOrEmpty(a.CustodyBitfield).HashTreeRoot(),
		signatureOrEmpty(a.AggregateSignature).HashTreeRoot(),
	)
}

// CanonicalRoot is the content address of the attestation.
func (a *Attestation) CanonicalRoot() types.Root {
	return a.HashTreeRoot()
}

// SignableMessage returns the message the committee signed for custodyBit.
func (a *Attestation) SignableMessage(custodyBit bool) []byte {
	return a.Data.SignableMessage(custodyBit)
}

// VerifySignature checks the aggregate signature against groupKey over the
// custodyBit variant of the message under domain. Any failure is false.
func (a *Attestation) VerifySignature(groupKey *bls.AggregatePublicKey, custodyBit bool, domain types.Domain) bool {
	return a.AggregateSignature.Verify(a.SignableMessage(custodyBit), domain, groupKey)
}

// Equal compares attestations by canonical encoding.
func (a *Attestation) Equal(other *Attestation) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Data == other.Data &&
		bitfieldOrEmpty(a.AggregationBitfield).Equal(bitfieldOrEmpty(other.AggregationBitfield)) &&
		bitfieldOrEmpty(a.CustodyBitfield).Equal(bitfieldOrEmpty(other.CustodyBitfield)) &&
		signatureOrEmpty(a.AggregateSignature).Equal(signatureOrEmpty(other.AggregateSignature))
}

// ValidateBitfields checks both bitfields against a committee of
// committeeSize members. Signature verification does not call this.
func (a *Attestation) ValidateBitfields(committeeSize int) error {
	agg := bitfieldOrEmpty(a.AggregationBitfield)
	cust := bitfieldOrEmpty(a.CustodyBitfield)
	want := len(bitfield.New(committeeSize).Bytes())
	if len(agg.Bytes()) != want {
		return fmt.Errorf("%w: aggregation has %d bytes, committee of %d needs %d",
			ErrBitfieldLength, len(agg.Bytes()), committeeSize, want)
	}
	if len(cust.Bytes()) != len(agg.Bytes()) {
		return fmt.Errorf("%w: %d != %d bytes", ErrBitfieldMismatch, len(cust.Bytes()), len(agg.Bytes()))
	}
	for i := committeeSize; i < agg.Len(); i++ {
		if agg.Get(i) || cust.Get(i) {
			return fmt.Errorf("%w: bit %d set beyond committee size %d", ErrBitfieldLength, i, committeeSize)
		}
	}
	for i := 0; i < committeeSize; i++ {
		if cust.Get(i) && !agg.Get(i) {
			return fmt.Errorf("%w: bit %d", ErrCustodyNotSubset, i)
		}
	}
	return nil
}

func bitfieldOrEmpty(b *bitfield.Bitfield) *bitfield.Bitfield {
	if b == nil {
		return bitfield.New(0)
	}
	return b
}

func signatureOrEmpty(s *bls.AggregateSignature) *bls.AggregateSignature {
	if s == nil {
		return &bls.AggregateSignature{}
	}
	return s
}
