package bls

import (
	"github.com/herumi/bls-eth-go-binary/bls"

	"github.com/geanlabs/leanattest/common/ssz"
	"github.com/geanlabs/leanattest/common/types"
)

// AggregateSignature is the compressed sum of a set of signatures, kept as
// raw bytes. It is parsed only when verified, so a record carrying a
// malformed signature still encodes, decodes and hashes.
type AggregateSignature struct {
	raw [SignatureSize]byte
}

// AggregateSignatures sums sigs into one aggregate.
func AggregateSignatures(sigs ...*Signature) (*AggregateSignature, error) {
	if len(sigs) == 0 {
		return nil, ErrEmptyAggregate
	}
	Init()
	sum := sigs[0].sig
	for _, s := range sigs[1:] {
		sum.Add(&s.sig)
	}
	return AggregateSignatureFromRaw(sum.Serialize()), nil
}

// AggregateSignatureFromRaw wraps b without parsing it. Bytes beyond
// SignatureSize are ignored and missing bytes are zero.
func AggregateSignatureFromRaw(b []byte) *AggregateSignature {
	a := &AggregateSignature{}
	copy(a.raw[:], b)
	return a
}

func (a *AggregateSignature) Bytes() []byte {
	out := make([]byte, SignatureSize)
	copy(out, a.raw[:])
	return out
}

func (a *AggregateSignature) Equal(other *AggregateSignature) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.raw == other.raw
}

// Verify reports whether a is a valid signature over message under domain for
// the group key. Every failure, including unparsable bytes, is false.
func (a *AggregateSignature) Verify(message []byte, domain types.Domain, key *AggregatePublicKey) bool {
	if a == nil || key == nil || !key.set {
		return false
	}
	Init()
	var sig bls.Sign
	if err := sig.Deserialize(a.raw[:]); err != nil {
		return false
	}
	return sig.VerifyByte(&key.pk, signingInput(message, domain))
}

// EncodeSSZ appends the fixed 96 signature bytes.
func (a *AggregateSignature) EncodeSSZ(dst []byte) []byte {
	return ssz.PutFixedBytes(dst, a.raw[:])
}

func (a *AggregateSignature) DecodeSSZ(buf []byte, offset int) (int, error) {
	var raw [SignatureSize]byte
	next, err := ssz.ReadFixedBytes(buf, offset, raw[:])
	if err != nil {
		return offset, err
	}
	a.raw = raw
	return next, nil
}

func (a *AggregateSignature) HashTreeRoot() types.Root {
	return ssz.HashTreeRootBytes(a.raw[:])
}
