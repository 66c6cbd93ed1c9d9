// Package testutil builds fully populated random values for property tests.
// Every factory takes the pseudorandom source explicitly, so a seeded
// source reproduces the same values.
package testutil

import (
	"encoding/binary"

	"github.com/geanlabs/leanattest/common/bitfield"
	"github.com/geanlabs/leanattest/common/types"
	"github.com/geanlabs/leanattest/crypto/bls"
	atttypes "github.com/geanlabs/leanattest/types"
)

// Source is satisfied by *math/rand/v2.Rand and most other generators.
type Source interface {
	Uint64() uint64
}

// MaxRandomBits bounds the bitfields RandomBitfield produces.
const MaxRandomBits = 256

func RandomBytes(src Source, n int) []byte {
	out := make([]byte, 0, n+8)
	for len(out) < n {
		out = binary.LittleEndian.AppendUint64(out, src.Uint64())
	}
	return out[:n]
}

func RandomRoot(src Source) types.Root {
	var r types.Root
	copy(r[:], RandomBytes(src, len(r)))
	return r
}

// RandomBitfield returns a bitfield with a whole number of bytes, so that it
// compares equal to itself after a round trip.
func RandomBitfield(src Source) *bitfield.Bitfield {
	n := int(src.Uint64()%(MaxRandomBits/8)) * 8
	return RandomBitfieldOfLen(src, n)
}

// RandomBitfieldOfLen returns a bitfield of exactly n bits.
func RandomBitfieldOfLen(src Source, n int) *bitfield.Bitfield {
	b := bitfield.New(n)
	for i := 0; i < n; i++ {
		if src.Uint64()&1 == 1 {
			_ = b.Set(i, true)
		}
	}
	return b
}

func RandomCrosslink(src Source) atttypes.Crosslink {
	return atttypes.Crosslink{
		Epoch:          types.Epoch(src.Uint64()),
		ShardBlockRoot: RandomRoot(src),
	}
}

func RandomAttestationData(src Source) atttypes.AttestationData {
	return atttypes.AttestationData{
		Slot:               types.Slot(src.Uint64()),
		Shard:              types.Shard(src.Uint64()),
		BeaconBlockRoot:    RandomRoot(src),
		EpochBoundaryRoot:  RandomRoot(src),
		ShardBlockRoot:     RandomRoot(src),
		LatestCrosslink:    RandomCrosslink(src),
		JustifiedEpoch:     types.Epoch(src.Uint64()),
		JustifiedBlockRoot: RandomRoot(src),
	}
}

// RandomAggregateSignature returns 96 random bytes. They are almost never a
// valid curve point.
func RandomAggregateSignature(src Source) *bls.AggregateSignature {
	return bls.AggregateSignatureFromRaw(RandomBytes(src, bls.SignatureSize))
}

func RandomAttestation(src Source) *atttypes.Attestation {
	return &atttypes.Attestation{
		AggregationBitfield: RandomBitfield(src),
		Data:                RandomAttestationData(src),
		CustodyBitfield:     RandomBitfield(src),
		AggregateSignature:  RandomAggregateSignature(src),
	}
}

// RandomSecretKey derives a valid secret key from src. The top two bits are
// cleared so the scalar is below the curve order.
func RandomSecretKey(src Source) *bls.SecretKey {
	for {
		b := RandomBytes(src, bls.SecretKeySize)
		b[0] &= 0x3f
		if k, err := bls.SecretKeyFromBytes(b); err == nil {
			return k
		}
	}
}
