// Package types defines the attestation containers and their canonical
// encoding, hash tree root and signing helpers.
package types

import (
	"github.com/geanlabs/leanattest/common/ssz"
	"github.com/geanlabs/leanattest/common/types"
)

// Crosslink references the latest shard block crossed into the beacon chain.
type Crosslink struct {
	Epoch          types.Epoch
	ShardBlockRoot types.Root
}

const crosslinkSize = 8 + 32

func (c *Crosslink) EncodeSSZ(dst []byte) []byte {
	dst = ssz.PutUint64(dst, uint64(c.Epoch))
	return ssz.PutFixedBytes(dst, c.ShardBlockRoot[:])
}

func (c *Crosslink) DecodeSSZ(buf []byte, offset int) (int, error) {
	epoch, next, err := ssz.ReadUint64(buf, offset)
	if err != nil {
		return offset, err
	}
	var root types.Root
	if next, err = ssz.ReadFixedBytes(buf, next, root[:]); err != nil {
		return offset, err
	}
	c.Epoch, c.ShardBlockRoot = types.Epoch(epoch), root
	return next, nil
}

func (c *Crosslink) HashTreeRoot() types.Root {
	return ssz.HashTreeRootContainer(
		ssz.HashTreeRootUint64(uint64(c.Epoch)),
		c.ShardBlockRoot,
	)
}

// AttestationData is the payload a committee votes on. Every field is fixed
// size, so the encoding is always attestationDataSize bytes.
type AttestationData struct {
	Slot               types.Slot
	Shard              types.Shard
	BeaconBlockRoot    types.Root
	EpochBoundaryRoot  types.Root
	ShardBlockRoot     types.Root
	LatestCrosslink    Crosslink
	JustifiedEpoch     types.Epoch
	JustifiedBlockRoot types.Root
}

const attestationDataSize = 8 + 8 + 32 + 32 + 32 + crosslinkSize + 8 + 32

func (d *AttestationData) EncodeSSZ(dst []byte) []byte {
	dst = ssz.PutUint64(dst, uint64(d.Slot))
	dst = ssz.PutUint64(dst, uint64(d.Shard))
	dst = ssz.PutFixedBytes(dst, d.BeaconBlockRoot[:])
	dst = ssz.PutFixedBytes(dst, d.EpochBoundaryRoot[:])
	dst = ssz.PutFixedBytes(dst, d.ShardBlockRoot[:])
	dst = d.LatestCrosslink.EncodeSSZ(dst)
	dst = ssz.PutUint64(dst, uint64(d.JustifiedEpoch))
	return ssz.PutFixedBytes(dst, d.JustifiedBlockRoot[:])
}

func (d *AttestationData) DecodeSSZ(buf []byte, offset int) (int, error) {
	var (
		out  AttestationData
		v    uint64
		next = offset
		err  error
	)
	if v, next, err = ssz.ReadUint64(buf, next); err != nil {
		return offset, err
	}
	out.Slot = types.Slot(v)
	if v, next, err = ssz.ReadUint64(buf, next); err != nil {
		return offset, err
	}
	out.Shard = types.Shard(v)
	for _, root := range []*types.Root{&out.BeaconBlockRoot, &out.EpochBoundaryRoot, &out.ShardBlockRoot} {
		if next, err = ssz.ReadFixedBytes(buf, next, root[:]); err != nil {
			return offset, err
		}
	}
	if next, err = out.LatestCrosslink.DecodeSSZ(buf, next); err != nil {
		return offset, err
	}
	if v, next, err = ssz.ReadUint64(buf, next); err != nil {
		return offset, err
	}
	out.JustifiedEpoch = types.Epoch(v)
	if next, err = ssz.ReadFixedBytes(buf, next, out.JustifiedBlockRoot[:]); err != nil {
		return offset, err
	}
	*d = out
	return next, nil
}

func (d *AttestationData) HashTreeRoot() types.Root {
	return ssz.HashTreeRootContainer(
		ssz.HashTreeRootUint64(uint64(d.Slot)),
		ssz.HashTreeRootUint64(uint64(d.Shard)),
		d.BeaconBlockRoot,
		d.EpochBoundaryRoot,
		d.ShardBlockRoot,
		d.LatestCrosslink.HashTreeRoot(),
		ssz.HashTreeRootUint64(uint64(d.JustifiedEpoch)),
		d.JustifiedBlockRoot,
	)
}

// SignableMessage returns the 32-byte message validators sign for this data.
// The custody bit is part of the signed container, so the two variants never
// share a signature.
func (d *AttestationData) SignableMessage(custodyBit bool) []byte {
	c := AttestationDataAndCustodyBit{Data: *d, CustodyBit: custodyBit}
	root := c.HashTreeRoot()
	return root[:]
}

// AttestationDataAndCustodyBit is the container actually signed.
type AttestationDataAndCustodyBit struct {
	Data       AttestationData
	CustodyBit bool
}

func (c *AttestationDataAndCustodyBit) EncodeSSZ(dst []byte) []byte {
	dst = c.Data.EncodeSSZ(dst)
	return ssz.PutBool(dst, c.CustodyBit)
}

func (c *AttestationDataAndCustodyBit) DecodeSSZ(buf []byte, offset int) (int, error) {
	var data AttestationData
	next, err := data.DecodeSSZ(buf, offset)
	if err != nil {
		return offset, err
	}
	bit, next, err := ssz.ReadBool(buf, next)
	if err != nil {
		return offset, err
	}
	c.Data, c.CustodyBit = data, bit
	return next, nil
}

func (c *AttestationDataAndCustodyBit) HashTreeRoot() types.Root {
	return ssz.HashTreeRootContainer(
		c.Data.HashTreeRoot(),
		ssz.HashTreeRootBool(c.CustodyBit),
	)
}
