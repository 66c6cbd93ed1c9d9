// Package types holds the primitive values shared by every container.
package types

import (
	"encoding/hex"
	"fmt"
)

type Slot uint64
type Epoch uint64
type Shard uint64

// Domain is the numeric tag mixed into signature verification.
type Domain uint64

// Root is a 32-byte hash tree root.
type Root [32]byte

const SlotsPerEpoch uint64 = 64

func (r Root) IsZero() bool {
	return r == Root{}
}

// Short returns the first 4 bytes of the root in hex.
func (r Root) Short() string {
	return fmt.Sprintf("%x", r[:4])
}

func (r Root) String() string {
	return "0x" + hex.EncodeToString(r[:])
}

// RootFromBytes copies b into a Root. It returns false when b is not 32 bytes long.
func RootFromBytes(b []byte) (Root, bool) {
	var r Root
	if len(b) != len(r) {
		return r, false
	}
	copy(r[:], b)
	return r, true
}

func SlotToEpoch(slot Slot) Epoch {
	return Epoch(uint64(slot) / SlotsPerEpoch)
}

func EpochStartSlot(epoch Epoch) Slot {
	return Slot(uint64(epoch) * SlotsPerEpoch)
}
