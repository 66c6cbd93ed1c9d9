// Package clock converts wall-clock time to slots.
package clock

import (
	"time"

	"github.com/geanlabs/leanattest/common/types"
)

// SlotClock converts wall-clock time to slots.
// All time values are in seconds (Unix timestamps).
type SlotClock struct {
	GenesisTime    uint64 // Unix timestamp when slot 0 began
	SecondsPerSlot uint64
	timeFunc       func() time.Time
}

// New creates a SlotClock with the given genesis time and slot length.
func New(genesisTime, secondsPerSlot uint64) *SlotClock {
	return NewWithTimeFunc(genesisTime, secondsPerSlot, time.Now)
}

// NewWithTimeFunc creates a SlotClock with a custom time source (for testing).
func NewWithTimeFunc(genesisTime, secondsPerSlot uint64, timeFunc func() time.Time) *SlotClock {
	if secondsPerSlot == 0 {
		panic("clock: zero slot length")
	}
	return &SlotClock{
		GenesisTime:    genesisTime,
		SecondsPerSlot: secondsPerSlot,
		timeFunc:       timeFunc,
	}
}

// secondsSinceGenesis returns seconds elapsed since genesis (0 if before genesis).
func (c *SlotClock) secondsSinceGenesis() uint64 {
	now := uint64(c.timeFunc().Unix())
	if now < c.GenesisTime {
		return 0
	}
	return now - c.GenesisTime
}

// CurrentSlot returns the current slot number (0 if before genesis).
func (c *SlotClock) CurrentSlot() types.Slot {
	return types.Slot(c.secondsSinceGenesis() / c.SecondsPerSlot)
}

// SlotStartTime returns the Unix timestamp when a given slot starts.
func (c *SlotClock) SlotStartTime(slot types.Slot) uint64 {
	return c.GenesisTime + uint64(slot)*c.SecondsPerSlot
}

// IsBeforeGenesis returns true if current time is before genesis.
func (c *SlotClock) IsBeforeGenesis() bool {
	return uint64(c.timeFunc().Unix()) < c.GenesisTime
}

// InWindow reports whether slot lies in [current-span, current].
func (c *SlotClock) InWindow(slot types.Slot, span uint64) bool {
	current := c.CurrentSlot()
	if slot > current {
		return false
	}
	return uint64(current-slot) <= span
}
