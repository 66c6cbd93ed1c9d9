package verifier

import (
	"errors"
	"fmt"
	"sync"

	"github.com/geanlabs/leanattest/common/types"
	"github.com/geanlabs/leanattest/crypto/bls"
)

var ErrUnknownCommittee = errors.New("unknown committee")

// KeySource resolves the ordered member keys of the committee assigned to a
// shard at a slot. Bit i of an aggregation bitfield refers to member i.
type KeySource interface {
	Committee(slot types.Slot, shard types.Shard) ([]*bls.PublicKey, error)
}

type committeeKey struct {
	slot  types.Slot
	shard types.Shard
}

// StaticKeys is a KeySource backed by a fixed table.
type StaticKeys struct {
	mu         sync.RWMutex
	committees map[committeeKey][]*bls.PublicKey
}

func NewStaticKeys() *StaticKeys {
	return &StaticKeys{committees: make(map[committeeKey][]*bls.PublicKey)}
}

// Set replaces the committee for (slot, shard).
func (s *StaticKeys) Set(slot types.Slot, shard types.Shard, members []*bls.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committees[committeeKey{slot, shard}] = members
}

func (s *StaticKeys) Committee(slot types.Slot, shard types.Shard) ([]*bls.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members, ok := s.committees[committeeKey{slot, shard}]
	if !ok {
		return nil, fmt.Errorf("%w: slot %d shard %d", ErrUnknownCommittee, slot, shard)
	}
	return members, nil
}
