package memory

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/geanlabs/leanattest/common/ssz"
	"github.com/geanlabs/leanattest/common/types"
	atttypes "github.com/geanlabs/leanattest/types"
)

// Store is an in-memory implementation of storage.Store. Attestations are
// held in encoded form, so callers never share a value with the store.
type Store struct {
	mu           sync.RWMutex
	attestations map[types.Root][]byte
	bySlot       map[types.Slot][]types.Root
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		attestations: make(map[types.Root][]byte),
		bySlot:       make(map[types.Slot][]types.Root),
	}
}

func (m *Store) GetAttestation(root types.Root) (*atttypes.Attestation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enc, ok := m.attestations[root]
	if !ok {
		return nil, false, nil
	}
	att, err := decode(root, enc)
	if err != nil {
		return nil, false, err
	}
	return att, true, nil
}

func (m *Store) PutAttestation(root types.Root, att *atttypes.Attestation) error {
	enc := ssz.Marshal(att)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attestations[root]; !ok {
		slot := att.Data.Slot
		m.bySlot[slot] = append(m.bySlot[slot], root)
	}
	m.attestations[root] = enc
	return nil
}

func (m *Store) HasAttestation(root types.Root) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.attestations[root]
	return ok, nil
}

func (m *Store) AttestationsBySlot(slot types.Slot) ([]*atttypes.Attestation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roots := slices.Clone(m.bySlot[slot])
	slices.SortFunc(roots, func(a, b types.Root) int { return bytes.Compare(a[:], b[:]) })
	out := make([]*atttypes.Attestation, 0, len(roots))
	for _, r := range roots {
		att, err := decode(r, m.attestations[r])
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, nil
}

func (m *Store) Close() error { return nil }

func decode(root types.Root, enc []byte) (*atttypes.Attestation, error) {
	var att atttypes.Attestation
	if err := ssz.Unmarshal(enc, &att); err != nil {
		return nil, fmt.Errorf("decode attestation %s: %w", root, err)
	}
	return &att, nil
}
