// Package pebbledb implements storage.Store on a Pebble database.
//
// Layout:
//
//	att/<root>                   -> canonical encoding
//	slot/<slot big-endian><root> -> empty
package pebbledb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/geanlabs/leanattest/common/ssz"
	"github.com/geanlabs/leanattest/common/types"
	atttypes "github.com/geanlabs/leanattest/types"
)

var (
	prefixAttestation = []byte("att/")
	prefixSlot        = []byte("slot/")
)

// Store persists attestations in Pebble.
type Store struct {
	db *pebble.DB
}

// Open opens or creates a database under dir.
func Open(dir string) (*Store, error) {
	return open(dir, &pebble.Options{})
}

// OpenInMemory opens a database backed by an in-memory filesystem.
func OpenInMemory() (*Store, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()})
}

func open(dir string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Store{db: db}, nil
}

func attestationKey(root types.Root) []byte {
	return append(append([]byte{}, prefixAttestation...), root[:]...)
}

func slotPrefix(slot types.Slot) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, prefixSlot...), uint64(slot))
}

func slotKey(slot types.Slot, root types.Root) []byte {
	return append(slotPrefix(slot), root[:]...)
}

func (s *Store) GetAttestation(root types.Root) (*atttypes.Attestation, bool, error) {
	value, closer, err := s.db.Get(attestationKey(root))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get attestation %s: %w", root.Short(), err)
	}
	defer closer.Close()

	var att atttypes.Attestation
	if err := ssz.Unmarshal(value, &att); err != nil {
		return nil, false, fmt.Errorf("decode stored attestation %s: %w", root.Short(), err)
	}
	return &att, true, nil
}

func (s *Store) PutAttestation(root types.Root, att *atttypes.Attestation) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(attestationKey(root), ssz.Marshal(att), nil); err != nil {
		return fmt.Errorf("put attestation: %w", err)
	}
	if err := batch.Set(slotKey(att.Data.Slot, root), nil, nil); err != nil {
		return fmt.Errorf("put slot index: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit attestation: %w", err)
	}
	return nil
}

func (s *Store) HasAttestation(root types.Root) (bool, error) {
	_, closer, err := s.db.Get(attestationKey(root))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has attestation %s: %w", root.Short(), err)
	}
	closer.Close()
	return true, nil
}

func (s *Store) AttestationsBySlot(slot types.Slot) ([]*atttypes.Attestation, error) {
	lower := slotPrefix(slot)
	var upper []byte
	if slot < math.MaxUint64 {
		upper = slotPrefix(slot + 1)
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("iterate slot %d: %w", slot, err)
	}
	defer iter.Close()

	var out []*atttypes.Attestation
	for iter.First(); iter.Valid(); iter.Next() {
		root, ok := types.RootFromBytes(iter.Key()[len(lower):])
		if !ok {
			return nil, fmt.Errorf("corrupt slot index key %x", iter.Key())
		}
		att, found, err := s.GetAttestation(root)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, att)
		}
	}
	return out, iter.Error()
}

func (s *Store) Close() error {
	return s.db.Close()
}
