// Package storagetest runs the same behavioural checks against every
// storage.Store implementation.
package storagetest

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/geanlabs/leanattest/common/bitfield"
	"github.com/geanlabs/leanattest/common/types"
	"github.com/geanlabs/leanattest/storage"
	"github.com/geanlabs/leanattest/testutil"
)

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("missing", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		if _, ok, err := s.GetAttestation(types.Root{1}); ok || err != nil {
			t.Errorf("GetAttestation(missing) = (_, %v, %v), want (_, false, nil)", ok, err)
		}
		if ok, err := s.HasAttestation(types.Root{1}); ok || err != nil {
			t.Errorf("HasAttestation(missing) = (%v, %v), want (false, nil)", ok, err)
		}
	})

	t.Run("put get", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		att := testutil.RandomAttestation(rand.New(rand.NewPCG(1, 1)))
		root := att.CanonicalRoot()
		if err := s.PutAttestation(root, att); err != nil {
			t.Fatalf("PutAttestation() error = %v", err)
		}

		got, ok, err := s.GetAttestation(root)
		if err != nil || !ok {
			t.Fatalf("GetAttestation() = (_, %v, %v)", ok, err)
		}
		if !got.Equal(att) {
			t.Error("stored attestation differs")
		}
		if got.CanonicalRoot() != root {
			t.Error("stored attestation root differs")
		}
		if ok, _ := s.HasAttestation(root); !ok {
			t.Error("HasAttestation() = false after put")
		}
	})

	t.Run("values are not shared", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		att := testutil.RandomAttestation(rand.New(rand.NewPCG(3, 3)))
		root := att.CanonicalRoot()
		if err := s.PutAttestation(root, att); err != nil {
			t.Fatal(err)
		}

		// Mutating the value passed to Put must not reach the store.
		att.Data.Slot++
		att.AggregationBitfield = bitfield.FromBytes(append(att.AggregationBitfield.Bytes(), 0xff))

		got, ok, err := s.GetAttestation(root)
		if err != nil || !ok {
			t.Fatalf("GetAttestation() = (_, %v, %v)", ok, err)
		}
		if got.CanonicalRoot() != root {
			t.Fatal("stored attestation changed with the caller's value")
		}

		// Nor must mutating a value returned by Get.
		got.Data.Shard++
		if len(got.CustodyBitfield.Bytes()) > 0 {
			if err := got.CustodyBitfield.Set(0, !got.CustodyBitfield.Get(0)); err != nil {
				t.Fatal(err)
			}
		}
		again, _, err := s.GetAttestation(root)
		if err != nil {
			t.Fatal(err)
		}
		if again.CanonicalRoot() != root {
			t.Error("stored attestation changed with a fetched value")
		}

		bySlot, err := s.AttestationsBySlot(again.Data.Slot)
		if err != nil || len(bySlot) != 1 {
			t.Fatalf("AttestationsBySlot() = (%d, %v), want (1, nil)", len(bySlot), err)
		}
		bySlot[0].Data.Shard++
		if again, _, _ := s.GetAttestation(root); again.CanonicalRoot() != root {
			t.Error("stored attestation changed with a value from AttestationsBySlot")
		}
	})

	t.Run("by slot", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		src := rand.New(rand.NewPCG(2, 2))
		for i := 0; i < 3; i++ {
			att := testutil.RandomAttestation(src)
			att.Data.Slot = 9
			root := att.CanonicalRoot()
			if err := s.PutAttestation(root, att); err != nil {
				t.Fatal(err)
			}
			// A second put of the same root must not duplicate the index.
			if err := s.PutAttestation(root, att); err != nil {
				t.Fatal(err)
			}
		}
		other := testutil.RandomAttestation(src)
		other.Data.Slot = 10
		if err := s.PutAttestation(other.CanonicalRoot(), other); err != nil {
			t.Fatal(err)
		}

		got, err := s.AttestationsBySlot(9)
		if err != nil {
			t.Fatalf("AttestationsBySlot() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("AttestationsBySlot(9) = %d attestations, want 3", len(got))
		}
		for i := 1; i < len(got); i++ {
			prev, cur := got[i-1].CanonicalRoot(), got[i].CanonicalRoot()
			if bytes.Compare(prev[:], cur[:]) >= 0 {
				t.Error("attestations should be ordered by root")
			}
		}

		empty, err := s.AttestationsBySlot(11)
		if err != nil || len(empty) != 0 {
			t.Errorf("AttestationsBySlot(11) = (%d, %v), want (0, nil)", len(empty), err)
		}
	})
}
