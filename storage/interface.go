// Package storage defines the attestation store keyed by canonical root.
package storage

import (
	"github.com/geanlabs/leanattest/common/types"
	atttypes "github.com/geanlabs/leanattest/types"
)

// Store is a storage interface for verified attestations.
type Store interface {
	GetAttestation(root types.Root) (*atttypes.Attestation, bool, error)
	PutAttestation(root types.Root, att *atttypes.Attestation) error
	HasAttestation(root types.Root) (bool, error)
	// AttestationsBySlot returns the attestations for slot ordered by root.
	AttestationsBySlot(slot types.Slot) ([]*atttypes.Attestation, error)
	Close() error
}
