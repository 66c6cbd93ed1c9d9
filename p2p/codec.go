package p2p

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"

	"github.com/geanlabs/leanattest/common/ssz"
	atttypes "github.com/geanlabs/leanattest/types"
)

var (
	ErrEmptyMessage    = errors.New("empty message")
	ErrMessageTooLarge = errors.New("message too large")
)

// EncodeAttestation returns the snappy-compressed canonical encoding of att.
func EncodeAttestation(att *atttypes.Attestation) []byte {
	return snappy.Encode(nil, ssz.Marshal(att))
}

// Decompress returns the snappy payload of data, refusing anything that
// would expand past maxSize bytes.
func Decompress(data []byte, maxSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("snappy header: %w", err)
	}
	if n > maxSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrMessageTooLarge, n, maxSize)
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	return out, nil
}

// DecodeAttestation reverses EncodeAttestation.
func DecodeAttestation(data []byte, maxSize int) (*atttypes.Attestation, error) {
	raw, err := Decompress(data, maxSize)
	if err != nil {
		return nil, err
	}
	var att atttypes.Attestation
	if err := ssz.Unmarshal(raw, &att); err != nil {
		return nil, fmt.Errorf("unmarshal attestation: %w", err)
	}
	return &att, nil
}
