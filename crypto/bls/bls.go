// Package bls wraps BLS12-381 keys and signatures with domain-separated
// signing and verification.
//
// The domain is appended to the message as 8 little-endian bytes before the
// message is hashed to the curve, so a signature made under one domain never
// verifies under another even when the message bytes coincide.
package bls

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/herumi/bls-eth-go-binary/bls"

	"github.com/geanlabs/leanattest/common/types"
)

const (
	SecretKeySize = 32
	PublicKeySize = 48
	SignatureSize = 96
)

var (
	ErrEmptyAggregate   = errors.New("bls: nothing to aggregate")
	ErrInvalidSecretKey = errors.New("bls: invalid secret key")
	ErrInvalidPublicKey = errors.New("bls: invalid public key")
	ErrInvalidSignature = errors.New("bls: invalid signature")
)

var initOnce sync.Once

// Init configures the underlying library. It is called lazily by every
// operation and is safe to call more than once.
func Init() {
	initOnce.Do(func() {
		if err := bls.Init(bls.BLS12_381); err != nil {
			panic(fmt.Sprintf("bls: init: %v", err))
		}
		if err := bls.SetETHmode(bls.EthModeDraft07); err != nil {
			panic(fmt.Sprintf("bls: eth mode: %v", err))
		}
	})
}

// signingInput binds message to domain.
func signingInput(message []byte, domain types.Domain) []byte {
	out := make([]byte, len(message), len(message)+8)
	copy(out, message)
	return binary.LittleEndian.AppendUint64(out, uint64(domain))
}

// SecretKey is a validator signing key.
type SecretKey struct {
	sk bls.SecretKey
}

// RandomSecretKey draws a key from the system CSPRNG.
func RandomSecretKey() *SecretKey {
	Init()
	k := &SecretKey{}
	k.sk.SetByCSPRNG()
	return k
}

// SecretKeyFromBytes parses a 32-byte big-endian scalar.
func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	Init()
	if len(b) != SecretKeySize {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSecretKey, len(b))
	}
	k := &SecretKey{}
	if err := k.sk.Deserialize(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}
	return k, nil
}

func (k *SecretKey) Bytes() []byte {
	return k.sk.Serialize()
}

func (k *SecretKey) PublicKey() *PublicKey {
	return &PublicKey{pk: *k.sk.GetPublicKey()}
}

// Sign signs message under domain.
func (k *SecretKey) Sign(message []byte, domain types.Domain) *Signature {
	Init()
	return &Signature{sig: *k.sk.SignByte(signingInput(message, domain))}
}

// PublicKey is a single validator's public key.
type PublicKey struct {
	pk bls.PublicKey
}

func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	Init()
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidPublicKey, len(b))
	}
	p := &PublicKey{}
	if err := p.pk.Deserialize(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return p, nil
}

func (p *PublicKey) Bytes() []byte {
	return p.pk.Serialize()
}

// AggregatePublicKey is the sum of a set of public keys.
type AggregatePublicKey struct {
	pk  bls.PublicKey
	set bool
}

// AggregatePublicKeys sums keys into one group key.
func AggregatePublicKeys(keys ...*PublicKey) (*AggregatePublicKey, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyAggregate
	}
	Init()
	agg := &AggregatePublicKey{pk: keys[0].pk, set: true}
	for _, k := range keys[1:] {
		agg.pk.Add(&k.pk)
	}
	return agg, nil
}

// AggregatePublicKeyFromBytes parses a serialized group key.
func AggregatePublicKeyFromBytes(b []byte) (*AggregatePublicKey, error) {
	p, err := PublicKeyFromBytes(b)
	if err != nil {
		return nil, err
	}
	return &AggregatePublicKey{pk: p.pk, set: true}, nil
}

func (a *AggregatePublicKey) Bytes() []byte {
	return a.pk.Serialize()
}

// Signature is a single signature.
type Signature struct {
	sig bls.Sign
}

func SignatureFromBytes(b []byte) (*Signature, error) {
	Init()
	if len(b) != SignatureSize {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(b))
	}
	s := &Signature{}
	if err := s.sig.Deserialize(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return s, nil
}

func (s *Signature) Bytes() []byte {
	return s.sig.Serialize()
}

// Verify checks s against a single public key.
func (s *Signature) Verify(message []byte, domain types.Domain, key *PublicKey) bool {
	if s == nil || key == nil {
		return false
	}
	Init()
	return s.sig.VerifyByte(&key.pk, signingInput(message, domain))
}
