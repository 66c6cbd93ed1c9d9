package bls

import (
	"bytes"
	"errors"
	"testing"

	"github.com/geanlabs/leanattest/common/ssz"
)

const testDomain = 7

func keySet(t *testing.T, n int) ([]*SecretKey, []*PublicKey) {
	t.Helper()
	sks := make([]*SecretKey, n)
	pks := make([]*PublicKey, n)
	for i := range sks {
		sks[i] = RandomSecretKey()
		pks[i] = sks[i].PublicKey()
	}
	return sks, pks
}

func TestSignVerify(t *testing.T) {
	sks, pks := keySet(t, 1)
	msg := []byte("attestation")

	sig := sks[0].Sign(msg, testDomain)
	if !sig.Verify(msg, testDomain, pks[0]) {
		t.Fatal("signature should verify")
	}
	if sig.Verify(msg, testDomain+1, pks[0]) {
		t.Error("signature should not verify under another domain")
	}
	if sig.Verify([]byte("attestatioN"), testDomain, pks[0]) {
		t.Error("signature should not verify over another message")
	}
}

func TestDomainIsNotMessageSuffix(t *testing.T) {
	msg := []byte{1, 2, 3}
	in := signingInput(msg, 0x0102)
	want := []byte{1, 2, 3, 0x02, 0x01, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(in, want) {
		t.Errorf("signingInput = %x, want %x", in, want)
	}
	if &in[0] == &msg[0] {
		t.Error("signingInput should not alias the message")
	}
}

func TestAggregateVerify(t *testing.T) {
	sks, pks := keySet(t, 4)
	msg := bytes.Repeat([]byte{0xab}, 32)

	sigs := make([]*Signature, len(sks))
	for i, sk := range sks {
		sigs[i] = sk.Sign(msg, testDomain)
	}
	agg, err := AggregateSignatures(sigs...)
	if err != nil {
		t.Fatalf("AggregateSignatures error = %v", err)
	}
	group, err := AggregatePublicKeys(pks...)
	if err != nil {
		t.Fatalf("AggregatePublicKeys error = %v", err)
	}

	if !agg.Verify(msg, testDomain, group) {
		t.Fatal("aggregate should verify against the group key")
	}
	if agg.Verify(msg, testDomain+1, group) {
		t.Error("aggregate should not verify under another domain")
	}

	partial, _ := AggregatePublicKeys(pks[:3]...)
	if agg.Verify(msg, testDomain, partial) {
		t.Error("aggregate should not verify against a subset key")
	}
}

func TestAggregateVerifyNeverFailsLoudly(t *testing.T) {
	_, pks := keySet(t, 1)
	group, _ := AggregatePublicKeys(pks...)

	tests := []struct {
		name string
		sig  *AggregateSignature
		key  *AggregatePublicKey
	}{
		{"zero bytes", AggregateSignatureFromRaw(nil), group},
		{"garbage bytes", AggregateSignatureFromRaw(bytes.Repeat([]byte{0x5a}, SignatureSize)), group},
		{"nil signature", nil, group},
		{"nil key", AggregateSignatureFromRaw(nil), nil},
		{"unset key", AggregateSignatureFromRaw(nil), &AggregatePublicKey{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.sig.Verify([]byte("m"), testDomain, tt.key) {
				t.Error("Verify should return false")
			}
		})
	}
}

func TestEmptyAggregates(t *testing.T) {
	if _, err := AggregateSignatures(); !errors.Is(err, ErrEmptyAggregate) {
		t.Errorf("AggregateSignatures() error = %v, want ErrEmptyAggregate", err)
	}
	if _, err := AggregatePublicKeys(); !errors.Is(err, ErrEmptyAggregate) {
		t.Errorf("AggregatePublicKeys() error = %v, want ErrEmptyAggregate", err)
	}
}

func TestKeySerialization(t *testing.T) {
	sks, pks := keySet(t, 1)

	sk2, err := SecretKeyFromBytes(sks[0].Bytes())
	if err != nil {
		t.Fatalf("SecretKeyFromBytes error = %v", err)
	}
	if !bytes.Equal(sk2.PublicKey().Bytes(), pks[0].Bytes()) {
		t.Error("secret key round trip changed the public key")
	}

	if len(pks[0].Bytes()) != PublicKeySize {
		t.Errorf("public key = %d bytes, want %d", len(pks[0].Bytes()), PublicKeySize)
	}
	pk2, err := PublicKeyFromBytes(pks[0].Bytes())
	if err != nil {
		t.Fatalf("PublicKeyFromBytes error = %v", err)
	}
	group, err := AggregatePublicKeyFromBytes(pk2.Bytes())
	if err != nil {
		t.Fatalf("AggregatePublicKeyFromBytes error = %v", err)
	}

	msg := []byte("m")
	agg, _ := AggregateSignatures(sks[0].Sign(msg, testDomain))
	if !agg.Verify(msg, testDomain, group) {
		t.Error("signature should verify against a deserialized key")
	}

	if _, err := PublicKeyFromBytes(make([]byte, 47)); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("short public key error = %v, want ErrInvalidPublicKey", err)
	}
	if _, err := SecretKeyFromBytes(make([]byte, 31)); !errors.Is(err, ErrInvalidSecretKey) {
		t.Errorf("short secret key error = %v, want ErrInvalidSecretKey", err)
	}
	if _, err := SignatureFromBytes(make([]byte, 95)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("short signature error = %v, want ErrInvalidSignature", err)
	}
}

func TestAggregateSignatureSSZ(t *testing.T) {
	raw := bytes.Repeat([]byte{0x11}, SignatureSize)
	a := AggregateSignatureFromRaw(raw)

	enc := ssz.Marshal(a)
	if !bytes.Equal(enc, raw) {
		t.Fatal("signature should encode as its fixed 96 bytes")
	}

	var out AggregateSignature
	if err := ssz.Unmarshal(enc, &out); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if !out.Equal(a) {
		t.Error("round trip should preserve the signature")
	}
	if err := ssz.Unmarshal(enc[:95], &out); !errors.Is(err, ssz.ErrMalformed) {
		t.Errorf("truncated signature error = %v, want ErrMalformed", err)
	}

	want := ssz.Merkleize(ssz.Pack(raw), 0)
	if a.HashTreeRoot() != want {
		t.Error("signature root should merkleize its three chunks")
	}
}
