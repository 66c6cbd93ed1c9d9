package types_test

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/geanlabs/leanattest/common/bitfield"
	"github.com/geanlabs/leanattest/common/ssz"
	ctypes "github.com/geanlabs/leanattest/common/types"
	"github.com/geanlabs/leanattest/crypto/bls"
	"github.com/geanlabs/leanattest/testutil"
	"github.com/geanlabs/leanattest/types"
)

const testDomain ctypes.Domain = 0x01000000

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 42))
}

// signedAttestation returns an attestation signed by every member of a
// committee of size n over the custody-bit-0 message, plus the group key.
func signedAttestation(t *testing.T, src testutil.Source, n int) (*types.Attestation, *bls.AggregatePublicKey) {
	t.Helper()

	data := testutil.RandomAttestationData(src)
	msg := data.SignableMessage(false)

	agg := bitfield.New(n)
	sigs := make([]*bls.Signature, n)
	pks := make([]*bls.PublicKey, n)
	for i := 0; i < n; i++ {
		sk := testutil.RandomSecretKey(src)
		sigs[i] = sk.Sign(msg, testDomain)
		pks[i] = sk.PublicKey()
		if err := agg.Set(i, true); err != nil {
			t.Fatal(err)
		}
	}
	sig, err := bls.AggregateSignatures(sigs...)
	if err != nil {
		t.Fatalf("AggregateSignatures error = %v", err)
	}
	group, err := bls.AggregatePublicKeys(pks...)
	if err != nil {
		t.Fatalf("AggregatePublicKeys error = %v", err)
	}

	return &types.Attestation{
		AggregationBitfield: agg,
		Data:                data,
		CustodyBitfield:     bitfield.New(n),
		AggregateSignature:  sig,
	}, group
}

func TestAttestation_RoundTrip(t *testing.T) {
	for seed := uint64(0); seed < 50; seed++ {
		original := testutil.RandomAttestation(newRand(seed))

		enc := ssz.Marshal(original)
		var decoded types.Attestation
		if err := ssz.Unmarshal(enc, &decoded); err != nil {
			t.Fatalf("seed %d: Unmarshal error = %v", seed, err)
		}
		if !decoded.Equal(original) {
			t.Fatalf("seed %d: decoded attestation differs from original", seed)
		}
		if !bytes.Equal(ssz.Marshal(&decoded), enc) {
			t.Fatalf("seed %d: re-encoding differs", seed)
		}
		if decoded.CanonicalRoot() != original.CanonicalRoot() {
			t.Fatalf("seed %d: root changed across round trip", seed)
		}
	}
}

func TestAttestation_Determinism(t *testing.T) {
	a := testutil.RandomAttestation(newRand(7))
	b := testutil.RandomAttestation(newRand(7))

	if !bytes.Equal(ssz.Marshal(a), ssz.Marshal(b)) {
		t.Error("equal attestations should encode identically")
	}
	if a.HashTreeRoot() != b.HashTreeRoot() {
		t.Error("equal attestations should hash identically")
	}
	if !bytes.Equal(ssz.Marshal(a), ssz.Marshal(a)) {
		t.Error("repeated encoding should be identical")
	}

	c := testutil.RandomAttestation(newRand(8))
	if a.HashTreeRoot() == c.HashTreeRoot() {
		t.Error("different attestations should not share a root")
	}
}

func TestAttestation_Layout(t *testing.T) {
	agg := bitfield.New(3)
	_ = agg.Set(1, true)
	att := &types.Attestation{
		AggregationBitfield: agg,
		Data:                types.AttestationData{Slot: 0x0102, Shard: 3},
		CustodyBitfield:     bitfield.New(3),
		AggregateSignature:  bls.AggregateSignatureFromRaw(bytes.Repeat([]byte{0xee}, bls.SignatureSize)),
	}

	enc := ssz.Marshal(att)
	const dataSize = 192
	if want := 5 + dataSize + 5 + bls.SignatureSize; len(enc) != want {
		t.Fatalf("encoding = %d bytes, want %d", len(enc), want)
	}
	if !bytes.Equal(enc[:5], []byte{1, 0, 0, 0, 0b10}) {
		t.Errorf("aggregation bitfield = %x, want 0100000002", enc[:5])
	}
	if !bytes.Equal(enc[5:13], []byte{0x02, 0x01, 0, 0, 0, 0, 0, 0}) {
		t.Errorf("slot = %x, want little-endian 0x0102", enc[5:13])
	}
	if !bytes.Equal(enc[13:21], []byte{3, 0, 0, 0, 0, 0, 0, 0}) {
		t.Errorf("shard = %x, want 3", enc[13:21])
	}
	custody := enc[5+dataSize : 5+dataSize+5]
	if !bytes.Equal(custody, []byte{1, 0, 0, 0, 0}) {
		t.Errorf("custody bitfield = %x, want 0100000000", custody)
	}
	if enc[len(enc)-1] != 0xee {
		t.Error("signature should close the encoding")
	}
}

func TestAttestation_HashTreeRootStructure(t *testing.T) {
	att := testutil.RandomAttestation(newRand(3))

	want := ssz.Merkleize([]ctypes.Root{
		att.AggregationBitfield.HashTreeRoot(),
		att.Data.HashTreeRoot(),
		att.CustodyBitfield.HashTreeRoot(),
		att.AggregateSignature.HashTreeRoot(),
	}, 0)
	if got := att.CanonicalRoot(); got != want {
		t.Errorf("CanonicalRoot() = %s, want %s", got, want)
	}
	if got := att.CanonicalRoot(); len(got) != 32 {
		t.Errorf("root length = %d, want 32", len(got))
	}
	if ssz.Hash(ssz.Marshal(att)) == want {
		t.Error("root should not be a flat hash of the encoding")
	}
}

func TestAttestation_HashTreeRootFieldSensitivity(t *testing.T) {
	base := testutil.RandomAttestation(newRand(11))
	root := base.CanonicalRoot()

	mutants := map[string]func(a *types.Attestation){
		"slot":      func(a *types.Attestation) { a.Data.Slot++ },
		"crosslink": func(a *types.Attestation) { a.Data.LatestCrosslink.Epoch++ },
		"custody":   func(a *types.Attestation) { a.CustodyBitfield = bitfield.FromBytes([]byte{0xff}) },
		"signature": func(a *types.Attestation) { a.AggregateSignature = bls.AggregateSignatureFromRaw([]byte{1}) },
	}

	for name, mutate := range mutants {
		t.Run(name, func(t *testing.T) {
			var cp types.Attestation
			if err := ssz.Unmarshal(ssz.Marshal(base), &cp); err != nil {
				t.Fatal(err)
			}
			mutate(&cp)
			if cp.CanonicalRoot() == root {
				t.Error("mutation should change the root")
			}
		})
	}
}

func TestAttestation_TruncationFails(t *testing.T) {
	att := testutil.RandomAttestation(newRand(5))
	enc := ssz.Marshal(att)

	for i := 0; i < len(enc); i++ {
		var out types.Attestation
		err := ssz.Unmarshal(enc[:i], &out)
		if err == nil {
			t.Fatalf("prefix of %d/%d bytes decoded", i, len(enc))
		}
		var de *ssz.DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("prefix %d: error %v is not a DecodeError", i, err)
		}
		if out.AggregationBitfield != nil || out.AggregateSignature != nil || out.Data != (types.AttestationData{}) {
			t.Fatalf("prefix %d: receiver partially populated", i)
		}
	}
}

func TestAttestation_InvalidLengthPrefix(t *testing.T) {
	enc := ssz.Marshal(testutil.RandomAttestation(newRand(6)))
	enc[0], enc[1], enc[2], enc[3] = 0xff, 0xff, 0xff, 0x7f

	var out types.Attestation
	err := ssz.Unmarshal(enc, &out)
	if !errors.Is(err, ssz.ErrInvalidLength) {
		t.Errorf("error = %v, want ErrInvalidLength", err)
	}
	// The prefix fixes the bitfield's bit count, so the body is also too short.
	if !errors.Is(err, ssz.ErrTooShort) {
		t.Errorf("error = %v, want ErrTooShort", err)
	}
}

func TestSignableMessage(t *testing.T) {
	data := testutil.RandomAttestationData(newRand(9))

	m0 := data.SignableMessage(false)
	m1 := data.SignableMessage(true)
	if len(m0) != 32 || len(m1) != 32 {
		t.Fatalf("message lengths = %d/%d, want 32", len(m0), len(m1))
	}
	if bytes.Equal(m0, m1) {
		t.Error("custody bit should change the message")
	}

	c := types.AttestationDataAndCustodyBit{Data: data, CustodyBit: true}
	root := c.HashTreeRoot()
	if !bytes.Equal(m1, root[:]) {
		t.Error("message should be the root of data and custody bit")
	}

	att := &types.Attestation{Data: data}
	if !bytes.Equal(att.SignableMessage(true), m1) {
		t.Error("attestation should delegate to its data")
	}
}

func TestAttestationDataAndCustodyBit_RoundTrip(t *testing.T) {
	in := types.AttestationDataAndCustodyBit{Data: testutil.RandomAttestationData(newRand(1)), CustodyBit: true}
	enc := ssz.Marshal(&in)
	if len(enc) != 193 {
		t.Fatalf("encoding = %d bytes, want 193", len(enc))
	}

	var out types.AttestationDataAndCustodyBit
	if err := ssz.Unmarshal(enc, &out); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if out != in {
		t.Error("round trip changed the value")
	}

	enc[len(enc)-1] = 2
	if err := ssz.Unmarshal(enc, &out); !errors.Is(err, ssz.ErrMalformed) {
		t.Errorf("bad bool error = %v, want ErrMalformed", err)
	}
}

func TestVerifySignature(t *testing.T) {
	att, group := signedAttestation(t, newRand(100), 4)

	if !att.VerifySignature(group, false, testDomain) {
		t.Fatal("valid attestation should verify")
	}
	if att.VerifySignature(group, true, testDomain) {
		t.Error("custody-bit-0 signature should not verify as custody bit 1")
	}
	if att.VerifySignature(group, false, testDomain+1) {
		t.Error("signature should not verify under another domain")
	}
	if att.VerifySignature(nil, false, testDomain) {
		t.Error("nil group key should not verify")
	}

	_, otherGroup := signedAttestation(t, newRand(101), 4)
	if att.VerifySignature(otherGroup, false, testDomain) {
		t.Error("signature should not verify under another committee key")
	}
}

// Encoding, hashing and verification only read the attestation, so one value
// may be shared across goroutines.
func TestAttestation_ConcurrentReads(t *testing.T) {
	const workers = 8

	att, group := signedAttestation(t, newRand(21), 4)
	wantRoot := att.CanonicalRoot()
	wantEnc := ssz.Marshal(att)

	var wg sync.WaitGroup
	failures := make(chan string, workers*3)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 4; j++ {
				if att.CanonicalRoot() != wantRoot {
					failures <- "CanonicalRoot changed"
					return
				}
				if !bytes.Equal(ssz.Marshal(att), wantEnc) {
					failures <- "encoding changed"
					return
				}
				if !att.VerifySignature(group, false, testDomain) {
					failures <- "VerifySignature failed"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(failures)

	for f := range failures {
		t.Error(f)
	}
}

func TestVerifySignature_TamperedEncoding(t *testing.T) {
	att, group := signedAttestation(t, newRand(200), 2)
	enc := ssz.Marshal(att)

	// Signed regions: data and signature. The bitfields select the group key.
	aggLen := 4 + len(att.AggregationBitfield.Bytes())
	dataStart, dataEnd := aggLen, aggLen+192
	sigStart := len(enc) - bls.SignatureSize

	var positions []int
	for i := dataStart; i < dataEnd; i += 7 {
		positions = append(positions, i)
	}
	for i := sigStart; i < len(enc); i += 11 {
		positions = append(positions, i)
	}

	for _, pos := range positions {
		tampered := bytes.Clone(enc)
		tampered[pos] ^= 0x01

		var out types.Attestation
		if err := ssz.Unmarshal(tampered, &out); err != nil {
			t.Fatalf("byte %d: Unmarshal error = %v", pos, err)
		}
		if out.VerifySignature(group, false, testDomain) {
			t.Errorf("flipping byte %d should break verification", pos)
		}
	}
}

func TestValidateBitfields(t *testing.T) {
	full := func(n int, bits ...int) *bitfield.Bitfield {
		b := bitfield.New(n)
		for _, i := range bits {
			_ = b.Set(i, true)
		}
		return b
	}

	tests := []struct {
		name    string
		agg     *bitfield.Bitfield
		custody *bitfield.Bitfield
		size    int
		want    error
	}{
		{"valid", full(10, 0, 9), full(10, 9), 10, nil},
		{"valid after decode widening", full(16, 0), full(16), 10, nil},
		{"aggregation too short", full(8), full(8), 10, types.ErrBitfieldLength},
		{"custody length differs", full(10), full(24), 10, types.ErrBitfieldMismatch},
		{"bit beyond committee", full(16, 12), full(16), 10, types.ErrBitfieldLength},
		{"custody not subset", full(10, 1), full(10, 2), 10, types.ErrCustodyNotSubset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att := &types.Attestation{AggregationBitfield: tt.agg, CustodyBitfield: tt.custody}
			err := att.ValidateBitfields(tt.size)
			if tt.want == nil && err != nil {
				t.Fatalf("ValidateBitfields() error = %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("ValidateBitfields() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAttestation_ZeroValueEncodes(t *testing.T) {
	var att types.Attestation
	enc := ssz.Marshal(&att)
	if want := 4 + 192 + 4 + bls.SignatureSize; len(enc) != want {
		t.Fatalf("zero attestation = %d bytes, want %d", len(enc), want)
	}

	var out types.Attestation
	if err := ssz.Unmarshal(enc, &out); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if !out.Equal(&att) {
		t.Error("zero attestation should round trip")
	}
}
