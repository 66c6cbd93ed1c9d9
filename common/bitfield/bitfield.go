// Package bitfield implements the bit-packed membership set carried by
// attestations.
//
// Bit i is stored in byte i/8 at position i%8, so bit 0 is the least
// significant bit of the first byte. Bits at or above Len in the final byte
// are always zero.
//
// HashTreeRoot mixes in the byte capacity 8*len(Bytes()), not Len(), so New(3)
// hashes the same as New(8).
package bitfield

import (
	"errors"
	"fmt"

	gobitfield "github.com/prysmaticlabs/go-bitfield"

	"github.com/geanlabs/leanattest/common/ssz"
	"github.com/geanlabs/leanattest/common/types"
)

var (
	ErrIndexOutOfRange = errors.New("bitfield: index out of range")
	ErrLengthMismatch  = errors.New("bitfield: length mismatch")
)

// Bitfield is a variable-length bit vector with an explicit bit count.
type Bitfield struct {
	data []byte
	n    int
}

// New returns a Bitfield of n cleared bits.
func New(n int) *Bitfield {
	if n < 0 {
		panic(fmt.Sprintf("bitfield: negative length %d", n))
	}
	return &Bitfield{data: make([]byte, byteLen(n)), n: n}
}

// FromBytes returns a Bitfield over a copy of b with Len() == 8*len(b).
func FromBytes(b []byte) *Bitfield {
	data := make([]byte, len(b))
	copy(data, b)
	return &Bitfield{data: data, n: len(b) * 8}
}

func byteLen(n int) int {
	return (n + 7) / 8
}

// Len returns the bit count.
func (b *Bitfield) Len() int {
	return b.n
}

// Get reports whether bit i is set. Out-of-range indices read as false.
func (b *Bitfield) Get(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.data[i/8]&(1<<(uint(i)%8)) != 0
}

// Set assigns bit i. It is meant for building a value before it is shared.
func (b *Bitfield) Set(i int, v bool) error {
	if i < 0 || i >= b.n {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, b.n)
	}
	if v {
		b.data[i/8] |= 1 << (uint(i) % 8)
	} else {
		b.data[i/8] &^= 1 << (uint(i) % 8)
	}
	return nil
}

// Count returns the number of set bits.
func (b *Bitfield) Count() int {
	c := 0
	for i := 0; i < b.n; i++ {
		if b.Get(i) {
			c++
		}
	}
	return c
}

func (b *Bitfield) IsZero() bool {
	for _, x := range b.data {
		if x != 0 {
			return false
		}
	}
	return true
}

// Bytes returns a copy of the packed bits.
func (b *Bitfield) Bytes() []byte {
	cp := make([]byte, len(b.data))
	copy(cp, b.data)
	return cp
}

// Equal compares canonical encodings. The wire form carries a byte count, not
// a bit count, so a 3-bit and an 8-bit field with the same packed byte are
// equal.
func (b *Bitfield) Equal(other *Bitfield) bool {
	if b == nil || other == nil {
		return b == other
	}
	if len(b.data) != len(other.data) {
		return false
	}
	for i := range b.data {
		if b.data[i] != other.data[i] {
			return false
		}
	}
	return true
}

// Or returns the union of two bitfields of the same length.
func (b *Bitfield) Or(other *Bitfield) (*Bitfield, error) {
	if b.n != other.n {
		return nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, b.n, other.n)
	}
	out := New(b.n)
	for i := range b.data {
		out.data[i] = b.data[i] | other.data[i]
	}
	return out, nil
}

// Overlaps reports whether any bit is set in both fields.
func (b *Bitfield) Overlaps(other *Bitfield) bool {
	n := min(len(b.data), len(other.data))
	for i := 0; i < n; i++ {
		if b.data[i]&other.data[i] != 0 {
			return true
		}
	}
	return false
}

// EncodeSSZ appends the 4-byte body length followed by the packed bits.
func (b *Bitfield) EncodeSSZ(dst []byte) []byte {
	return ssz.PutLengthPrefixed(dst, b.data)
}

// DecodeSSZ reads a length-prefixed body. The decoded bit count is eight
// times the body length. A prefix longer than the remaining bytes is both
// ErrTooShort and ErrInvalidLength.
func (b *Bitfield) DecodeSSZ(buf []byte, offset int) (int, error) {
	body, next, err := ssz.ReadLengthPrefixed(buf, offset)
	if err != nil {
		return offset, ssz.ShortBody(err)
	}
	b.data, b.n = body, len(body)*8
	return next, nil
}

// DecodeWithLen decodes a length-prefixed bitfield whose bit count is known
// from context. A body shorter than ceil(bits/8) is ErrTooShort; a longer
// body or a set bit at or above bits is ErrMalformed.
func DecodeWithLen(buf []byte, offset, bits int) (*Bitfield, int, error) {
	if bits < 0 {
		return nil, offset, ssz.Malformed(offset, fmt.Sprintf("negative bit count %d", bits))
	}
	body, next, err := ssz.ReadLengthPrefixed(buf, offset)
	if err != nil {
		return nil, offset, ssz.ShortBody(err)
	}
	want := byteLen(bits)
	if len(body) < want {
		return nil, offset, ssz.TooShort(offset+ssz.LengthPrefixSize, want, len(body))
	}
	if len(body) > want {
		return nil, offset, ssz.Malformed(offset, fmt.Sprintf("body of %d bytes for %d bits", len(body), bits))
	}
	if rem := bits % 8; rem != 0 && body[want-1]>>uint(rem) != 0 {
		return nil, offset, ssz.Malformed(offset, "set bits beyond bit count")
	}
	return &Bitfield{data: body, n: bits}, next, nil
}

// HashTreeRoot merkleizes the packed bytes and mixes in the bit capacity
// 8*len(bytes), which is what survives a round trip through the wire form.
func (b *Bitfield) HashTreeRoot() types.Root {
	root := ssz.Merkleize(ssz.Pack(b.data), 0)
	return ssz.MixInLength(root, uint64(len(b.data))*8)
}

// ToBitlist converts to the sentinel-terminated bitlist form.
func (b *Bitfield) ToBitlist() gobitfield.Bitlist {
	bl := gobitfield.NewBitlist(uint64(b.n))
	for i := 0; i < b.n; i++ {
		if b.Get(i) {
			bl.SetBitAt(uint64(i), true)
		}
	}
	return bl
}

// FromBitlist converts a sentinel-terminated bitlist into a Bitfield of the
// same length.
func FromBitlist(bl gobitfield.Bitlist) *Bitfield {
	out := New(int(bl.Len()))
	for i := uint64(0); i < bl.Len(); i++ {
		if bl.BitAt(i) {
			out.data[i/8] |= 1 << (i % 8)
		}
	}
	return out
}
