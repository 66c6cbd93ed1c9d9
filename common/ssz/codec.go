package ssz

import (
	"fmt"
	"math"

	fssz "github.com/ferranbt/fastssz"

	"github.com/geanlabs/leanattest/common/types"
)

// LengthPrefixSize is the width of the little-endian byte count written in
// front of every variable-size value.
const LengthPrefixSize = 4

// Encoder is implemented by every value with a canonical encoding.
// EncodeSSZ appends the encoding to dst and never fails.
type Encoder interface {
	EncodeSSZ(dst []byte) []byte
}

// Decoder is implemented by every value that can be read back from its
// canonical encoding. DecodeSSZ reads starting at offset and returns the
// offset just past the value. On error the receiver is left unchanged.
type Decoder interface {
	DecodeSSZ(buf []byte, offset int) (int, error)
}

// HashRoot is implemented by every value with a hash tree root.
type HashRoot interface {
	HashTreeRoot() types.Root
}

// Marshal returns the canonical encoding of v.
func Marshal(v Encoder) []byte {
	return v.EncodeSSZ(nil)
}

// Unmarshal decodes buf into v. The whole buffer must be consumed.
func Unmarshal(buf []byte, v Decoder) error {
	n, err := v.DecodeSSZ(buf, 0)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return Malformed(n, fmt.Sprintf("%d trailing bytes", len(buf)-n))
	}
	return nil
}

// PutUint64 appends v as 8 little-endian bytes.
func PutUint64(dst []byte, v uint64) []byte {
	return fssz.MarshalUint64(dst, v)
}

// PutUint32 appends v as 4 little-endian bytes.
func PutUint32(dst []byte, v uint32) []byte {
	return fssz.MarshalUint32(dst, v)
}

func PutBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

// PutFixedBytes appends b without a prefix.
func PutFixedBytes(dst []byte, b []byte) []byte {
	return append(dst, b...)
}

// PutLengthPrefixed appends the 4-byte length of body followed by body.
// A body longer than math.MaxUint32 cannot be represented and panics.
func PutLengthPrefixed(dst []byte, body []byte) []byte {
	if uint64(len(body)) > math.MaxUint32 {
		panic(fmt.Sprintf("ssz: variable-size body of %d bytes exceeds length prefix", len(body)))
	}
	dst = PutUint32(dst, uint32(len(body)))
	return append(dst, body...)
}

// need checks that n bytes can be read at offset.
func need(buf []byte, offset, n int) error {
	if offset < 0 || offset > len(buf) {
		return Malformed(offset, "offset outside buffer")
	}
	if len(buf)-offset < n {
		return errShort(ErrMalformed, offset, n, len(buf)-offset)
	}
	return nil
}

func ReadUint64(buf []byte, offset int) (uint64, int, error) {
	if err := need(buf, offset, 8); err != nil {
		return 0, offset, err
	}
	return fssz.UnmarshallUint64(buf[offset : offset+8]), offset + 8, nil
}

func ReadUint32(buf []byte, offset int) (uint32, int, error) {
	if err := need(buf, offset, 4); err != nil {
		return 0, offset, err
	}
	return fssz.UnmarshallUint32(buf[offset : offset+4]), offset + 4, nil
}

// ReadBool accepts only 0x00 and 0x01.
func ReadBool(buf []byte, offset int) (bool, int, error) {
	if err := need(buf, offset, 1); err != nil {
		return false, offset, err
	}
	switch buf[offset] {
	case 0:
		return false, offset + 1, nil
	case 1:
		return true, offset + 1, nil
	default:
		return false, offset, Malformed(offset, fmt.Sprintf("invalid bool byte 0x%02x", buf[offset]))
	}
}

// ReadFixedBytes copies len(dst) bytes from buf at offset into dst.
func ReadFixedBytes(buf []byte, offset int, dst []byte) (int, error) {
	if err := need(buf, offset, len(dst)); err != nil {
		return offset, err
	}
	copy(dst, buf[offset:offset+len(dst)])
	return offset + len(dst), nil
}

// ReadLengthPrefixed reads a 4-byte length and returns a copy of the body
// that follows it.
func ReadLengthPrefixed(buf []byte, offset int) ([]byte, int, error) {
	n, next, err := ReadUint32(buf, offset)
	if err != nil {
		return nil, offset, err
	}
	remaining := len(buf) - next
	if uint64(n) > uint64(remaining) {
		return nil, offset, errShort(ErrInvalidLength, next, int(n), remaining)
	}
	body := make([]byte, n)
	copy(body, buf[next:next+int(n)])
	return body, next + int(n), nil
}
