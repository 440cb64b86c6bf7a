package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned when a read runs past the end of the classfile
var ErrTruncated = errors.New("unexpected end of classfile")

// Reader reads big-endian classfile data from an in-memory buffer and tracks position
type Reader struct {
	data      []byte
	bytesRead int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) BytesRead() int {
	return r.bytesRead
}

func (r *Reader) Remaining() int {
	return len(r.data) - r.bytesRead
}

// ReadNBytes returns the next n bytes without copying
func (r *Reader) ReadNBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.bytesRead, r.Remaining())
	}
	buf := r.data[r.bytesRead : r.bytesRead+n]
	r.bytesRead += n
	return buf, nil
}

// ReadU1 reads a single unsigned byte
func (r *Reader) ReadU1() (uint8, error) {
	buf, err := r.ReadNBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadU2 reads a 2-byte unsigned integer (big-endian)
func (r *Reader) ReadU2() (uint16, error) {
	buf, err := r.ReadNBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

// ReadU4 reads a 4-byte unsigned integer (big-endian)
func (r *Reader) ReadU4() (uint32, error) {
	buf, err := r.ReadNBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// ReadU8 reads an 8-byte unsigned integer (big-endian)
func (r *Reader) ReadU8() (uint64, error) {
	buf, err := r.ReadNBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf), nil
}

// ReadI4 reads a 4-byte signed integer (big-endian)
func (r *Reader) ReadI4() (int32, error) {
	v, err := r.ReadU4()
	return int32(v), err
}

// Skip skips n bytes
func (r *Reader) Skip(n int) error {
	if _, err := r.ReadNBytes(n); err != nil {
		return fmt.Errorf("failed to skip %d bytes: %w", n, err)
	}
	return nil
}
