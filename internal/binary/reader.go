// Package binary reads and writes the fixed and variable width integers
// that HDF5 metadata is made of.
package binary

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Config holds the byte order and the widths of file offsets and lengths.
// The superblock decides the widths.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int
	LengthSize int
}

// DefaultConfig is little-endian with 8-byte offsets and lengths, the
// layout of every file this module writes.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// undefined returns the all-ones sentinel for a field of size bytes.
func undefined(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*size) - 1
}

// Reader is a cursor over an io.ReaderAt.
type Reader struct {
	r   io.ReaderAt
	cfg Config
	pos int64
}

func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{r: r, cfg: cfg}
}

// At returns a reader over the same source positioned at offset.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{r: r.r, cfg: r.cfg, pos: offset}
}

func (r *Reader) Pos() int64 { return r.pos }

func (r *Reader) OffsetSize() int { return r.cfg.OffsetSize }

func (r *Reader) LengthSize() int { return r.cfg.LengthSize }

func (r *Reader) ByteOrder() binary.ByteOrder { return r.cfg.ByteOrder }

// Peek returns the next n bytes without moving the cursor.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := r.r.ReadAt(buf, r.pos); err != nil {
		return nil, fmt.Errorf("reading %d bytes at %d: %w", n, r.pos, err)
	}
	return buf, nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf, err := r.Peek(n)
	if err != nil {
		return nil, err
	}
	r.pos += int64(len(buf))
	return buf, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUintN(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	return r.ReadUintN(8)
}

// ReadUintN reads an unsigned integer of n bytes, 1 through 8.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	if n < 1 || n > 8 {
		return 0, fmt.Errorf("cannot read a %d-byte integer", n)
	}
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return decodeUint(r.cfg.ByteOrder, buf), nil
}

func (r *Reader) ReadOffset() (uint64, error) {
	return r.ReadUintN(r.cfg.OffsetSize)
}

func (r *Reader) ReadLength() (uint64, error) {
	return r.ReadUintN(r.cfg.LengthSize)
}

// IsUndefinedOffset reports whether offset is the all-ones address HDF5
// uses for "not allocated".
func (r *Reader) IsUndefinedOffset(offset uint64) bool {
	return offset == undefined(r.cfg.OffsetSize)
}

func (r *Reader) Skip(n int64) {
	r.pos += n
}

// Align moves the cursor up to the next multiple of alignment.
func (r *Reader) Align(alignment int64) {
	if alignment > 1 {
		r.pos = (r.pos + alignment - 1) / alignment * alignment
	}
}

func decodeUint(order binary.ByteOrder, buf []byte) uint64 {
	var v uint64
	if order == binary.BigEndian {
		for _, b := range buf {
			v = v<<8 | uint64(b)
		}
		return v
	}
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}
