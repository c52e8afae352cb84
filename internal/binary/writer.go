package binary

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Writer is a cursor over an io.WriterAt.
type Writer struct {
	w   io.WriterAt
	cfg Config
	pos int64
}

func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{w: w, cfg: cfg}
}

// At returns a writer over the same destination positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{w: w.w, cfg: w.cfg, pos: offset}
}

func (w *Writer) Pos() int64 { return w.pos }

func (w *Writer) OffsetSize() int { return w.cfg.OffsetSize }

func (w *Writer) LengthSize() int { return w.cfg.LengthSize }

func (w *Writer) ByteOrder() binary.ByteOrder { return w.cfg.ByteOrder }

// UndefinedOffset returns the all-ones address for the offset width.
func (w *Writer) UndefinedOffset() uint64 {
	return undefined(w.cfg.OffsetSize)
}

func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	if err != nil {
		return fmt.Errorf("writing %d bytes at %d: %w", len(data), w.pos-int64(n), err)
	}
	return nil
}

func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

func (w *Writer) WriteUint16(v uint16) error {
	return w.WriteUintN(uint64(v), 2)
}

func (w *Writer) WriteUint32(v uint32) error {
	return w.WriteUintN(uint64(v), 4)
}

func (w *Writer) WriteUint64(v uint64) error {
	return w.WriteUintN(v, 8)
}

// WriteUintN writes v in n bytes, 1 through 8. Values that do not fit
// are an error rather than silently truncated.
func (w *Writer) WriteUintN(v uint64, n int) error {
	if n < 1 || n > 8 {
		return fmt.Errorf("cannot write a %d-byte integer", n)
	}
	if v > undefined(n) {
		return fmt.Errorf("value %d does not fit in %d bytes", v, n)
	}
	return w.WriteBytes(encodeUint(w.cfg.ByteOrder, v, n))
}

func (w *Writer) WriteOffset(v uint64) error {
	return w.WriteUintN(v, w.cfg.OffsetSize)
}

func (w *Writer) WriteLength(v uint64) error {
	return w.WriteUintN(v, w.cfg.LengthSize)
}

func encodeUint(order binary.ByteOrder, v uint64, n int) []byte {
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		shift := 8 * i
		if order == binary.BigEndian {
			shift = 8 * (n - 1 - i)
		}
		buf[i] = byte(v >> shift)
	}
	return buf
}
