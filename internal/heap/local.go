package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// LocalHeap holds the member names of a symbol table group.
type LocalHeap struct {
	DataSize    uint64
	FreeOffset  uint64
	DataAddress uint64
	data        []byte
}

// ReadLocalHeap reads the "HEAP" structure at address and its data
// segment.
func ReadLocalHeap(r *binary.Reader, address uint64) (*LocalHeap, error) {
	hr := r.At(int64(address))
	header, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading local heap: %w", err)
	}
	if string(header[:4]) != "HEAP" {
		return nil, fmt.Errorf("invalid local heap signature: got %q, expected \"HEAP\"", header[:4])
	}
	if header[4] != 0 {
		return nil, fmt.Errorf("unsupported local heap version: %d", header[4])
	}

	h := &LocalHeap{}
	if h.DataSize, err = hr.ReadLength(); err != nil {
		return nil, err
	}
	if h.FreeOffset, err = hr.ReadLength(); err != nil {
		return nil, err
	}
	if h.DataAddress, err = hr.ReadOffset(); err != nil {
		return nil, err
	}
	if h.data, err = r.At(int64(h.DataAddress)).ReadBytes(int(h.DataSize)); err != nil {
		return nil, fmt.Errorf("reading local heap data: %w", err)
	}
	return h, nil
}

// GetString returns the NUL-terminated string at offset, or "" when
// offset is outside the heap.
func (h *LocalHeap) GetString(offset uint64) string {
	if h == nil || offset >= uint64(len(h.data)) {
		return ""
	}
	s := h.data[offset:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}
