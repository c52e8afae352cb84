package message

import (
	"fmt"

	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// fixedArrayPageBits is the page size exponent recorded for fixed array
// indexes. Indexes written here never reach a page of 1<<10 entries.
const fixedArrayPageBits = 10

// Serialize writes compact and contiguous layouts as version 3 and
// chunked layouts as version 4.
func (m *DataLayout) Serialize(w *binary.Writer) error {
	version := uint8(3)
	if m.Class == LayoutChunked {
		version = 4
	}
	if err := w.WriteBytes([]byte{version, uint8(m.Class)}); err != nil {
		return err
	}

	switch m.Class {
	case LayoutCompact:
		if len(m.CompactData) > 0xFFFF {
			return fmt.Errorf("compact data of %d bytes exceeds 64 KiB", len(m.CompactData))
		}
		if err := w.WriteUint16(uint16(len(m.CompactData))); err != nil {
			return err
		}
		return w.WriteBytes(m.CompactData)

	case LayoutContiguous:
		if err := w.WriteOffset(m.Address); err != nil {
			return err
		}
		return w.WriteLength(m.Size)

	case LayoutChunked:
		return m.serializeChunked(w)
	}
	return fmt.Errorf("writing %d layouts is not supported", m.Class)
}

func (m *DataLayout) dimSize() int {
	if m.DimensionSizeBytes == 0 {
		return 4
	}
	return int(m.DimensionSizeBytes)
}

func (m *DataLayout) serializeChunked(w *binary.Writer) error {
	size := m.dimSize()
	if err := w.WriteBytes([]byte{m.ChunkFlags, uint8(len(m.ChunkDims)), uint8(size)}); err != nil {
		return err
	}
	for _, d := range m.ChunkDims {
		if err := w.WriteUintN(uint64(d), size); err != nil {
			return err
		}
	}
	if err := w.WriteUint8(uint8(m.ChunkIndexType)); err != nil {
		return err
	}

	switch m.ChunkIndexType {
	case ChunkIndexSingleChunk:
		if m.ChunkFlags&layoutSingleIndexWithFilter != 0 {
			if err := w.WriteLength(m.FilteredChunkSize); err != nil {
				return err
			}
			if err := w.WriteUint32(m.FilteredChunkMask); err != nil {
				return err
			}
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		if err := w.WriteUint8(fixedArrayPageBits); err != nil {
			return err
		}
	default:
		return fmt.Errorf("writing %v chunk indexes is not supported", m.ChunkIndexType)
	}
	return w.WriteOffset(m.ChunkIndexAddr)
}

// SerializedSize returns the encoded size of the message.
func (m *DataLayout) SerializedSize(w *binary.Writer) int {
	switch m.Class {
	case LayoutCompact:
		return 4 + len(m.CompactData)
	case LayoutContiguous:
		return 2 + w.OffsetSize() + w.LengthSize()
	case LayoutChunked:
		size := 2 + 3 + len(m.ChunkDims)*m.dimSize() + 1 + w.OffsetSize()
		switch m.ChunkIndexType {
		case ChunkIndexFixedArray:
			size++
		case ChunkIndexSingleChunk:
			if m.ChunkFlags&layoutSingleIndexWithFilter != 0 {
				size += w.LengthSize() + 4
			}
		}
		return size
	}
	return 2
}

// NewCompactLayout returns a layout storing data in the object header.
func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, CompactData: data}
}

// NewContiguousLayout returns a layout for size bytes at address.
func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: address, Size: size}
}

// NewChunkedLayout returns a chunked layout for chunks of chunkDims
// elements of elementSize bytes. The index address is filled in once the
// index is written. Dimension sizes use the fewest bytes that hold the
// largest of them.
func NewChunkedLayout(chunkDims []uint32, elementSize uint32, indexType ChunkIndexType) *DataLayout {
	all := append(append([]uint32(nil), chunkDims...), elementSize)
	size := uint8(1)
	for _, d := range all {
		switch {
		case d > 0xFFFF:
			size = max(size, 4)
		case d > 0xFF:
			size = max(size, 2)
		}
	}
	return &DataLayout{
		Version:            4,
		Class:              LayoutChunked,
		ChunkDims:          all,
		ChunkIndexType:     indexType,
		DimensionSizeBytes: size,
	}
}
