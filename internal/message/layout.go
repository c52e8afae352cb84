package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// LayoutClass is the storage class of a dataset.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

// ChunkIndexType identifies how the chunks of a dataset are located.
type ChunkIndexType uint8

const (
	ChunkIndexSingleChunk     ChunkIndexType = 0
	ChunkIndexImplicit        ChunkIndexType = 1
	ChunkIndexFixedArray      ChunkIndexType = 2
	ChunkIndexExtensibleArray ChunkIndexType = 3
	ChunkIndexBTreeV2         ChunkIndexType = 4

	// ChunkIndexBTreeV1 is not stored in the file. Layout messages before
	// version 4 always index chunks with a version 1 B-tree.
	ChunkIndexBTreeV1 ChunkIndexType = 0xFF
)

func (t ChunkIndexType) String() string {
	switch t {
	case ChunkIndexSingleChunk:
		return "single chunk"
	case ChunkIndexImplicit:
		return "implicit"
	case ChunkIndexFixedArray:
		return "fixed array"
	case ChunkIndexExtensibleArray:
		return "extensible array"
	case ChunkIndexBTreeV2:
		return "v2 B-tree"
	case ChunkIndexBTreeV1:
		return "v1 B-tree"
	}
	return fmt.Sprintf("chunk index %d", uint8(t))
}

// DataLayout is the data layout message (type 0x0008).
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	CompactData []byte

	// Contiguous storage.
	Address uint64
	Size    uint64

	// Chunked storage. ChunkDims carries one entry per dataset dimension
	// followed by the element size.
	ChunkDims      []uint32
	ChunkIndexAddr uint64
	ChunkIndexType ChunkIndexType

	ChunkFlags         uint8
	DimensionSizeBytes uint8

	// Single chunk index with filters.
	FilteredChunkSize uint64
	FilteredChunkMask uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

func (m *DataLayout) IsCompact() bool    { return m.Class == LayoutCompact }
func (m *DataLayout) IsContiguous() bool { return m.Class == LayoutContiguous }
func (m *DataLayout) IsChunked() bool    { return m.Class == LayoutChunked }

// single chunk flag: the chunk is filtered and its size and mask follow.
const layoutSingleIndexWithFilter = 0x02

func (c *cursor) dims(n, size int) ([]uint32, error) {
	dims := make([]uint32, n)
	for i := range dims {
		v, err := c.uint(size, "chunk dimensions")
		if err != nil {
			return nil, err
		}
		dims[i] = uint32(v)
	}
	return dims, nil
}

func parseDataLayout(data []byte, r *binpkg.Reader) (*DataLayout, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("data layout message too short")
	}
	m := &DataLayout{Version: data[0]}
	c := &cursor{data: data, r: r, what: fmt.Sprintf("data layout v%d", data[0])}

	var err error
	switch m.Version {
	case 1, 2:
		err = parseLayoutV1(c, m)
	case 3:
		err = parseLayoutV3(c, m)
	case 4:
		err = parseLayoutV4(c, m)
	default:
		return nil, fmt.Errorf("unsupported data layout version: %d", m.Version)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// parseLayoutV1 reads version 1 and 2 messages. Their dimension list
// precedes the compact payload and follows the address otherwise.
func parseLayoutV1(c *cursor, m *DataLayout) error {
	if err := c.need(8, "header"); err != nil {
		return err
	}
	ndims := int(c.data[1])
	m.Class = LayoutClass(c.data[2])
	c.pos = 8

	if m.Class != LayoutCompact {
		addr, err := c.offset("address")
		if err != nil {
			return err
		}
		if m.Class == LayoutChunked {
			m.ChunkIndexAddr = addr
			m.ChunkIndexType = ChunkIndexBTreeV1
		} else {
			m.Address = addr
		}
	}
	dims, err := c.dims(ndims, 4)
	if err != nil {
		return err
	}

	switch m.Class {
	case LayoutChunked:
		m.ChunkDims = dims
	case LayoutCompact:
		n, err := c.uint(4, "compact size")
		if err != nil {
			return err
		}
		m.CompactData, err = c.bytes(int(n), "compact data")
		return err
	}
	return nil
}

func parseLayoutV3(c *cursor, m *DataLayout) error {
	m.Class = LayoutClass(c.data[1])
	c.pos = 2

	switch m.Class {
	case LayoutCompact:
		n, err := c.uint(2, "compact size")
		if err != nil {
			return err
		}
		m.CompactData, err = c.bytes(int(n), "compact data")
		return err

	case LayoutContiguous:
		var err error
		if m.Address, err = c.offset("address"); err != nil {
			return err
		}
		m.Size, err = c.length("size")
		return err

	case LayoutChunked:
		ndims, err := c.uint(1, "dimensionality")
		if err != nil {
			return err
		}
		if m.ChunkIndexAddr, err = c.offset("B-tree address"); err != nil {
			return err
		}
		m.ChunkIndexType = ChunkIndexBTreeV1
		m.DimensionSizeBytes = 4
		m.ChunkDims, err = c.dims(int(ndims), 4)
		return err
	}
	return fmt.Errorf("unsupported layout class %d", m.Class)
}

func parseLayoutV4(c *cursor, m *DataLayout) error {
	if m.Class = LayoutClass(c.data[1]); m.Class != LayoutChunked {
		return parseLayoutV3(c, m)
	}
	c.pos = 2

	flags, err := c.uint(1, "flags")
	if err != nil {
		return err
	}
	m.ChunkFlags = uint8(flags)
	ndims, err := c.uint(1, "dimensionality")
	if err != nil {
		return err
	}
	size, err := c.uint(1, "dimension size")
	if err != nil {
		return err
	}
	m.DimensionSizeBytes = uint8(size)
	if m.ChunkDims, err = c.dims(int(ndims), int(size)); err != nil {
		return err
	}
	index, err := c.uint(1, "index type")
	if err != nil {
		return err
	}
	m.ChunkIndexType = ChunkIndexType(index)

	switch m.ChunkIndexType {
	case ChunkIndexSingleChunk:
		if m.ChunkFlags&layoutSingleIndexWithFilter != 0 {
			if m.FilteredChunkSize, err = c.length("filtered chunk size"); err != nil {
				return err
			}
			mask, err := c.uint(4, "filter mask")
			if err != nil {
				return err
			}
			m.FilteredChunkMask = uint32(mask)
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		c.pos++
	case ChunkIndexExtensibleArray:
		c.pos += 5
	case ChunkIndexBTreeV2:
		c.pos += 6
	default:
		return fmt.Errorf("unknown chunk index type %d", index)
	}

	m.ChunkIndexAddr, err = c.offset("index address")
	return err
}
