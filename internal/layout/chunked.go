package layout

import (
	"fmt"
	"sync"

	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/btree"
	"github.com/robert-malhotra/xpcs2nexus/internal/filter"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// Chunked reads chunked storage. The chunk index is read once, on first
// use.
type Chunked struct {
	layout   *message.DataLayout
	dims     []uint64
	chunk    []uint64
	elem     uint64
	pipeline *filter.Pipeline
	reader   *binary.Reader
	fill     []byte

	once    sync.Once
	entries []btree.ChunkEntry
	err     error
}

// NewChunked returns the reader for a chunked layout.
func NewChunked(
	layout *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	filterPipeline *message.FilterPipeline,
	reader *binary.Reader,
) (*Chunked, error) {
	dims := extent(dataspace)
	// the layout carries the element size as an extra trailing dimension
	if len(layout.ChunkDims) < len(dims) {
		return nil, fmt.Errorf("chunked layout has %d chunk dimensions for rank %d",
			len(layout.ChunkDims), len(dims))
	}
	chunk := make([]uint64, len(dims))
	for d := range chunk {
		if layout.ChunkDims[d] == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
		chunk[d] = uint64(layout.ChunkDims[d])
	}

	c := &Chunked{
		layout: layout,
		dims:   dims,
		chunk:  chunk,
		elem:   uint64(datatype.Size),
		reader: reader,
	}
	if filterPipeline != nil {
		p, err := filter.NewPipeline(filterPipeline)
		if err != nil {
			return nil, fmt.Errorf("creating filter pipeline: %w", err)
		}
		c.pipeline = p
	}
	return c, nil
}

func (c *Chunked) Class() message.LayoutClass {
	return message.LayoutChunked
}

// IndexType reports how the chunks are located.
func (c *Chunked) IndexType() message.ChunkIndexType {
	return c.layout.ChunkIndexType
}

func (c *Chunked) Read() ([]byte, error) {
	return c.ReadSlice(make([]uint64, len(c.dims)), c.dims)
}

// SetFill sets the element value of chunks that were never written.
func (c *Chunked) SetFill(value []byte) {
	c.fill = value
}

// ReadSlice reads only the chunks that intersect the selection. Elements
// of chunks that were never written read as the fill value, or zero.
func (c *Chunked) ReadSlice(start, count []uint64) ([]byte, error) {
	if err := checkSlab(c.dims, start, count); err != nil {
		return nil, err
	}
	out := make([]byte, product(count)*c.elem)
	if len(out) == 0 {
		return out, nil
	}
	fill(out, c.fill)

	c.once.Do(func() { c.entries, c.err = c.index() })
	if c.err != nil {
		return nil, fmt.Errorf("reading %v: %w", c.layout.ChunkIndexType, c.err)
	}

	for _, e := range c.entries {
		if !c.overlaps(e.Offset, start, count) {
			continue
		}
		data, err := c.load(e)
		if err != nil {
			return nil, fmt.Errorf("chunk at %v: %w", e.Offset, err)
		}
		copyBox(out, start, count, data, e.Offset, c.chunk, c.elem)
	}
	return out, nil
}

func (c *Chunked) overlaps(offset, start, count []uint64) bool {
	for d := range offset {
		if offset[d] >= start[d]+count[d] || offset[d]+c.chunk[d] <= start[d] {
			return false
		}
	}
	return true
}

// chunkBytes is the decoded size of one chunk.
func (c *Chunked) chunkBytes() uint64 {
	return product(c.chunk) * c.elem
}

// load reads and decodes one chunk.
func (c *Chunked) load(e btree.ChunkEntry) ([]byte, error) {
	data, err := c.reader.At(int64(e.Address)).ReadBytes(int(e.Size))
	if err != nil {
		return nil, err
	}
	if c.pipeline != nil && !c.pipeline.Empty() {
		if data, err = c.pipeline.Decode(data, e.FilterMask); err != nil {
			return nil, err
		}
	}
	if want := c.chunkBytes(); uint64(len(data)) < want {
		return nil, fmt.Errorf("decoded to %d bytes, want %d", len(data), want)
	}
	return data, nil
}

// grid returns the number of chunks along each axis.
func (c *Chunked) grid() []uint64 {
	g := make([]uint64, len(c.dims))
	for d := range g {
		g[d] = (c.dims[d] + c.chunk[d] - 1) / c.chunk[d]
	}
	return g
}

// offsetOf returns the first element of the i-th chunk in row-major
// chunk order.
func (c *Chunked) offsetOf(i uint64, grid []uint64) []uint64 {
	off := make([]uint64, len(grid))
	for d := len(grid) - 1; d >= 0; d-- {
		off[d] = (i % grid[d]) * c.chunk[d]
		i /= grid[d]
	}
	return off
}

// index lists the stored chunks.
func (c *Chunked) index() ([]btree.ChunkEntry, error) {
	addr := c.layout.ChunkIndexAddr
	if c.reader.IsUndefinedOffset(addr) {
		return nil, nil
	}

	switch c.layout.ChunkIndexType {
	case message.ChunkIndexBTreeV1:
		return btree.ReadChunks(c.reader, addr, len(c.dims))

	case message.ChunkIndexSingleChunk:
		e := btree.ChunkEntry{
			Offset:  make([]uint64, len(c.dims)),
			Size:    uint32(c.chunkBytes()),
			Address: addr,
		}
		if c.layout.FilteredChunkSize > 0 {
			e.Size = uint32(c.layout.FilteredChunkSize)
			e.FilterMask = c.layout.FilteredChunkMask
		}
		return []btree.ChunkEntry{e}, nil

	case message.ChunkIndexImplicit:
		grid := c.grid()
		n := product(grid)
		size := c.chunkBytes()
		entries := make([]btree.ChunkEntry, n)
		for i := range entries {
			entries[i] = btree.ChunkEntry{
				Offset:  c.offsetOf(uint64(i), grid),
				Size:    uint32(size),
				Address: addr + uint64(i)*size,
			}
		}
		return entries, nil

	case message.ChunkIndexFixedArray:
		return c.readFixedArray(addr)
	}
	return nil, fmt.Errorf("%v index is not supported", c.layout.ChunkIndexType)
}

// fixed array client ID of filtered chunk entries
const fixedArrayFilteredChunks = 1

// readFixedArray reads an unpaged fixed array index: the "FAHD" header
// and its "FADB" data block.
func (c *Chunked) readFixedArray(addr uint64) ([]btree.ChunkEntry, error) {
	nr := c.reader.At(int64(addr))
	header, err := nr.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	if string(header[:4]) != "FAHD" {
		return nil, fmt.Errorf("invalid fixed array signature %q", header[:4])
	}
	if header[4] != 0 {
		return nil, fmt.Errorf("unsupported fixed array version %d", header[4])
	}
	client, entrySize, pageBits := header[5], int(header[6]), header[7]
	count, err := nr.ReadLength()
	if err != nil {
		return nil, err
	}
	block, err := nr.ReadOffset()
	if err != nil {
		return nil, err
	}
	if count > 1<<pageBits {
		return nil, fmt.Errorf("paged fixed array of %d entries is not supported", count)
	}

	br := c.reader.At(int64(block))
	sig, err := br.ReadBytes(6)
	if err != nil {
		return nil, err
	}
	if string(sig[:4]) != "FADB" {
		return nil, fmt.Errorf("invalid fixed array data block signature %q", sig[:4])
	}
	br.Skip(int64(c.reader.OffsetSize()))

	grid := c.grid()
	sizeBytes := entrySize - c.reader.OffsetSize() - 4
	entries := make([]btree.ChunkEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		e := btree.ChunkEntry{Offset: c.offsetOf(i, grid), Size: uint32(c.chunkBytes())}
		if e.Address, err = br.ReadOffset(); err != nil {
			return nil, err
		}
		if client == fixedArrayFilteredChunks {
			size, err := br.ReadUintN(sizeBytes)
			if err != nil {
				return nil, err
			}
			e.Size = uint32(size)
			if e.FilterMask, err = br.ReadUint32(); err != nil {
				return nil, err
			}
		}
		if e.Address != 0 && !c.reader.IsUndefinedOffset(e.Address) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
