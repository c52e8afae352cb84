package layout

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	hbin "github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/filter"
)

// MaxFixedArrayChunks is the most chunks one unpaged fixed array data
// block indexes.
const MaxFixedArrayChunks = 1 << fixedArrayPageBits

const fixedArrayPageBits = 10

// ChunkWriter stores the chunks of one dataset in row-major chunk order,
// then the fixed array index locating them.
type ChunkWriter struct {
	w        *hbin.Writer
	alloc    func(size uint64) uint64
	chunk    []uint32
	elem     uint32
	pipeline *filter.Pipeline

	addrs []uint64
	sizes []uint64
}

// NewChunkWriter returns a writer for chunks of chunkDims elements of
// elementSize bytes. alloc reserves file space. A nil or empty pipeline
// stores chunks unfiltered.
func NewChunkWriter(w *hbin.Writer, chunkDims []uint32, elementSize uint32, alloc func(size uint64) uint64, p *filter.Pipeline) *ChunkWriter {
	if p != nil && p.Empty() {
		p = nil
	}
	return &ChunkWriter{w: w, alloc: alloc, chunk: chunkDims, elem: elementSize, pipeline: p}
}

// ChunkSize returns the unfiltered size of one chunk in bytes.
func (cw *ChunkWriter) ChunkSize() uint64 {
	size := uint64(cw.elem)
	for _, d := range cw.chunk {
		size *= uint64(d)
	}
	return size
}

// Filtered reports whether chunks pass through a filter pipeline.
func (cw *ChunkWriter) Filtered() bool {
	return cw.pipeline != nil
}

// store writes data to newly allocated space.
func (cw *ChunkWriter) store(data []byte) (uint64, error) {
	addr := cw.alloc(uint64(len(data)))
	if err := cw.w.At(int64(addr)).WriteBytes(data); err != nil {
		return 0, err
	}
	return addr, nil
}

// WriteUnindexed writes the chunks of an unfiltered dataset back to back
// and returns the address of the first. Implicit indexes locate chunks by
// position alone.
func (cw *ChunkWriter) WriteUnindexed(data []byte) (uint64, error) {
	if cw.Filtered() {
		return 0, fmt.Errorf("filtered chunks need an index")
	}
	return cw.store(data)
}

// WriteChunk zero pads data to a full chunk, filters it and records where
// it went.
func (cw *ChunkWriter) WriteChunk(data []byte) error {
	full := cw.ChunkSize()
	switch n := uint64(len(data)); {
	case n > full:
		return fmt.Errorf("chunk of %d bytes exceeds chunk size %d", n, full)
	case n < full:
		data = append(data[:n:n], make([]byte, full-n)...)
	}
	if len(cw.addrs) == MaxFixedArrayChunks {
		return fmt.Errorf("more than %d chunks", MaxFixedArrayChunks)
	}

	if cw.pipeline != nil {
		var err error
		if data, err = cw.pipeline.Encode(data); err != nil {
			return fmt.Errorf("encoding chunk %d: %w", len(cw.addrs), err)
		}
	}
	addr, err := cw.store(data)
	if err != nil {
		return err
	}
	cw.addrs = append(cw.addrs, addr)
	cw.sizes = append(cw.sizes, uint64(len(data)))
	return nil
}

// Chunks returns how many chunks have been written.
func (cw *ChunkWriter) Chunks() int {
	return len(cw.addrs)
}

// sizeBytes is the width of the stored size of a filtered chunk entry.
// It leaves room for a filter that grows the chunk.
func sizeBytes(chunkSize uint64) int {
	return min(1+(bits.Len64(chunkSize)+7)/8, 8)
}

// WriteIndex writes a fixed array over the chunks written so far: a
// "FAHD" header followed by one "FADB" data block. Unwritten chunks are
// absent from the index and read back as the fill value.
func (cw *ChunkWriter) WriteIndex() (uint64, error) {
	if len(cw.addrs) == 0 {
		return cw.w.UndefinedOffset(), nil
	}
	offset, length := cw.w.OffsetSize(), cw.w.LengthSize()

	client, entry, width := byte(0), offset, 0
	if cw.Filtered() {
		width = sizeBytes(cw.ChunkSize())
		client, entry = 1, offset+width+4
	}

	headerAddr := cw.alloc(uint64(4 + 4 + length + offset + 4))
	blockAddr := cw.alloc(uint64(4 + 2 + offset + len(cw.addrs)*entry + 4))

	block := append([]byte("FADB"), 0, client)
	block = appendUint(block, headerAddr, offset)
	for i, addr := range cw.addrs {
		block = appendUint(block, addr, offset)
		if cw.Filtered() {
			block = appendUint(block, cw.sizes[i], width)
			block = binary.LittleEndian.AppendUint32(block, 0)
		}
	}
	block = binary.LittleEndian.AppendUint32(block, hbin.Lookup3Checksum(block))

	header := append([]byte("FAHD"), 0, client, byte(entry), fixedArrayPageBits)
	header = appendUint(header, uint64(len(cw.addrs)), length)
	header = appendUint(header, blockAddr, offset)
	header = binary.LittleEndian.AppendUint32(header, hbin.Lookup3Checksum(header))

	if err := cw.w.At(int64(blockAddr)).WriteBytes(block); err != nil {
		return 0, err
	}
	if err := cw.w.At(int64(headerAddr)).WriteBytes(header); err != nil {
		return 0, err
	}
	return headerAddr, nil
}

// appendUint appends the low n bytes of v, little-endian.
func appendUint(b []byte, v uint64, n int) []byte {
	return binary.LittleEndian.AppendUint64(b, v)[:len(b)+n]
}

// NumChunks returns the number of chunks covering dataDims.
func NumChunks(dataDims []uint64, chunkDims []uint32) uint64 {
	total := uint64(1)
	for i, d := range dataDims {
		total *= (d + uint64(chunkDims[i]) - 1) / uint64(chunkDims[i])
	}
	return total
}

// SplitIntoChunks cuts row-major data into full-size chunks in row-major
// chunk order. Edge chunks are zero padded.
func SplitIntoChunks(data []byte, dataDims []uint64, chunkDims []uint32, elementSize uint32) [][]byte {
	if len(dataDims) == 0 {
		return [][]byte{data}
	}
	elem := uint64(elementSize)
	shape := make([]uint64, len(chunkDims))
	grid := make([]uint64, len(dataDims))
	for d, n := range dataDims {
		shape[d] = uint64(chunkDims[d])
		grid[d] = (n + shape[d] - 1) / shape[d]
	}
	zero := make([]uint64, len(dataDims))

	total := product(grid)
	chunks := make([][]byte, 0, total)
	for c := uint64(0); c < total; c++ {
		origin := make([]uint64, len(grid))
		rem := c
		for d := len(grid) - 1; d >= 0; d-- {
			origin[d] = (rem % grid[d]) * shape[d]
			rem /= grid[d]
		}
		buf := make([]byte, product(shape)*elem)
		copyBox(buf, origin, shape, data, zero, dataDims, elem)
		chunks = append(chunks, buf)
	}
	return chunks
}

// FitChunkDims grows chunk dimensions, leading axis first, until the
// dataset is covered by at most MaxFixedArrayChunks chunks. Zero chunk
// dimensions become the full extent of their axis.
func FitChunkDims(dataDims []uint64, chunkDims []uint32) []uint32 {
	out := append([]uint32(nil), chunkDims...)
	for i, d := range dataDims {
		if out[i] == 0 || uint64(out[i]) > d && d > 0 {
			out[i] = uint32(max(d, 1))
		}
	}
	for d := 0; d < len(out) && NumChunks(dataDims, out) > MaxFixedArrayChunks; d++ {
		for NumChunks(dataDims, out) > MaxFixedArrayChunks && uint64(out[d]) < dataDims[d] {
			out[d] = uint32(min(uint64(out[d])*2, dataDims[d]))
		}
	}
	return out
}
