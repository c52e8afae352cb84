package btree

import (
	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// ChunkEntry locates one stored chunk.
type ChunkEntry struct {
	// Offset is the coordinate of the chunk's first element.
	Offset []uint64

	// FilterMask has bit i set when filter i was skipped for this chunk.
	FilterMask uint32

	// Size is the stored, possibly compressed, size in bytes.
	Size uint32

	Address uint64
}

// ReadChunks returns the chunks indexed by the v1 B-tree at addr for a
// dataset of rank ndims. Chunks that were never written are absent.
func ReadChunks(r *binary.Reader, addr uint64, ndims int) ([]ChunkEntry, error) {
	// size, filter mask, then one 8-byte offset per dimension plus the
	// element-size dimension
	keySize := 8 + 8*(ndims+1)
	order := r.ByteOrder()

	var entries []ChunkEntry
	err := walk(r, addr, chunkNodes, keySize, func(n *node) error {
		for i, child := range n.children {
			key := n.keys[i]
			size := order.Uint32(key)
			if size == 0 || r.IsUndefinedOffset(child) {
				continue
			}
			offset := make([]uint64, ndims)
			for d := range offset {
				offset[d] = order.Uint64(key[8+8*d:])
			}
			entries = append(entries, ChunkEntry{
				Offset:     offset,
				FilterMask: order.Uint32(key[4:]),
				Size:       size,
				Address:    child,
			})
		}
		return nil
	})
	return entries, err
}
