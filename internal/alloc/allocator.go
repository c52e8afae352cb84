package alloc

import "sort"

// Block is a run of file space.
type Block struct {
	Addr uint64
	Size uint64
}

func (b Block) end() uint64 { return b.Addr + b.Size }

// Allocator tracks the end of file and the blocks freed below it. It is
// not safe for concurrent use.
type Allocator struct {
	eof  uint64
	free []Block // sorted by address, never adjacent
}

// New returns an allocator whose first block starts at base, the first
// byte after the superblock.
func New(base uint64) *Allocator {
	return &Allocator{eof: base}
}

// Alloc reserves size bytes and returns their address. A zero size
// returns the end of file without reserving anything.
func (a *Allocator) Alloc(size uint64) uint64 {
	if size == 0 {
		return a.eof
	}
	for i, b := range a.free {
		if b.Size < size {
			continue
		}
		if b.Size == size {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = Block{Addr: b.Addr + size, Size: b.Size - size}
		}
		return b.Addr
	}
	addr := a.eof
	a.eof += size
	return addr
}

// Free returns a block for reuse. The caller must no longer reference it.
func (a *Allocator) Free(addr, size uint64) {
	if size == 0 {
		return
	}
	blk := Block{Addr: addr, Size: size}
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].Addr > addr })

	if i < len(a.free) && blk.end() == a.free[i].Addr {
		blk.Size += a.free[i].Size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
	if i > 0 && a.free[i-1].end() == blk.Addr {
		a.free[i-1].Size += blk.Size
		return
	}
	a.free = append(a.free, Block{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = blk
}

// EOFAddr returns the address one past the last reserved byte.
func (a *Allocator) EOFAddr() uint64 {
	return a.eof
}

// FreeBlocks returns a copy of the free list in address order.
func (a *Allocator) FreeBlocks() []Block {
	return append([]Block(nil), a.free...)
}
