package btree

import (
	"fmt"

	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/heap"
)

// Link types of a GroupEntry.
const (
	HardLink uint32 = 0
	SoftLink uint32 = 1
)

// GroupEntry is one member of a symbol table group.
type GroupEntry struct {
	Name          string
	ObjectAddress uint64
	LinkType      uint32
	SoftLinkValue string
}

// symbol table entry cache type holding a soft link value
const cacheSoftLink = 2

// ReadGroupEntries lists the members of the symbol table group whose
// B-tree is at addr. Member names live in names.
func ReadGroupEntries(r *binary.Reader, addr uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	var entries []GroupEntry
	err := walk(r, addr, groupNodes, r.LengthSize(), func(n *node) error {
		for _, snod := range n.children {
			symbols, err := readSymbolNode(r, snod, names)
			if err != nil {
				return fmt.Errorf("reading symbol table node at %d: %w", snod, err)
			}
			entries = append(entries, symbols...)
		}
		return nil
	})
	return entries, err
}

func readSymbolNode(r *binary.Reader, addr uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	nr := r.At(int64(addr))
	header, err := nr.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	if string(header[:4]) != "SNOD" {
		return nil, fmt.Errorf("invalid symbol table node signature: %q", header[:4])
	}
	if header[4] != 1 {
		return nil, fmt.Errorf("unsupported symbol table node version %d", header[4])
	}
	count := int(r.ByteOrder().Uint16(header[6:]))

	entries := make([]GroupEntry, 0, count)
	for i := 0; i < count; i++ {
		e, err := readSymbol(nr, names)
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		if e.Name != "" {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// readSymbol reads one symbol table entry: name offset, object header
// address, cache type, 4 reserved bytes and a 16 byte scratch pad.
func readSymbol(nr *binary.Reader, names *heap.LocalHeap) (GroupEntry, error) {
	nameOffset, err := nr.ReadOffset()
	if err != nil {
		return GroupEntry{}, err
	}
	objAddr, err := nr.ReadOffset()
	if err != nil {
		return GroupEntry{}, err
	}
	rest, err := nr.ReadBytes(24)
	if err != nil {
		return GroupEntry{}, err
	}

	e := GroupEntry{Name: names.GetString(nameOffset), ObjectAddress: objAddr}
	if nr.ByteOrder().Uint32(rest) == cacheSoftLink {
		e.LinkType = SoftLink
		e.ObjectAddress = 0
		e.SoftLinkValue = names.GetString(uint64(nr.ByteOrder().Uint32(rest[8:])))
	}
	return e, nil
}
