package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// SymbolTable locates the v1 B-tree and local heap holding the members
// of an old-style group.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func parseSymbolTable(data []byte, r *binpkg.Reader) (*SymbolTable, error) {
	n := r.OffsetSize()
	if len(data) < 2*n {
		return nil, fmt.Errorf("symbol table message of %d bytes is too short", len(data))
	}
	return &SymbolTable{
		BTreeAddress:     decodeUint(data, n, r.ByteOrder()),
		LocalHeapAddress: decodeUint(data[n:], n, r.ByteOrder()),
	}, nil
}
