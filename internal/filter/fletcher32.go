package filter

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// Fletcher32Filter checks the checksum trailing each chunk.
type Fletcher32Filter struct{}

func NewFletcher32(clientData []uint32) *Fletcher32Filter {
	return &Fletcher32Filter{}
}

func (f *Fletcher32Filter) ID() uint16 {
	return message.FilterFletcher32
}

// Decode verifies and strips the 4-byte checksum. Files from HDF5 1.6
// and earlier store it byte-swapped, so both orders are accepted.
func (f *Fletcher32Filter) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: chunk of %d bytes has no checksum", len(input))
	}
	data := input[:len(input)-4]
	stored := binary.LittleEndian.Uint32(input[len(data):])
	computed := binpkg.Fletcher32(data)
	if stored != computed && stored != bits.ReverseBytes32(computed) {
		return nil, fmt.Errorf("fletcher32: checksum mismatch (stored 0x%08x, computed 0x%08x)", stored, computed)
	}
	return data, nil
}

func (f *Fletcher32Filter) Encode(raw []byte) ([]byte, error) {
	out := make([]byte, len(raw), len(raw)+4)
	copy(out, raw)
	return binary.LittleEndian.AppendUint32(out, binpkg.Fletcher32(raw)), nil
}
