package message

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// Space allocation times.
const (
	AllocEarly       uint8 = 1
	AllocLate        uint8 = 2
	AllocIncremental uint8 = 3
)

// fill write time "if set", the library default
const fillIfSet = 2

// version 3 flag bits
const (
	fillUndefined = 0x10
	fillHasValue  = 0x20
)

// FillValue is the value read back for storage that was never written.
// An empty Value with IsDefined set means zero bytes.
type FillValue struct {
	Version        uint8
	SpaceAllocTime uint8
	FillWriteTime  uint8
	IsDefined      bool
	Value          []byte
	old            bool
}

func (m *FillValue) Type() Type {
	if m.old {
		return TypeFillValueOld
	}
	return TypeFillValue
}

func parseFillValueOld(data []byte) (*FillValue, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("fill value message of %d bytes is too short", len(data))
	}
	n := binary.LittleEndian.Uint32(data)
	if uint64(len(data)) < 4+uint64(n) {
		return nil, fmt.Errorf("fill value truncated")
	}
	return &FillValue{IsDefined: true, Value: clone(data[4 : 4+n]), old: true}, nil
}

func parseFillValue(data []byte) (*FillValue, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("fill value message of %d bytes is too short", len(data))
	}
	fv := &FillValue{Version: data[0]}
	var value []byte

	switch fv.Version {
	case 1, 2:
		if len(data) < 4 {
			return nil, fmt.Errorf("fill value v%d truncated", fv.Version)
		}
		fv.SpaceAllocTime, fv.FillWriteTime = data[1], data[2]
		fv.IsDefined = data[3] != 0
		if fv.IsDefined && len(data) >= 8 {
			value = data[4:]
		}
	case 3:
		flags := data[1]
		fv.SpaceAllocTime = flags & 0x03
		fv.FillWriteTime = (flags >> 2) & 0x03
		fv.IsDefined = flags&fillUndefined == 0
		if flags&fillHasValue != 0 {
			value = data[2:]
		}
	default:
		return nil, fmt.Errorf("unsupported fill value version %d", fv.Version)
	}

	if value != nil {
		if len(value) < 4 {
			return nil, fmt.Errorf("fill value size truncated")
		}
		n := binary.LittleEndian.Uint32(value)
		if uint64(len(value)) < 4+uint64(n) {
			return nil, fmt.Errorf("fill value truncated")
		}
		fv.Value = clone(value[4 : 4+n])
	}
	return fv, nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// NewFillValue returns the default fill value message: zero fill,
// written only when set, with the given allocation time.
func NewFillValue(alloc uint8) *FillValue {
	return &FillValue{Version: 3, SpaceAllocTime: alloc, FillWriteTime: fillIfSet, IsDefined: true}
}

// Serialize writes a version 3 message.
func (m *FillValue) Serialize(w *binpkg.Writer) error {
	flags := m.SpaceAllocTime&0x03 | m.FillWriteTime&0x03<<2
	switch {
	case !m.IsDefined:
		flags |= fillUndefined
	case len(m.Value) > 0:
		flags |= fillHasValue
	}
	if err := w.WriteBytes([]byte{3, flags}); err != nil {
		return err
	}
	if flags&fillHasValue == 0 {
		return nil
	}
	if err := w.WriteUint32(uint32(len(m.Value))); err != nil {
		return err
	}
	return w.WriteBytes(m.Value)
}

func (m *FillValue) SerializedSize(w *binpkg.Writer) int {
	if m.IsDefined && len(m.Value) > 0 {
		return 6 + len(m.Value)
	}
	return 2
}
