package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// UndefinedAddress marks an address field with nothing allocated.
const UndefinedAddress = ^uint64(0)

// link info flag bits
const (
	linkInfoTracked = 0x01
	linkInfoIndexed = 0x02
)

// LinkInfo describes where a new-style group keeps its links. A defined
// FractalHeapAddr means the links are in dense storage rather than in
// link messages.
type LinkInfo struct {
	Version                uint8
	Flags                  uint8
	MaxCreationIndex       uint64
	FractalHeapAddr        uint64
	NameIndexBTreeAddr     uint64
	CreationOrderBTreeAddr uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// Dense reports whether the links live in a fractal heap.
func (m *LinkInfo) Dense() bool {
	return m.FractalHeapAddr != UndefinedAddress
}

func parseLinkInfo(data []byte, r *binpkg.Reader) (*LinkInfo, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("link info message of %d bytes is too short", len(data))
	}
	m := &LinkInfo{Version: data[0], Flags: data[1], CreationOrderBTreeAddr: UndefinedAddress}
	c := &cursor{data: data, pos: 2, r: r, what: "link info"}

	var err error
	if m.Flags&linkInfoTracked != 0 {
		if m.MaxCreationIndex, err = c.uint(8, "maximum creation index"); err != nil {
			return nil, err
		}
	}
	if m.FractalHeapAddr, err = c.offset("fractal heap address"); err != nil {
		return nil, err
	}
	if r.IsUndefinedOffset(m.FractalHeapAddr) {
		m.FractalHeapAddr = UndefinedAddress
	}
	if m.NameIndexBTreeAddr, err = c.offset("name index address"); err != nil {
		return nil, err
	}
	if m.Flags&linkInfoIndexed != 0 {
		if m.CreationOrderBTreeAddr, err = c.offset("creation order index address"); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Serialize always writes the heap and name index addresses, undefined
// for compact groups.
func (m *LinkInfo) Serialize(w *binpkg.Writer) error {
	if err := w.WriteBytes([]byte{m.Version, m.Flags}); err != nil {
		return err
	}
	if m.Flags&linkInfoTracked != 0 {
		if err := w.WriteUint64(m.MaxCreationIndex); err != nil {
			return err
		}
	}
	addrs := []uint64{m.FractalHeapAddr, m.NameIndexBTreeAddr}
	if m.Flags&linkInfoIndexed != 0 {
		addrs = append(addrs, m.CreationOrderBTreeAddr)
	}
	for _, a := range addrs {
		if a == UndefinedAddress {
			a = w.UndefinedOffset()
		}
		if err := w.WriteOffset(a); err != nil {
			return err
		}
	}
	return nil
}

func (m *LinkInfo) SerializedSize(w *binpkg.Writer) int {
	size := 2 + 2*w.OffsetSize()
	if m.Flags&linkInfoTracked != 0 {
		size += 8
	}
	if m.Flags&linkInfoIndexed != 0 {
		size += w.OffsetSize()
	}
	return size
}

// NewLinkInfo returns the link info of an empty compact group.
func NewLinkInfo() *LinkInfo {
	return &LinkInfo{FractalHeapAddr: UndefinedAddress, NameIndexBTreeAddr: UndefinedAddress}
}

// group info flag bits
const (
	groupInfoPhaseChange = 0x01
	groupInfoEstimates   = 0x02
)

// GroupInfo holds the compact/dense thresholds of a new-style group.
// With no flags the library defaults apply.
type GroupInfo struct {
	Version         uint8
	Flags           uint8
	MaxCompactLinks uint16
	MinDenseLinks   uint16
	EstNumEntries   uint16
	EstLinkNameLen  uint16
}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func (m *GroupInfo) Serialize(w *binpkg.Writer) error {
	if err := w.WriteBytes([]byte{m.Version, m.Flags}); err != nil {
		return err
	}
	var fields []uint16
	if m.Flags&groupInfoPhaseChange != 0 {
		fields = append(fields, m.MaxCompactLinks, m.MinDenseLinks)
	}
	if m.Flags&groupInfoEstimates != 0 {
		fields = append(fields, m.EstNumEntries, m.EstLinkNameLen)
	}
	for _, v := range fields {
		if err := w.WriteUint16(v); err != nil {
			return err
		}
	}
	return nil
}

func (m *GroupInfo) SerializedSize(w *binpkg.Writer) int {
	size := 2
	if m.Flags&groupInfoPhaseChange != 0 {
		size += 4
	}
	if m.Flags&groupInfoEstimates != 0 {
		size += 4
	}
	return size
}

func NewGroupInfo() *GroupInfo {
	return &GroupInfo{}
}
