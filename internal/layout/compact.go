package layout

import (
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// Compact reads data stored in the object header itself.
type Compact struct {
	data []byte
	dims []uint64
	elem uint64
}

func NewCompact(layout *message.DataLayout, dataspace *message.Dataspace, datatype *message.Datatype) *Compact {
	c := &Compact{data: layout.CompactData, dims: extent(dataspace)}
	if datatype != nil {
		c.elem = uint64(datatype.Size)
	}
	return c
}

func (c *Compact) Class() message.LayoutClass {
	return message.LayoutCompact
}

// Read returns a copy of the stored bytes.
func (c *Compact) Read() ([]byte, error) {
	return append([]byte(nil), c.data...), nil
}

func (c *Compact) Size() int {
	return len(c.data)
}

func (c *Compact) ReadSlice(start, count []uint64) ([]byte, error) {
	if err := checkSlab(c.dims, start, count); err != nil {
		return nil, err
	}
	return extractHyperslab(c.data, c.dims, start, count, c.elem)
}
