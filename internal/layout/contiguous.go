package layout

import (
	"fmt"

	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// Contiguous reads data stored as one block of the file.
type Contiguous struct {
	address uint64
	size    uint64
	dims    []uint64
	elem    uint64
	reader  *binary.Reader
	fill    []byte
}

func NewContiguous(
	layout *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	reader *binary.Reader,
) *Contiguous {
	c := &Contiguous{
		address: layout.Address,
		size:    layout.Size,
		dims:    extent(dataspace),
		reader:  reader,
	}
	if datatype != nil {
		c.elem = uint64(datatype.Size)
	}
	if c.size == 0 {
		c.size = calculateDataSize(dataspace, datatype)
	}
	return c
}

func (c *Contiguous) Class() message.LayoutClass {
	return message.LayoutContiguous
}

func (c *Contiguous) Address() uint64 { return c.address }
func (c *Contiguous) Size() uint64    { return c.size }

func (c *Contiguous) Read() ([]byte, error) {
	return c.readRange(0, c.size)
}

// SetFill sets the element value read while the block is unallocated.
func (c *Contiguous) SetFill(value []byte) {
	c.fill = value
}

// readRange reads n bytes starting off bytes into the block.
func (c *Contiguous) readRange(off, n uint64) ([]byte, error) {
	if c.reader.IsUndefinedOffset(c.address) {
		if c.fill == nil {
			return nil, fmt.Errorf("contiguous data not allocated")
		}
		buf := make([]byte, n)
		fill(buf, c.fill)
		return buf, nil
	}
	if n == 0 {
		return []byte{}, nil
	}
	data, err := c.reader.At(int64(c.address + off)).ReadBytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("reading contiguous data: %w", err)
	}
	return data, nil
}

// ReadSlice reads a selection of whole rows along the first axis
// straight from its file range. Other selections read the block and cut
// the box out of it.
func (c *Contiguous) ReadSlice(start, count []uint64) ([]byte, error) {
	if err := checkSlab(c.dims, start, count); err != nil {
		return nil, err
	}

	rowBytes := c.elem
	for d := 1; d < len(c.dims); d++ {
		rowBytes *= c.dims[d]
		if start[d] != 0 || count[d] != c.dims[d] {
			data, err := c.Read()
			if err != nil {
				return nil, err
			}
			return extractHyperslab(data, c.dims, start, count, c.elem)
		}
	}
	return c.readRange(start[0]*rowBytes, count[0]*rowBytes)
}
