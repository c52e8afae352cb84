package layout

import (
	"fmt"

	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// Layout reads the raw, file-order bytes of a dataset.
type Layout interface {
	// Read returns every element in row-major order.
	Read() ([]byte, error)

	// ReadSlice returns the count-sized box starting at start, in
	// row-major order.
	ReadSlice(start, count []uint64) ([]byte, error)

	Class() message.LayoutClass
}

// Filler is implemented by layouts that read storage never written as a
// fill value instead of zeros.
type Filler interface {
	SetFill(value []byte)
}

// fill repeats pattern over buf.
func fill(buf, pattern []byte) {
	if len(pattern) == 0 {
		return
	}
	for i := 0; i < len(buf); i += len(pattern) {
		copy(buf[i:], pattern)
	}
}

// New returns the reader for a dataset's layout message.
func New(
	layout *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	filterPipeline *message.FilterPipeline,
	reader *binary.Reader,
) (Layout, error) {
	if layout == nil {
		return nil, fmt.Errorf("nil layout message")
	}
	switch layout.Class {
	case message.LayoutCompact:
		return NewCompact(layout, dataspace, datatype), nil
	case message.LayoutContiguous:
		return NewContiguous(layout, dataspace, datatype, reader), nil
	case message.LayoutChunked:
		return NewChunked(layout, dataspace, datatype, filterPipeline, reader)
	}
	return nil, fmt.Errorf("unsupported layout class: %d", layout.Class)
}

func calculateDataSize(dataspace *message.Dataspace, datatype *message.Datatype) uint64 {
	if dataspace == nil || datatype == nil {
		return 0
	}
	return dataspace.NumElements() * uint64(datatype.Size)
}

// extent returns the dimensions of a dataspace, treating a scalar as one
// element.
func extent(dataspace *message.Dataspace) []uint64 {
	if dataspace == nil || len(dataspace.Dimensions) == 0 {
		return []uint64{1}
	}
	return dataspace.Dimensions
}

// checkSlab validates a selection against dims.
func checkSlab(dims, start, count []uint64) error {
	if len(start) != len(dims) || len(count) != len(dims) {
		return fmt.Errorf("start and count must have %d dimensions, got %d and %d",
			len(dims), len(start), len(count))
	}
	for d := range dims {
		if start[d]+count[d] > dims[d] {
			return fmt.Errorf("slice out of bounds: dimension %d, start=%d, count=%d, size=%d",
				d, start[d], count[d], dims[d])
		}
	}
	return nil
}

func product(v []uint64) uint64 {
	n := uint64(1)
	for _, x := range v {
		n *= x
	}
	return n
}

func strides(shape []uint64, elem uint64) []uint64 {
	s := make([]uint64, len(shape))
	step := elem
	for d := len(shape) - 1; d >= 0; d-- {
		s[d] = step
		step *= shape[d]
	}
	return s
}

// copyBox copies the elements shared by two boxes. dst holds the box of
// shape dstShape whose first element sits at dstOrigin in dataset
// coordinates; src likewise. Rows along the last axis are copied whole.
func copyBox(dst []byte, dstOrigin, dstShape []uint64, src []byte, srcOrigin, srcShape []uint64, elem uint64) {
	n := len(dstShape)
	lo := make([]uint64, n)
	hi := make([]uint64, n)
	for d := 0; d < n; d++ {
		lo[d] = max(dstOrigin[d], srcOrigin[d])
		hi[d] = min(dstOrigin[d]+dstShape[d], srcOrigin[d]+srcShape[d])
		if lo[d] >= hi[d] {
			return
		}
	}

	dstStride := strides(dstShape, elem)
	srcStride := strides(srcShape, elem)
	row := (hi[n-1] - lo[n-1]) * elem

	idx := append([]uint64(nil), lo...)
	for {
		var di, si uint64
		for d := 0; d < n; d++ {
			di += (idx[d] - dstOrigin[d]) * dstStride[d]
			si += (idx[d] - srcOrigin[d]) * srcStride[d]
		}
		copy(dst[di:di+row], src[si:si+row])

		// advance every axis but the last, odometer style
		d := n - 2
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < hi[d] {
				break
			}
			idx[d] = lo[d]
		}
		if d < 0 {
			return
		}
	}
}

// extractHyperslab cuts the box at start of shape count out of data, a
// whole dataset of shape dims.
func extractHyperslab(data []byte, dims, start, count []uint64, elem uint64) ([]byte, error) {
	if uint64(len(data)) < product(dims)*elem {
		return nil, fmt.Errorf("have %d bytes for %v elements of size %d", len(data), dims, elem)
	}
	out := make([]byte, product(count)*elem)
	if len(out) > 0 {
		copyBox(out, start, count, data, make([]uint64, len(dims)), dims, elem)
	}
	return out, nil
}
