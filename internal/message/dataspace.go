package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Dataspace is the shape of a dataset or attribute.
type Dataspace struct {
	Version    uint8
	Rank       int
	SpaceType  DataspaceType
	Dimensions []uint64
	MaxDims    []uint64 // nil when equal to Dimensions
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NumElements is 1 for a scalar and 0 for a null dataspace.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceScalar:
		return 1
	case DataspaceSimple:
		if len(m.Dimensions) == 0 {
			return 0
		}
		n := uint64(1)
		for _, d := range m.Dimensions {
			n *= d
		}
		return n
	}
	return 0
}

func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }
func (m *Dataspace) IsNull() bool   { return m.SpaceType == DataspaceNull }

// Version 1 has no type byte: rank 0 is scalar. It also carries four
// reserved bytes before the dimensions.
func parseDataspace(data []byte, r *binpkg.Reader) (*Dataspace, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("dataspace message of %d bytes is too short", len(data))
	}
	ds := &Dataspace{Version: data[0], Rank: int(data[1])}
	hasMax := data[2]&0x01 != 0

	pos := 4
	switch ds.Version {
	case 1:
		ds.SpaceType = DataspaceSimple
		if ds.Rank == 0 {
			ds.SpaceType = DataspaceScalar
		}
		pos = 8
	case 2:
		ds.SpaceType = DataspaceType(data[3])
	default:
		return nil, fmt.Errorf("unsupported dataspace version %d", ds.Version)
	}
	if ds.SpaceType != DataspaceSimple || ds.Rank == 0 {
		return ds, nil
	}

	size := r.LengthSize()
	read := func(what string) ([]uint64, error) {
		dims := make([]uint64, ds.Rank)
		for i := range dims {
			if pos+size > len(data) {
				return nil, fmt.Errorf("dataspace %s truncated", what)
			}
			dims[i] = decodeUint(data[pos:], size, r.ByteOrder())
			pos += size
		}
		return dims, nil
	}
	var err error
	if ds.Dimensions, err = read("dimensions"); err != nil {
		return nil, err
	}
	if hasMax {
		if ds.MaxDims, err = read("maximum dimensions"); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// Serialize writes a version 2 message.
func (m *Dataspace) Serialize(w *binpkg.Writer) error {
	var flags uint8
	if len(m.MaxDims) > 0 {
		flags = 0x01
	}
	if err := w.WriteBytes([]byte{2, uint8(m.Rank), flags, uint8(m.SpaceType)}); err != nil {
		return err
	}
	for _, dims := range [][]uint64{m.Dimensions, m.MaxDims} {
		for _, d := range dims {
			if err := w.WriteLength(d); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Dataspace) SerializedSize(w *binpkg.Writer) int {
	return 4 + (len(m.Dimensions)+len(m.MaxDims))*w.LengthSize()
}

// NewDataspace returns a simple dataspace. maxDims may be nil.
func NewDataspace(dims, maxDims []uint64) *Dataspace {
	return &Dataspace{Version: 2, Rank: len(dims), SpaceType: DataspaceSimple, Dimensions: dims, MaxDims: maxDims}
}

func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceScalar}
}
