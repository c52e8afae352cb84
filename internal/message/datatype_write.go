package message

import (
	"fmt"

	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// ieeeFloatProperties are the bit layouts of IEEE 754 single and double
// precision: bit offset, precision, exponent location and size, mantissa
// location and size, exponent bias.
var ieeeFloatProperties = map[uint32][]byte{
	4: {0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0},
	8: {0, 0, 64, 0, 52, 11, 0, 52, 0xFF, 0x03, 0, 0},
}

// Serialize writes the datatype as a version 1 message.
func (m *Datatype) Serialize(w *binary.Writer) error {
	header := []byte{
		uint8(m.Class) | 1<<4,
		uint8(m.ClassBits), uint8(m.ClassBits >> 8), uint8(m.ClassBits >> 16),
	}
	if err := w.WriteBytes(header); err != nil {
		return err
	}
	if err := w.WriteUint32(m.Size); err != nil {
		return err
	}

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		if err := w.WriteUint16(m.BitOffset); err != nil {
			return err
		}
		return w.WriteUint16(m.BitPrecision)
	case ClassFloatPoint:
		props, err := m.floatProperties()
		if err != nil {
			return err
		}
		return w.WriteBytes(props)
	case ClassString:
		return nil
	case ClassVarLen:
		if m.BaseType == nil {
			return fmt.Errorf("variable-length datatype without a base type")
		}
		return m.BaseType.Serialize(w)
	}
	return fmt.Errorf("writing %v datatypes is not supported", m.Class)
}

func (m *Datatype) floatProperties() ([]byte, error) {
	if len(m.Properties) >= 12 {
		return m.Properties[:12], nil
	}
	if props, ok := ieeeFloatProperties[m.Size]; ok {
		return props, nil
	}
	return nil, fmt.Errorf("no IEEE layout for %d-byte floats", m.Size)
}

// SerializedSize returns the encoded size of the message.
func (m *Datatype) SerializedSize(w *binary.Writer) int {
	size := 8
	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		size += 4
	case ClassFloatPoint:
		size += 12
	case ClassVarLen:
		if m.BaseType != nil {
			size += m.BaseType.SerializedSize(w)
		}
	}
	return size
}

// NewFixedPointDatatype returns an integer type using every bit of size bytes.
func NewFixedPointDatatype(size uint32, signed bool, byteOrder ByteOrder) *Datatype {
	bits := uint32(byteOrder)
	if signed {
		bits |= 0x08
	}
	return &Datatype{
		Class:        ClassFixedPoint,
		ClassBits:    bits,
		Size:         size,
		ByteOrder:    byteOrder,
		BitPrecision: uint16(size * 8),
		Signed:       signed,
	}
}

// NewFloatDatatype returns an IEEE 754 float type of 4 or 8 bytes. The
// class bits carry the byte order, the normalized mantissa flag and the
// sign bit position, the same as h5py writes them.
func NewFloatDatatype(size uint32, byteOrder ByteOrder) *Datatype {
	sign := size*8 - 1
	return &Datatype{
		Class:      ClassFloatPoint,
		ClassBits:  uint32(byteOrder) | 1<<5 | sign<<8,
		Size:       size,
		ByteOrder:  byteOrder,
		Properties: ieeeFloatProperties[size],
	}
}

// NewStringDatatype returns a fixed-length string type.
func NewStringDatatype(size uint32, padding StringPadding, charset CharacterSet) *Datatype {
	return &Datatype{
		Class:         ClassString,
		ClassBits:     uint32(padding) | uint32(charset)<<4,
		Size:          size,
		StringPadding: padding,
		CharSet:       charset,
	}
}
