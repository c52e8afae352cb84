package message

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// DatatypeClass is the class of an HDF5 datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

var classNames = [...]string{
	"fixed-point", "floating-point", "time", "string", "bitfield", "opaque",
	"compound", "reference", "enum", "variable-length", "array",
}

func (c DatatypeClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class %d", uint8(c))
}

// ByteOrder is the byte order of a numeric type.
type ByteOrder uint8

const (
	OrderLE   ByteOrder = 0
	OrderBE   ByteOrder = 1
	OrderVAX  ByteOrder = 2
	OrderNone ByteOrder = 3
)

// StringPadding says how a fixed-length string fills its slot.
type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

// CharacterSet is the encoding of a string type.
type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype is the datatype message (type 0x0003).
type Datatype struct {
	Class     DatatypeClass
	ClassBits uint32
	Size      uint32

	ByteOrder ByteOrder

	// Fixed-point and bitfield.
	BitOffset    uint16
	BitPrecision uint16
	Signed       bool

	// Fixed-length strings and the base of variable-length strings.
	StringPadding StringPadding
	CharSet       CharacterSet

	// BaseType is the integer type under an enum, or the element type of a
	// variable-length sequence.
	BaseType       *Datatype
	IsVarLenString bool

	// Properties holds the class properties as stored. Float types are
	// written back from it unchanged.
	Properties []byte
}

func (m *Datatype) Type() Type { return TypeDatatype }

func (m *Datatype) IsInteger() bool { return m.Class == ClassFixedPoint }
func (m *Datatype) IsFloat() bool   { return m.Class == ClassFloatPoint }

// IsString reports fixed-length and variable-length strings.
func (m *Datatype) IsString() bool {
	return m.Class == ClassString || (m.Class == ClassVarLen && m.IsVarLenString)
}

// parseDatatype decodes the 8-byte datatype header and the properties of
// the classes a reader converts. Compound, array, opaque, reference and
// time types keep their raw properties only.
func parseDatatype(data []byte, r *binpkg.Reader) (*Datatype, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("datatype message too short")
	}
	bits := uint32(data[1]) | uint32(data[2])<<8 | uint32(data[3])<<16
	dt := &Datatype{
		Class:      DatatypeClass(data[0] & 0x0F),
		ClassBits:  bits,
		Size:       binary.LittleEndian.Uint32(data[4:8]),
		Properties: data[8:],
	}
	props := data[8:]

	switch dt.Class {
	case ClassFixedPoint, ClassBitfield:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		dt.Signed = dt.Class == ClassFixedPoint && bits&0x08 != 0
		if len(props) >= 4 {
			dt.BitOffset = binary.LittleEndian.Uint16(props[0:2])
			dt.BitPrecision = binary.LittleEndian.Uint16(props[2:4])
		}
		dt.Properties = props[:min(len(props), 4)]

	case ClassFloatPoint:
		// Bit 6 of the order field marks VAX order together with bit 0.
		dt.ByteOrder = ByteOrder(bits & 0x01)
		if bits&0x41 == 0x41 {
			dt.ByteOrder = OrderVAX
		}
		dt.Properties = props[:min(len(props), 12)]

	case ClassString:
		dt.StringPadding = StringPadding(bits & 0x0F)
		dt.CharSet = CharacterSet((bits >> 4) & 0x0F)
		dt.Properties = nil

	case ClassEnum:
		base, err := parseDatatype(props, r)
		if err != nil {
			return nil, fmt.Errorf("enum base type: %w", err)
		}
		dt.BaseType = base
		dt.ByteOrder = base.ByteOrder
		dt.Signed = base.Signed

	case ClassVarLen:
		dt.IsVarLenString = bits&0x0F == 1
		dt.StringPadding = StringPadding((bits >> 4) & 0x0F)
		dt.CharSet = CharacterSet((bits >> 8) & 0x0F)
		if len(props) >= 8 {
			base, err := parseDatatype(props, r)
			if err != nil {
				return nil, fmt.Errorf("variable-length base type: %w", err)
			}
			dt.BaseType = base
		}
	}
	return dt, nil
}
