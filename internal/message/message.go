package message

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// Type is a header message type.
type Type uint16

const (
	TypeNIL                      Type = 0x00
	TypeDataspace                Type = 0x01
	TypeLinkInfo                 Type = 0x02
	TypeDatatype                 Type = 0x03
	TypeFillValueOld             Type = 0x04
	TypeFillValue                Type = 0x05
	TypeLink                     Type = 0x06
	TypeDataLayout               Type = 0x08
	TypeGroupInfo                Type = 0x0A
	TypeFilterPipeline           Type = 0x0B
	TypeAttribute                Type = 0x0C
	TypeObjectHeaderContinuation Type = 0x10
	TypeSymbolTable              Type = 0x11
	TypeObjectModTime            Type = 0x12
	TypeAttributeInfo            Type = 0x15
)

var typeNames = map[Type]string{
	TypeNIL:                      "nil",
	TypeDataspace:                "dataspace",
	TypeLinkInfo:                 "link info",
	TypeDatatype:                 "datatype",
	TypeFillValueOld:             "fill value (old)",
	TypeFillValue:                "fill value",
	TypeLink:                     "link",
	TypeDataLayout:               "data layout",
	TypeGroupInfo:                "group info",
	TypeFilterPipeline:           "filter pipeline",
	TypeAttribute:                "attribute",
	TypeObjectHeaderContinuation: "continuation",
	TypeSymbolTable:              "symbol table",
	TypeObjectModTime:            "modification time",
	TypeAttributeInfo:            "attribute info",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("message type 0x%02x", uint16(t))
}

// Message is a decoded header message.
type Message interface {
	Type() Type
}

// Serializable is a message the writer can emit.
type Serializable interface {
	Message
	Serialize(w *binpkg.Writer) error
	SerializedSize(w *binpkg.Writer) int
}

// Parse decodes the body of a header message. Types without a decoder
// come back as *Unknown.
func Parse(typ Type, data []byte, flags uint8, r *binpkg.Reader) (Message, error) {
	switch typ {
	case TypeDataspace:
		return parseDataspace(data, r)
	case TypeLinkInfo:
		return parseLinkInfo(data, r)
	case TypeDatatype:
		return parseDatatype(data, r)
	case TypeFillValueOld:
		return parseFillValueOld(data)
	case TypeFillValue:
		return parseFillValue(data)
	case TypeDataLayout:
		return parseDataLayout(data, r)
	case TypeFilterPipeline:
		return parseFilterPipeline(data, r)
	case TypeAttribute:
		return parseAttribute(data, r)
	case TypeLink:
		return parseLink(data, r)
	case TypeSymbolTable:
		return parseSymbolTable(data, r)
	case TypeObjectHeaderContinuation:
		return parseContinuation(data, r)
	}
	return &Unknown{typ: typ, data: data}, nil
}

// Unknown keeps the raw body of a message this package does not decode.
type Unknown struct {
	typ  Type
	data []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }

// Continuation points at a further block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

func parseContinuation(data []byte, r *binpkg.Reader) (*Continuation, error) {
	os, ls := r.OffsetSize(), r.LengthSize()
	if len(data) < os+ls {
		return nil, fmt.Errorf("continuation message of %d bytes is too short", len(data))
	}
	return &Continuation{
		Offset: decodeUint(data, os, r.ByteOrder()),
		Length: decodeUint(data[os:], ls, r.ByteOrder()),
	}, nil
}

// decodeUint reads a size-byte unsigned integer from the front of buf.
func decodeUint(buf []byte, size int, order binary.ByteOrder) uint64 {
	var v uint64
	if order == binary.BigEndian {
		for _, b := range buf[:size] {
			v = v<<8 | uint64(b)
		}
		return v
	}
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

// encodeUint writes v little-endian into the first size bytes of buf.
func encodeUint(buf []byte, v uint64, size int) {
	for i := 0; i < size; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}
