package message

import (
	"bytes"
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// Attribute is the attribute message (type 0x000C).
type Attribute struct {
	Version       uint8
	Name          string
	DatatypeSize  uint16
	DataspaceSize uint16
	Datatype      *Datatype
	Dataspace     *Dataspace
	Data          []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// parseAttribute reads versions 1 to 3. Version 1 pads the name, datatype
// and dataspace to 8 bytes; version 3 adds a name encoding byte. A
// datatype or dataspace that does not parse leaves the field nil so the
// rest of the header stays readable.
func parseAttribute(data []byte, r *binpkg.Reader) (*Attribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("attribute message too short")
	}
	attr := &Attribute{
		Version:       data[0],
		DatatypeSize:  binary.LittleEndian.Uint16(data[4:6]),
		DataspaceSize: binary.LittleEndian.Uint16(data[6:8]),
	}
	nameSize := int(binary.LittleEndian.Uint16(data[2:4]))

	pos := 8
	switch attr.Version {
	case 1, 2:
	case 3:
		pos = 9
	default:
		return nil, fmt.Errorf("unsupported attribute version: %d", attr.Version)
	}

	field := func(n int, what string) ([]byte, error) {
		if pos+n > len(data) {
			return nil, fmt.Errorf("attribute %s truncated", what)
		}
		b := data[pos : pos+n]
		pos += n
		if attr.Version == 1 {
			pos = (pos + 7) &^ 7
		}
		return b, nil
	}

	name, err := field(nameSize, "name")
	if err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	attr.Name = string(name)

	dt, err := field(int(attr.DatatypeSize), "datatype")
	if err != nil {
		return nil, err
	}
	attr.Datatype, _ = parseDatatype(dt, r)

	ds, err := field(int(attr.DataspaceSize), "dataspace")
	if err != nil {
		return nil, err
	}
	attr.Dataspace, _ = parseDataspace(ds, r)

	if pos < len(data) {
		attr.Data = append([]byte(nil), data[pos:]...)
	}
	return attr, nil
}
