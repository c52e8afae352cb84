package message

import (
	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// NewAttribute returns a version 3 attribute message.
func NewAttribute(name string, datatype *Datatype, dataspace *Dataspace, data []byte) *Attribute {
	return &Attribute{Version: 3, Name: name, Datatype: datatype, Dataspace: dataspace, Data: data}
}

// NewScalarAttribute returns an attribute holding one value.
func NewScalarAttribute(name string, datatype *Datatype, data []byte) *Attribute {
	return NewAttribute(name, datatype, NewScalarDataspace(), data)
}

// Serialize writes the attribute as version 3 with an ASCII name.
func (m *Attribute) Serialize(w *binary.Writer) error {
	header := make([]byte, 9)
	header[0] = 3
	encodeUint(header[2:], uint64(len(m.Name)+1), 2)
	encodeUint(header[4:], uint64(m.Datatype.SerializedSize(w)), 2)
	encodeUint(header[6:], uint64(m.Dataspace.SerializedSize(w)), 2)
	if err := w.WriteBytes(append(append(header, m.Name...), 0)); err != nil {
		return err
	}
	if err := m.Datatype.Serialize(w); err != nil {
		return err
	}
	if err := m.Dataspace.Serialize(w); err != nil {
		return err
	}
	return w.WriteBytes(m.Data)
}

// SerializedSize returns the encoded size of the message.
func (m *Attribute) SerializedSize(w *binary.Writer) int {
	return 9 + len(m.Name) + 1 + m.Datatype.SerializedSize(w) + m.Dataspace.SerializedSize(w) + len(m.Data)
}
