package message

import (
	"bytes"
	"fmt"
	"math/bits"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// link message flag bits
const (
	linkHasCreationOrder = 0x04
	linkHasType          = 0x08
	linkHasCharset       = 0x10
)

// Link is a named edge from a group to an object, a path in the same
// file, or a path in another file.
type Link struct {
	Version       uint8
	LinkType      LinkType
	CreationOrder uint64
	Name          string
	Charset       uint8

	ObjectAddress uint64 // hard
	SoftLinkValue string // soft
	ExternalFile  string // external
	ExternalPath  string
}

func (m *Link) Type() Type { return TypeLink }

func (m *Link) IsHard() bool     { return m.LinkType == LinkTypeHard }
func (m *Link) IsSoft() bool     { return m.LinkType == LinkTypeSoft }
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

func parseLink(data []byte, r *binpkg.Reader) (*Link, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("link message of %d bytes is too short", len(data))
	}
	link := &Link{Version: data[0]}
	flags := data[1]
	c := &cursor{data: data, pos: 2, r: r, what: "link"}

	if flags&linkHasType != 0 {
		t, err := c.uint(1, "type")
		if err != nil {
			return nil, err
		}
		link.LinkType = LinkType(t)
	}
	if flags&linkHasCreationOrder != 0 {
		order, err := c.bytes(8, "creation order")
		if err != nil {
			return nil, err
		}
		link.CreationOrder = decodeUint(order, 8, r.ByteOrder())
	}
	if flags&linkHasCharset != 0 {
		cs, err := c.uint(1, "charset")
		if err != nil {
			return nil, err
		}
		link.Charset = uint8(cs)
	}

	nameLen, err := c.uint(1<<(flags&0x03), "name length")
	if err != nil {
		return nil, err
	}
	name, err := c.bytes(int(nameLen), "name")
	if err != nil {
		return nil, err
	}
	link.Name = string(name)

	switch link.LinkType {
	case LinkTypeHard:
		link.ObjectAddress, err = c.offset("address")
		return link, err

	case LinkTypeSoft, LinkTypeExternal:
		n, err := c.uint(2, "value length")
		if err != nil {
			return nil, err
		}
		value, err := c.bytes(int(n), "value")
		if err != nil {
			return nil, err
		}
		if link.LinkType == LinkTypeSoft {
			link.SoftLinkValue = string(value)
			return link, nil
		}
		// external: a version/flags byte, then file and path, each
		// NUL-terminated
		if len(value) < 2 {
			return nil, fmt.Errorf("external link value of %d bytes is too short", len(value))
		}
		file, path, _ := bytes.Cut(value[1:], []byte{0})
		link.ExternalFile = string(file)
		link.ExternalPath = string(bytes.TrimRight(path, "\x00"))
	}
	return link, nil
}

// nameLenBytes is the width of the name length field, 1, 2, 4 or 8.
func (m *Link) nameLenBytes() int {
	n := (bits.Len64(uint64(len(m.Name))) + 7) / 8
	switch {
	case n <= 1:
		return 1
	case n == 2:
		return 2
	case n <= 4:
		return 4
	}
	return 8
}

func (m *Link) value() []byte {
	switch m.LinkType {
	case LinkTypeSoft:
		return []byte(m.SoftLinkValue)
	case LinkTypeExternal:
		v := append([]byte{0}, m.ExternalFile...)
		v = append(v, 0)
		v = append(v, m.ExternalPath...)
		return append(v, 0)
	}
	return nil
}

// Serialize writes a version 1 message. The type is only recorded for
// soft and external links.
func (m *Link) Serialize(w *binpkg.Writer) error {
	size := m.nameLenBytes()
	flags := uint8(bits.TrailingZeros(uint(size)))
	if m.LinkType != LinkTypeHard {
		flags |= linkHasType
	}
	header := []byte{1, flags}
	if m.LinkType != LinkTypeHard {
		header = append(header, uint8(m.LinkType))
	}
	if err := w.WriteBytes(header); err != nil {
		return err
	}
	if err := w.WriteUintN(uint64(len(m.Name)), size); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte(m.Name)); err != nil {
		return err
	}

	if m.LinkType == LinkTypeHard {
		return w.WriteOffset(m.ObjectAddress)
	}
	v := m.value()
	if len(v) > 0xFFFF {
		return fmt.Errorf("link %q: value of %d bytes is too long", m.Name, len(v))
	}
	if err := w.WriteUint16(uint16(len(v))); err != nil {
		return err
	}
	return w.WriteBytes(v)
}

func (m *Link) SerializedSize(w *binpkg.Writer) int {
	size := 2 + m.nameLenBytes() + len(m.Name)
	if m.LinkType == LinkTypeHard {
		return size + w.OffsetSize()
	}
	return size + 1 + 2 + len(m.value())
}

func NewHardLink(name string, objectAddress uint64) *Link {
	return &Link{Version: 1, LinkType: LinkTypeHard, Name: name, ObjectAddress: objectAddress}
}

func NewSoftLink(name, target string) *Link {
	return &Link{Version: 1, LinkType: LinkTypeSoft, Name: name, SoftLinkValue: target}
}

func NewExternalLink(name, file, path string) *Link {
	return &Link{Version: 1, LinkType: LinkTypeExternal, Name: name, ExternalFile: file, ExternalPath: path}
}
