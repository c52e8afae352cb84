package message

import (
	"fmt"
	"strings"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// Filter IDs registered with the HDF Group.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
)

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether the chunk may be stored without this filter.
func (f *FilterInfo) IsOptional() bool {
	return f.Flags&0x01 != 0
}

// FilterPipeline lists the filters applied to every chunk, in write order.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

func (m *FilterPipeline) HasFilter(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

// Version 1 pads the header, each name and each odd client data list to
// 8 bytes. Version 2 drops the name of filters below 256.
func parseFilterPipeline(data []byte, r *binpkg.Reader) (*FilterPipeline, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("filter pipeline message of %d bytes is too short", len(data))
	}
	fp := &FilterPipeline{Version: data[0], Filters: make([]FilterInfo, data[1])}
	c := &cursor{data: data, pos: 2, r: r, what: "filter pipeline"}
	switch fp.Version {
	case 1:
		c.pos = 8
	case 2:
	default:
		return nil, fmt.Errorf("unsupported filter pipeline version %d", fp.Version)
	}

	for i := range fp.Filters {
		f := &fp.Filters[i]
		id, err := c.uint(2, "filter ID")
		if err != nil {
			return nil, err
		}
		f.ID = uint16(id)
		var nameLen uint64
		if fp.Version == 1 || f.ID >= 256 {
			if nameLen, err = c.uint(2, "name length"); err != nil {
				return nil, err
			}
		}
		flags, err := c.uint(2, "flags")
		if err != nil {
			return nil, err
		}
		f.Flags = uint16(flags)
		n, err := c.uint(2, "client data count")
		if err != nil {
			return nil, err
		}

		if nameLen > 0 {
			if fp.Version == 1 {
				nameLen = (nameLen + 7) &^ 7
			}
			name, err := c.bytes(int(nameLen), "name")
			if err != nil {
				return nil, err
			}
			f.Name, _, _ = strings.Cut(string(name), "\x00")
		}

		f.ClientData = make([]uint32, n)
		for j := range f.ClientData {
			v, err := c.uint(4, "client data")
			if err != nil {
				return nil, fmt.Errorf("filter %d: %w", f.ID, err)
			}
			f.ClientData[j] = uint32(v)
		}
		if fp.Version == 1 && n%2 == 1 {
			c.pos += 4
		}
	}
	return fp, nil
}

// Serialize writes a version 2 message. Filters at 256 and above carry
// names and are not written.
func (m *FilterPipeline) Serialize(w *binpkg.Writer) error {
	if err := w.WriteBytes([]byte{2, uint8(len(m.Filters))}); err != nil {
		return err
	}
	for _, f := range m.Filters {
		if f.ID >= 256 {
			return fmt.Errorf("filter %d: custom filters are not writable", f.ID)
		}
		for _, v := range []uint16{f.ID, f.Flags, uint16(len(f.ClientData))} {
			if err := w.WriteUint16(v); err != nil {
				return err
			}
		}
		for _, cd := range f.ClientData {
			if err := w.WriteUint32(cd); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *FilterPipeline) SerializedSize(w *binpkg.Writer) int {
	size := 2
	for _, f := range m.Filters {
		size += 6 + 4*len(f.ClientData)
	}
	return size
}
