package filter

import (
	"fmt"

	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// Filter transforms one chunk between its stored and raw forms.
type Filter interface {
	ID() uint16
	Decode(stored []byte) ([]byte, error)
	Encode(raw []byte) ([]byte, error)
}

var constructors = map[uint16]func(clientData []uint32) Filter{
	message.FilterDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	message.FilterFletcher32: func(cd []uint32) Filter { return NewFletcher32(cd) },
}

var unsupportedNames = map[uint16]string{
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "n-bit",
	message.FilterScaleOffset: "scale-offset",
	32000:                     "lzf",
	32001:                     "blosc",
}

// New returns the filter described by info. An optional filter this
// package does not implement yields a nil Filter and no error.
func New(info message.FilterInfo) (Filter, error) {
	if c, ok := constructors[info.ID]; ok {
		return c(info.ClientData), nil
	}
	if info.IsOptional() {
		return nil, nil
	}
	if name, ok := unsupportedNames[info.ID]; ok {
		return nil, fmt.Errorf("%s filter (ID %d) is not supported", name, info.ID)
	}
	return nil, fmt.Errorf("unknown filter ID %d", info.ID)
}
