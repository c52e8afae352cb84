package filter

import (
	"fmt"

	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// Pipeline is the ordered filter chain of one dataset.
type Pipeline struct {
	filters []Filter
}

// NewPipeline builds the chain for fp, which may be nil. Optional filters
// that are not implemented are left out.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for _, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, err
		}
		if f != nil {
			p.filters = append(p.filters, f)
		}
	}
	return p, nil
}

func (p *Pipeline) Empty() bool {
	return len(p.filters) == 0
}

// Decode undoes the filters last to first. Bit i of mask set means
// filter i was not applied to this chunk.
func (p *Pipeline) Decode(stored []byte, mask uint32) ([]byte, error) {
	data := stored
	for i := len(p.filters) - 1; i >= 0; i-- {
		if mask&(1<<i) != 0 {
			continue
		}
		var err error
		if data, err = p.filters[i].Decode(data); err != nil {
			return nil, fmt.Errorf("filter %d: %w", p.filters[i].ID(), err)
		}
	}
	return data, nil
}

// Encode applies the filters first to last.
func (p *Pipeline) Encode(raw []byte) ([]byte, error) {
	data := raw
	for _, f := range p.filters {
		var err error
		if data, err = f.Encode(data); err != nil {
			return nil, fmt.Errorf("filter %d: %w", f.ID(), err)
		}
	}
	return data, nil
}

// NewWritePipeline describes the filters for a dataset of elemSize-byte
// elements. Shuffle is only worth adding in front of deflate, and a zero
// level disables deflate. It returns nil when no filter is wanted.
func NewWritePipeline(elemSize uint32, level int, shuffle, fletcher32 bool) *message.FilterPipeline {
	var filters []message.FilterInfo
	if shuffle && level > 0 {
		filters = append(filters, message.FilterInfo{ID: message.FilterShuffle, Flags: 0x01, ClientData: []uint32{elemSize}})
	}
	if level > 0 {
		filters = append(filters, message.FilterInfo{ID: message.FilterDeflate, Flags: 0x01, ClientData: []uint32{uint32(level)}})
	}
	if fletcher32 {
		filters = append(filters, message.FilterInfo{ID: message.FilterFletcher32})
	}
	if len(filters) == 0 {
		return nil
	}
	return &message.FilterPipeline{Version: 2, Filters: filters}
}
