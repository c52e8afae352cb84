package object

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksumMismatch   = errors.New("object header checksum mismatch")
)

// Header is a decoded object header with its continuation blocks
// followed.
type Header struct {
	Version  uint8
	Address  uint64
	Flags    uint8
	RefCount uint32
	Messages []message.Message
}

// Read decodes the object header at address, version 1 or 2.
func Read(r *binary.Reader, address uint64) (*Header, error) {
	hr := r.At(int64(address))
	sig, err := hr.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("reading object header at %d: %w", address, err)
	}
	switch {
	case string(sig) == signatureV2:
		return readV2(hr, address)
	case sig[0] == 1:
		return readV1(hr, address)
	}
	return nil, fmt.Errorf("%w at %d", ErrInvalidHeader, address)
}

// GetMessage returns the first message of type typ, or nil.
func (h *Header) GetMessage(typ message.Type) message.Message {
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			return msg
		}
	}
	return nil
}

func (h *Header) GetMessages(typ message.Type) []message.Message {
	var result []message.Message
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			result = append(result, msg)
		}
	}
	return result
}

func first[T message.Message](h *Header, typ message.Type) T {
	m, _ := h.GetMessage(typ).(T)
	return m
}

func (h *Header) Dataspace() *message.Dataspace {
	return first[*message.Dataspace](h, message.TypeDataspace)
}

func (h *Header) Datatype() *message.Datatype {
	return first[*message.Datatype](h, message.TypeDatatype)
}

func (h *Header) DataLayout() *message.DataLayout {
	return first[*message.DataLayout](h, message.TypeDataLayout)
}

func (h *Header) FilterPipeline() *message.FilterPipeline {
	return first[*message.FilterPipeline](h, message.TypeFilterPipeline)
}

func (h *Header) LinkInfo() *message.LinkInfo {
	return first[*message.LinkInfo](h, message.TypeLinkInfo)
}

// FillValue prefers the current fill value message over the old one.
func (h *Header) FillValue() *message.FillValue {
	if fv := first[*message.FillValue](h, message.TypeFillValue); fv != nil {
		return fv
	}
	return first[*message.FillValue](h, message.TypeFillValueOld)
}
