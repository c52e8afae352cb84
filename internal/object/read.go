package object

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

const (
	signatureV2           = "OHDR"
	signatureContinuation = "OCHK"
)

// version 2 header flag bits
const (
	flagChunkSizeMask = 0x03
	flagCreationOrder = 0x04
	flagPhaseChange   = 0x10
	flagTimes         = 0x20
)

// maxBlocks bounds the continuation blocks followed for one header, so a
// cycle of continuation messages cannot loop forever.
const maxBlocks = 1024

// block is a run of header messages: the first chunk or a continuation.
type block struct {
	offset, length uint64
}

// format is how one header version frames and encodes its messages.
type format struct {
	// body checks a raw block and returns the bytes holding messages.
	body func(data []byte, first bool) ([]byte, error)
	// next decodes the message starting data, returning its type, flags,
	// body and encoded length. ok is false in the trailing gap.
	next func(data []byte) (typ message.Type, flags uint8, body []byte, n int, ok bool)
}

func (h *Header) readBlocks(r *binpkg.Reader, first block, f format) error {
	queue := []block{first}
	for n := 0; len(queue) > 0; n++ {
		if n == maxBlocks {
			return fmt.Errorf("%w: more than %d continuation blocks", ErrInvalidHeader, maxBlocks)
		}
		b := queue[0]
		queue = queue[1:]

		raw, err := r.At(int64(b.offset)).ReadBytes(int(b.length))
		if err != nil {
			return fmt.Errorf("reading header block at %d: %w", b.offset, err)
		}
		data, err := f.body(raw, n == 0)
		if err != nil {
			return fmt.Errorf("header block at %d: %w", b.offset, err)
		}

		for len(data) > 0 {
			typ, flags, body, size, ok := f.next(data)
			if !ok {
				break
			}
			data = data[size:]
			if typ == message.TypeNIL {
				continue
			}
			msg, err := message.Parse(typ, body, flags, r)
			if err != nil {
				// a message we cannot decode does not make the object
				// unreadable
				continue
			}
			if c, ok := msg.(*message.Continuation); ok {
				queue = append(queue, block{c.Offset, c.Length})
				continue
			}
			h.Messages = append(h.Messages, msg)
		}
	}
	return nil
}

// Version 1: a 16-byte prefix (version, reserved, message count, reference
// count, chunk size, padding), then messages with 8-byte headers, each
// body padded to a multiple of 8.
func readV1(r *binpkg.Reader, address uint64) (*Header, error) {
	prefix, err := r.ReadBytes(16)
	if err != nil {
		return nil, err
	}
	h := &Header{
		Version:  1,
		Address:  address,
		RefCount: binary.LittleEndian.Uint32(prefix[4:]),
	}
	size := binary.LittleEndian.Uint32(prefix[8:])
	v1 := format{
		body: func(data []byte, _ bool) ([]byte, error) { return data, nil },
		next: func(data []byte) (message.Type, uint8, []byte, int, bool) {
			if len(data) < 8 {
				return 0, 0, nil, 0, false
			}
			size := int(binary.LittleEndian.Uint16(data[2:]))
			end := min(8+size, len(data))
			padded := min((8+size+7)&^7, len(data))
			return message.Type(binary.LittleEndian.Uint16(data)), data[4], data[8:end], padded, true
		},
	}
	return h, h.readBlocks(r, block{address + 16, uint64(size)}, v1)
}

// Version 2: "OHDR", version, flags, optional times and attribute phase
// change values, the chunk size, then messages with 4-byte headers (6
// when creation order is tracked). Every block ends in a lookup3 checksum
// over all bytes before it; continuation blocks start with "OCHK".
func readV2(r *binpkg.Reader, address uint64) (*Header, error) {
	fixed, err := r.ReadBytes(6)
	if err != nil {
		return nil, err
	}
	if fixed[4] != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, fixed[4])
	}
	h := &Header{Version: 2, Address: address, Flags: fixed[5]}
	if h.Flags&flagTimes != 0 {
		r.Skip(16)
	}
	if h.Flags&flagPhaseChange != 0 {
		r.Skip(4)
	}
	size, err := r.ReadUintN(1 << (h.Flags & flagChunkSizeMask))
	if err != nil {
		return nil, err
	}
	prefix := uint64(r.Pos()) - address

	msgHeader := 4
	if h.Flags&flagCreationOrder != 0 {
		msgHeader = 6
	}
	v2 := format{
		body: func(data []byte, first bool) ([]byte, error) {
			if len(data) < 8 {
				return nil, fmt.Errorf("%w: block of %d bytes", ErrInvalidHeader, len(data))
			}
			body, sum := data[:len(data)-4], binary.LittleEndian.Uint32(data[len(data)-4:])
			if binpkg.Lookup3Checksum(body) != sum {
				return nil, ErrChecksumMismatch
			}
			if first {
				return body[prefix:], nil
			}
			if string(body[:4]) != signatureContinuation {
				return nil, fmt.Errorf("%w: continuation signature %q", ErrInvalidHeader, body[:4])
			}
			return body[4:], nil
		},
		next: func(data []byte) (message.Type, uint8, []byte, int, bool) {
			if len(data) < msgHeader {
				return 0, 0, nil, 0, false
			}
			size := int(binary.LittleEndian.Uint16(data[1:]))
			end := min(msgHeader+size, len(data))
			return message.Type(data[0]), data[3], data[msgHeader:end], end, true
		},
	}
	return h, h.readBlocks(r, block{address, prefix + size + 4}, v2)
}
