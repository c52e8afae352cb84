package heap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	hbin "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// GlobalHeap is one global heap collection.
type GlobalHeap struct {
	CollectionSize uint64
	objects        map[uint16][]byte
}

// GlobalHeapID names an object of a collection. Variable-length data
// stores it after a 4-byte length.
type GlobalHeapID struct {
	CollectionAddress uint64
	ObjectIndex       uint32
}

// ReadGlobalHeap reads the "GCOL" collection at address. Objects follow
// the header each with a 2-byte index, a 2-byte reference count, 4
// reserved bytes and a length, and are padded to 8 bytes. Index 0 ends
// the list.
func ReadGlobalHeap(r *hbin.Reader, address uint64) (*GlobalHeap, error) {
	if address == 0 || r.IsUndefinedOffset(address) {
		return nil, fmt.Errorf("invalid global heap address")
	}
	hr := r.At(int64(address))
	header, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading global heap: %w", err)
	}
	if string(header[:4]) != "GCOL" {
		return nil, fmt.Errorf("invalid global heap signature: %q", header[:4])
	}
	if header[4] != 1 {
		return nil, fmt.Errorf("unsupported global heap version: %d", header[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}

	h := &GlobalHeap{CollectionSize: size, objects: map[uint16][]byte{}}
	objHeader := uint64(8 + r.LengthSize())
	remaining := size - uint64(8+r.LengthSize())
	for remaining >= objHeader {
		head, err := hr.ReadBytes(8)
		if err != nil {
			break
		}
		index := r.ByteOrder().Uint16(head)
		if index == 0 {
			break
		}
		n, err := hr.ReadLength()
		if err != nil {
			break
		}
		padded := (n + 7) &^ 7
		if objHeader+padded > remaining {
			break
		}
		data, err := hr.ReadBytes(int(n))
		if err != nil {
			break
		}
		h.objects[index] = data
		hr.Skip(int64(padded - n))
		remaining -= objHeader + padded
	}
	return h, nil
}

// GetObject returns a copy of object index.
func (h *GlobalHeap) GetObject(index uint16) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("nil global heap")
	}
	data, ok := h.objects[index]
	if !ok {
		return nil, fmt.Errorf("object index %d not found in global heap", index)
	}
	return append([]byte(nil), data...), nil
}

// GetString returns object index up to its first NUL.
func (h *GlobalHeap) GetString(index uint16) (string, error) {
	data, err := h.GetObject(index)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}

// ParseGlobalHeapID decodes a little-endian heap ID: the collection
// address in offsetSize bytes, then a 4-byte object index.
func ParseGlobalHeapID(data []byte, offsetSize int) (GlobalHeapID, error) {
	if len(data) < offsetSize+4 {
		return GlobalHeapID{}, fmt.Errorf("global heap ID too short: need %d bytes, have %d", offsetSize+4, len(data))
	}
	var addr uint64
	switch offsetSize {
	case 2:
		addr = uint64(binary.LittleEndian.Uint16(data))
	case 4:
		addr = uint64(binary.LittleEndian.Uint32(data))
	case 8:
		addr = binary.LittleEndian.Uint64(data)
	default:
		return GlobalHeapID{}, fmt.Errorf("unsupported offset size: %d", offsetSize)
	}
	return GlobalHeapID{
		CollectionAddress: addr,
		ObjectIndex:       binary.LittleEndian.Uint32(data[offsetSize:]),
	}, nil
}
