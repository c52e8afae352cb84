package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// Signature opens every HDF5 superblock.
var Signature = []byte("\x89HDF\r\n\x1a\n")

// Files with a user block keep the superblock at a later power of two.
var searchOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrChecksum           = errors.New("superblock checksum mismatch")
)

type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8
	Flags      uint8

	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootGroupAddress uint64

	// Versions 0 and 1 may cache the root group's symbol table in the
	// root entry scratch pad. Zero when absent.
	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64

	// Offset is where the signature was found.
	Offset int64
}

// Read finds and parses the superblock of r. Sources without a signature
// at any search offset, including ones too short to hold it, fail with
// ErrNotHDF5.
func Read(r io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, len(Signature)+1)
	for _, off := range searchOffsets {
		if n, _ := r.ReadAt(sig, off); n < len(sig) || !bytes.Equal(sig[:len(Signature)], Signature) {
			continue
		}

		var sb *Superblock
		var err error
		switch version := sig[len(Signature)]; version {
		case 0, 1:
			sb, err = readV0(r, off, version)
		case 2, 3:
			sb, err = readV2(r, off, version)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
		}
		if err != nil {
			return nil, fmt.Errorf("superblock version %d: %w", sig[len(Signature)], err)
		}
		sb.Offset = off
		return sb, nil
	}
	return nil, ErrNotHDF5
}

// ReaderConfig returns the binary layout the file's metadata uses.
func (sb *Superblock) ReaderConfig() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

func validSize(n uint8) bool {
	return n == 2 || n == 4 || n == 8
}

// readV0 parses versions 0 and 1, which end in the root group's symbol
// table entry.
func readV0(r io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	fixed := make([]byte, 16)
	if _, err := r.ReadAt(fixed, off+8); err != nil {
		return nil, err
	}
	sb := &Superblock{Version: version, OffsetSize: fixed[5], LengthSize: fixed[6]}
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return nil, fmt.Errorf("offset size %d, length size %d", sb.OffsetSize, sb.LengthSize)
	}

	pos := off + 24
	if version == 1 {
		// Indexed storage K and two reserved bytes.
		pos += 4
	}
	br := binpkg.NewReader(r, sb.ReaderConfig()).At(pos)
	var err error
	read := func(dst *uint64) {
		if err == nil {
			*dst, err = br.ReadOffset()
		}
	}
	var skip uint64
	read(&sb.BaseAddress)
	read(&skip) // free-space info
	read(&sb.EOFAddress)
	read(&skip) // driver info
	read(&skip) // root entry link name offset
	read(&sb.RootGroupAddress)
	if err != nil {
		return nil, err
	}

	cacheType, err := br.ReadUint32()
	if err != nil {
		return nil, err
	}
	br.Skip(4)
	if cacheType == 1 {
		read(&sb.RootGroupBTreeAddress)
		read(&sb.RootGroupLocalHeapAddress)
	}
	return sb, err
}

// readV2 parses versions 2 and 3, which share one checksummed layout.
func readV2(r io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	head := make([]byte, 4)
	if _, err := r.ReadAt(head, off+8); err != nil {
		return nil, err
	}
	sb := &Superblock{Version: version, OffsetSize: head[1], LengthSize: head[2], Flags: head[3]}
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return nil, fmt.Errorf("offset size %d, length size %d", sb.OffsetSize, sb.LengthSize)
	}

	size := sb.Size()
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, err
	}
	if stored := binary.LittleEndian.Uint32(buf[size-4:]); stored != binpkg.Lookup3Checksum(buf[:size-4]) {
		return nil, ErrChecksum
	}

	br := binpkg.NewReader(bytes.NewReader(buf), sb.ReaderConfig()).At(12)
	for _, dst := range []*uint64{&sb.BaseAddress, &sb.ExtensionAddress, &sb.EOFAddress, &sb.RootGroupAddress} {
		v, err := br.ReadOffset()
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	return sb, nil
}
