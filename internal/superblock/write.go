package superblock

import (
	"encoding/binary"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// NewSuperblock returns a version 2 superblock with 8-byte offsets and
// lengths and no extension.
func NewSuperblock() *Superblock {
	return &Superblock{Version: 2, OffsetSize: 8, LengthSize: 8}
}

// Size returns the encoded size of a version 2 or 3 superblock.
func (sb *Superblock) Size() int {
	return 12 + 4*int(sb.OffsetSize) + 4
}

// Write encodes sb as a version 2 superblock at the writer's position and
// returns the number of bytes written.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	n := int(sb.OffsetSize)
	ext := sb.ExtensionAddress
	if ext == 0 {
		ext = w.UndefinedOffset()
	}

	buf := make([]byte, 0, sb.Size())
	buf = append(buf, Signature...)
	buf = append(buf, 2, sb.OffsetSize, sb.LengthSize, sb.Flags)
	for _, v := range []uint64{sb.BaseAddress, ext, sb.EOFAddress, sb.RootGroupAddress} {
		buf = binary.LittleEndian.AppendUint64(buf, v)[:len(buf)+n]
	}
	buf = binary.LittleEndian.AppendUint32(buf, binpkg.Lookup3Checksum(buf))

	if err := w.WriteBytes(buf); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}
