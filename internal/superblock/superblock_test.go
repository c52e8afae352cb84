package superblock

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

type memFile []byte

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(*m) {
		*m = append(*m, make([]byte, end-len(*m))...)
	}
	return copy((*m)[off:], p), nil
}

func encode(t *testing.T, sb *Superblock) []byte {
	t.Helper()
	var buf memFile
	cfg := sb.ReaderConfig()
	n, err := sb.Write(binpkg.NewWriter(&buf, cfg))
	require.NoError(t, err)
	require.EqualValues(t, sb.Size(), n)
	return buf
}

func TestWriteReadRoundTrip(t *testing.T) {
	sb := NewSuperblock()
	sb.EOFAddress = 4096
	sb.RootGroupAddress = 48

	data := encode(t, sb)
	assert.Len(t, data, 48)
	assert.Equal(t, Signature, data[:8])

	got, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Version)
	assert.EqualValues(t, 8, got.OffsetSize)
	assert.EqualValues(t, 4096, got.EOFAddress)
	assert.EqualValues(t, 48, got.RootGroupAddress)
	assert.Equal(t, ^uint64(0), got.ExtensionAddress)
	assert.Zero(t, got.Offset)
}

func TestNarrowOffsets(t *testing.T) {
	sb := &Superblock{Version: 2, OffsetSize: 4, LengthSize: 4, EOFAddress: 900, RootGroupAddress: 32}
	data := encode(t, sb)
	assert.Len(t, data, 32)

	got, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.ReaderConfig().OffsetSize)
	assert.EqualValues(t, 0xffffffff, got.ExtensionAddress)
	assert.EqualValues(t, 32, got.RootGroupAddress)
}

func TestUserBlock(t *testing.T) {
	sb := NewSuperblock()
	sb.RootGroupAddress = 560
	data := append(make([]byte, 512), encode(t, sb)...)

	got, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	assert.EqualValues(t, 512, got.Offset)
	assert.EqualValues(t, 560, got.RootGroupAddress)
}

func TestChecksumMismatch(t *testing.T) {
	data := encode(t, NewSuperblock())
	data[20] ^= 0x01

	_, err := Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestNotHDF5(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"short":   []byte("\x89HDF"),
		"text":    []byte("tau g2\n0.001 1.28\n"),
		"zeroes":  make([]byte, 4096),
		"no body": Signature,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrNotHDF5)
		})
	}
}

func TestUnsupportedVersion(t *testing.T) {
	data := append(append([]byte(nil), Signature...), 9)
	data = append(data, make([]byte, 64)...)

	_, err := Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

// v0Superblock builds a version 0 superblock with 8-byte offsets whose
// root entry caches a symbol table.
func v0Superblock(cacheType uint32) []byte {
	b := append([]byte(nil), Signature...)
	b = append(b, 0, 0, 0, 0, 0, 8, 8, 0)
	b = binary.LittleEndian.AppendUint16(b, 4)  // leaf K
	b = binary.LittleEndian.AppendUint16(b, 16) // internal K
	b = binary.LittleEndian.AppendUint32(b, 0)
	for _, v := range []uint64{0, ^uint64(0), 2048, ^uint64(0), 0, 96} {
		b = binary.LittleEndian.AppendUint64(b, v)
	}
	b = binary.LittleEndian.AppendUint32(b, cacheType)
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint64(b, 136)
	return binary.LittleEndian.AppendUint64(b, 680)
}

func TestReadVersion0(t *testing.T) {
	sb, err := Read(bytes.NewReader(v0Superblock(1)))
	require.NoError(t, err)
	assert.EqualValues(t, 0, sb.Version)
	assert.EqualValues(t, 2048, sb.EOFAddress)
	assert.EqualValues(t, 96, sb.RootGroupAddress)
	assert.EqualValues(t, 136, sb.RootGroupBTreeAddress)
	assert.EqualValues(t, 680, sb.RootGroupLocalHeapAddress)

	sb, err = Read(bytes.NewReader(v0Superblock(0)))
	require.NoError(t, err)
	assert.Zero(t, sb.RootGroupBTreeAddress)
	assert.Zero(t, sb.RootGroupLocalHeapAddress)
}
