package layout

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hbin "github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// frames returns n bytes counting up from 1, standing in for detector
// counts.
func frames(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i + 1)
	}
	return b
}

func uintType(size uint32) *message.Datatype {
	return &message.Datatype{Class: message.ClassFixedPoint, Size: size}
}

func TestCompactSlice(t *testing.T) {
	data := frames(6)
	c := NewCompact(&message.DataLayout{Class: message.LayoutCompact, CompactData: data},
		message.NewDataspace([]uint64{2, 3}, nil), uintType(1))

	got, err := c.ReadSlice([]uint64{1, 1}, []uint64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6}, got)

	all, err := c.Read()
	require.NoError(t, err)
	all[0] = 0xff
	assert.Equal(t, byte(1), data[0])

	_, err = c.ReadSlice([]uint64{1, 2}, []uint64{1, 2})
	assert.ErrorContains(t, err, "out of bounds")
}

func TestContiguousSlices(t *testing.T) {
	mf := &memFile{}
	data := frames(4 * 3 * 2)
	_, err := mf.WriteAt(data, 100)
	require.NoError(t, err)

	c := NewContiguous(&message.DataLayout{Class: message.LayoutContiguous, Address: 100},
		message.NewDataspace([]uint64{4, 3}, nil), uintType(2), hbin.NewReader(mf, hbin.DefaultConfig()))
	assert.Equal(t, uint64(24), c.Size())

	rows, err := c.ReadSlice([]uint64{1, 0}, []uint64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, data[6:18], rows)

	col, err := c.ReadSlice([]uint64{0, 2}, []uint64{4, 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 11, 12, 17, 18, 23, 24}, col)

	unallocated := NewContiguous(&message.DataLayout{Class: message.LayoutContiguous, Address: ^uint64(0)},
		message.NewDataspace([]uint64{4}, nil), uintType(1), hbin.NewReader(mf, hbin.DefaultConfig()))
	_, err = unallocated.Read()
	assert.ErrorContains(t, err, "not allocated")

	unallocated.SetFill([]byte{0xff})
	got, err := unallocated.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, got)
}

func TestChunkedFixedArraySlice(t *testing.T) {
	dims := []uint64{5, 3}
	data := frames(5 * 3)
	mf := &memFile{}
	cfg := hbin.DefaultConfig()
	cw := NewChunkWriter(hbin.NewWriter(mf, cfg), []uint32{2, 2}, 1, bumpAllocator(64), nil)
	for _, chunk := range SplitIntoChunks(data, dims, []uint32{2, 2}, 1) {
		require.NoError(t, cw.WriteChunk(chunk))
	}
	addr, err := cw.WriteIndex()
	require.NoError(t, err)

	msg := message.NewChunkedLayout([]uint32{2, 2}, 1, message.ChunkIndexFixedArray)
	msg.ChunkIndexAddr = addr
	c, err := NewChunked(msg, message.NewDataspace(dims, nil), uintType(1), nil, hbin.NewReader(mf, cfg))
	require.NoError(t, err)
	assert.Equal(t, message.ChunkIndexFixedArray, c.IndexType())

	got, err := c.ReadSlice([]uint64{1, 1}, []uint64{3, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 8, 9, 11, 12}, got)

	row, err := c.ReadSlice([]uint64{4, 0}, []uint64{1, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{13, 14, 15}, row)
}

func TestChunkedImplicit(t *testing.T) {
	dims := []uint64{4, 4}
	data := frames(16)
	mf := &memFile{}
	var stored []byte
	for _, chunk := range SplitIntoChunks(data, dims, []uint32{2, 2}, 1) {
		stored = append(stored, chunk...)
	}
	_, err := mf.WriteAt(stored, 512)
	require.NoError(t, err)

	msg := message.NewChunkedLayout([]uint32{2, 2}, 1, message.ChunkIndexImplicit)
	msg.ChunkIndexAddr = 512
	c, err := NewChunked(msg, message.NewDataspace(dims, nil), uintType(1), nil, hbin.NewReader(mf, hbin.DefaultConfig()))
	require.NoError(t, err)

	got, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

// chunkTree builds a v1 chunk B-tree leaf for a rank-1 dataset whose
// chunks hold size bytes each and sit at the given addresses.
func chunkTree(size uint32, chunk uint64, addrs []uint64) []byte {
	le := binary.LittleEndian
	b := []byte("TREE")
	b = append(b, 1, 0)
	b = le.AppendUint16(b, uint16(len(addrs)))
	b = le.AppendUint64(b, ^uint64(0))
	b = le.AppendUint64(b, ^uint64(0))
	key := func(size uint32, offset uint64) {
		b = le.AppendUint32(b, size)
		b = le.AppendUint32(b, 0)
		b = le.AppendUint64(b, offset)
		b = le.AppendUint64(b, 0)
	}
	for i, a := range addrs {
		key(size, uint64(i)*chunk)
		b = le.AppendUint64(b, a)
	}
	key(0, uint64(len(addrs))*chunk)
	return b
}

func TestChunkedBTreeV1(t *testing.T) {
	mf := &memFile{}
	_, err := mf.WriteAt(chunkTree(3, 3, []uint64{400, 300}), 200)
	require.NoError(t, err)
	_, err = mf.WriteAt([]byte{7, 8, 9}, 400)
	require.NoError(t, err)
	_, err = mf.WriteAt([]byte{10, 11, 0}, 300)
	require.NoError(t, err)

	msg := &message.DataLayout{
		Version:        3,
		Class:          message.LayoutChunked,
		ChunkDims:      []uint32{3, 1},
		ChunkIndexAddr: 200,
		ChunkIndexType: message.ChunkIndexBTreeV1,
	}
	c, err := NewChunked(msg, message.NewDataspace([]uint64{5}, nil), uintType(1), nil, hbin.NewReader(mf, hbin.DefaultConfig()))
	require.NoError(t, err)

	got, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8, 9, 10, 11}, got)
}

func TestChunkedUnwritten(t *testing.T) {
	mf := &memFile{}
	r := hbin.NewReader(mf, hbin.DefaultConfig())
	space := message.NewDataspace([]uint64{2, 2}, nil)

	msg := message.NewChunkedLayout([]uint32{2, 2}, 4, message.ChunkIndexFixedArray)
	msg.ChunkIndexAddr = ^uint64(0)
	c, err := NewChunked(msg, space, uintType(4), nil, r)
	require.NoError(t, err)
	got, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), got)

	var filler Filler = c
	filler.SetFill([]byte{1, 0, 0, 0})
	got, err = c.ReadSlice([]uint64{1, 0}, []uint64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 1, 0, 0, 0}, got)

	msg = message.NewChunkedLayout([]uint32{2, 2}, 4, message.ChunkIndexBTreeV2)
	msg.ChunkIndexAddr = 64
	c, err = NewChunked(msg, space, uintType(4), nil, r)
	require.NoError(t, err)
	_, err = c.Read()
	assert.ErrorContains(t, err, "v2 B-tree index is not supported")
}

func TestCalculateDataSize(t *testing.T) {
	assert.Equal(t, uint64(0), calculateDataSize(nil, uintType(4)))
	assert.Equal(t, uint64(4), calculateDataSize(&message.Dataspace{SpaceType: message.DataspaceScalar}, uintType(4)))
	assert.Equal(t, uint64(4*100*200), calculateDataSize(message.NewDataspace([]uint64{100, 200}, nil), uintType(4)))
}
