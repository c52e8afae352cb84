package object

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// MinGroupChunkSize is the smallest first chunk given to a group header,
// the size h5py leaves for a handful of links.
const MinGroupChunkSize = 120

// maxMessageSize is the largest body a 2-byte message size can describe.
const maxMessageSize = 0xFFFF

// layout computes the chunk size of a version 2 header holding messages,
// padded up to minChunk.
func layout(w *binary.Writer, messages []message.Message, minChunk int) (chunk, used int, err error) {
	for _, msg := range messages {
		s, ok := msg.(message.Serializable)
		if !ok {
			return 0, 0, fmt.Errorf("%v message cannot be written", msg.Type())
		}
		size := s.SerializedSize(w)
		if size > maxMessageSize {
			return 0, 0, fmt.Errorf("%v message of %d bytes does not fit in an object header", msg.Type(), size)
		}
		used += 4 + size
	}
	return max(used, minChunk), used, nil
}

// chunkSizeBytes is the width of the chunk size field, 1, 2, 4 or 8.
func chunkSizeBytes(chunk int) int {
	switch {
	case chunk <= 0xFF:
		return 1
	case chunk <= 0xFFFF:
		return 2
	case uint64(chunk) <= 0xFFFFFFFF:
		return 4
	}
	return 8
}

// HeaderSize returns the bytes WriteHeader writes for messages.
func HeaderSize(w *binary.Writer, messages []message.Message, minChunk int) (int, error) {
	chunk, _, err := layout(w, messages, minChunk)
	if err != nil {
		return 0, err
	}
	return 6 + chunkSizeBytes(chunk) + chunk + 4, nil
}

// WriteHeader writes a version 2 object header at the writer's position.
// Space left over after the messages becomes a NIL message, or a gap when
// it is too small for one.
func WriteHeader(w *binary.Writer, messages []message.Message, minChunk int) (int64, error) {
	chunk, used, err := layout(w, messages, minChunk)
	if err != nil {
		return 0, err
	}
	width := chunkSizeBytes(chunk)
	buf := make(sliceWriter, 6+width+chunk+4)
	bw := binary.NewWriter(buf, binary.Config{
		ByteOrder:  w.ByteOrder(),
		OffsetSize: w.OffsetSize(),
		LengthSize: w.LengthSize(),
	})

	if err := bw.WriteBytes([]byte{'O', 'H', 'D', 'R', 2, uint8(bits.TrailingZeros(uint(width)))}); err != nil {
		return 0, err
	}
	if err := bw.WriteUintN(uint64(chunk), width); err != nil {
		return 0, err
	}
	for _, msg := range messages {
		s := msg.(message.Serializable)
		if err := bw.WriteBytes([]byte{uint8(msg.Type()), 0, 0, 0}); err != nil {
			return 0, err
		}
		start := bw.Pos()
		if err := s.Serialize(bw); err != nil {
			return 0, fmt.Errorf("writing %v message: %w", msg.Type(), err)
		}
		size := bw.Pos() - start
		if size != int64(s.SerializedSize(bw)) {
			return 0, fmt.Errorf("%v message wrote %d bytes, expected %d", msg.Type(), size, s.SerializedSize(bw))
		}
		if err := bw.At(start - 3).WriteUint16(uint16(size)); err != nil {
			return 0, err
		}
	}
	// the buffer is zeroed, so a NIL message only needs its size
	if pad := chunk - used; pad >= 4 {
		if err := bw.At(bw.Pos() + 1).WriteUint16(uint16(pad - 4)); err != nil {
			return 0, err
		}
	}

	end := len(buf) - 4
	if err := bw.At(int64(end)).WriteUint32(binary.Lookup3Checksum(buf[:end])); err != nil {
		return 0, err
	}
	if err := w.WriteBytes(buf); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

// sliceWriter is a fixed-size io.WriterAt.
type sliceWriter []byte

func (s sliceWriter) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(s)) {
		return 0, io.ErrShortWrite
	}
	return copy(s[off:], p), nil
}

// NewGroupHeader returns the messages of a compact group holding links
// and attrs.
func NewGroupHeader(links []*message.Link, attrs []*message.Attribute) []message.Message {
	messages := make([]message.Message, 0, len(links)+len(attrs)+2)
	messages = append(messages, message.NewLinkInfo(), message.NewGroupInfo())
	for _, link := range links {
		messages = append(messages, link)
	}
	for _, attr := range attrs {
		messages = append(messages, attr)
	}
	return messages
}

// NewDatasetHeader returns the messages of a dataset. pipeline may be nil.
func NewDatasetHeader(dataspace *message.Dataspace, datatype *message.Datatype, layout *message.DataLayout, pipeline *message.FilterPipeline) []message.Message {
	alloc := message.AllocLate
	switch layout.Class {
	case message.LayoutCompact:
		alloc = message.AllocEarly
	case message.LayoutChunked:
		alloc = message.AllocIncremental
		// Implicit indexes locate chunks allocated up front.
		if layout.ChunkIndexType == message.ChunkIndexImplicit {
			alloc = message.AllocEarly
		}
	}
	messages := []message.Message{dataspace, datatype, message.NewFillValue(alloc)}
	if pipeline != nil && len(pipeline.Filters) > 0 {
		messages = append(messages, pipeline)
	}
	return append(messages, layout)
}
