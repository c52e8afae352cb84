package hdf5

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/xpcs2nexus/internal/dtype"
	"github.com/robert-malhotra/xpcs2nexus/internal/layout"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// StreamWriter writes a chunked dataset one slab at a time along its leading
// axis. Only one chunk worth of data is held in memory.
type StreamWriter struct {
	group    *Group
	name     string
	dims     []uint64
	datatype *message.Datatype
	attrs    []Attr
	pipeline *message.FilterPipeline

	cw         *layout.ChunkWriter
	chunkDims  []uint32
	rowBytes   uint64
	chunkBytes uint64

	buf    []byte
	rows   uint64
	closed bool
}

// CreateStream starts a chunked dataset of shape dims whose element type is
// taken from elem (for example float64(0)). Rows are supplied with Append and
// the dataset becomes visible in g on Close.
func (g *Group) CreateStream(name string, elem interface{}, dims []uint64, opts ...DatasetOption) (*StreamWriter, error) {
	if err := g.checkChildName(name); err != nil {
		return nil, err
	}
	if len(dims) == 0 || dims[0] == 0 {
		return nil, fmt.Errorf("dataset %q: streamed datasets need a non-empty leading axis", name)
	}

	options := &datasetOptions{}
	for _, opt := range opts {
		opt(options)
	}

	elemType := reflect.TypeOf(elem)
	if elemType == nil || elemType.Kind() == reflect.String {
		return nil, fmt.Errorf("%w: streaming dataset %q of %T", ErrUnsupported, name, elem)
	}
	datatype, err := dtype.GoTypeToDatatype(elemType)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}

	// Chunks always span the trailing axes so each slab maps onto whole chunks.
	requested := make([]uint32, len(dims))
	requested[0] = 1
	if len(options.chunks) > 0 && options.chunks[0] > 0 {
		requested[0] = uint32(options.chunks[0])
	}
	chunkDims := layout.FitChunkDims(dims, requested)

	cw, pipeline, err := g.chunkWriter(chunkDims, datatype, options)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	s := &StreamWriter{
		group:      g,
		name:       name,
		dims:       dims,
		datatype:   datatype,
		attrs:      options.attrs,
		pipeline:   pipeline,
		cw:         cw,
		chunkDims:  chunkDims,
		rowBytes:   product(dims[1:]) * uint64(datatype.Size),
		chunkBytes: cw.ChunkSize(),
	}
	return s, nil
}

// Rows returns how many rows have been appended.
func (s *StreamWriter) Rows() uint64 {
	return s.rows
}

// Append adds one or more rows. data is a flat or nested slice whose length
// is a whole number of rows.
func (s *StreamWriter) Append(data interface{}) error {
	if s.closed {
		return ErrClosed
	}

	raw, err := dtype.Encode(s.datatype, data)
	if err != nil {
		return fmt.Errorf("dataset %q: encoding slab: %w", s.name, err)
	}
	if s.rowBytes == 0 || uint64(len(raw))%s.rowBytes != 0 {
		return fmt.Errorf("dataset %q: slab of %d bytes is not a whole number of %d-byte rows", s.name, len(raw), s.rowBytes)
	}
	n := uint64(len(raw)) / s.rowBytes
	if s.rows+n > s.dims[0] {
		return fmt.Errorf("dataset %q: %d rows exceed leading dimension %d", s.name, s.rows+n, s.dims[0])
	}
	s.rows += n

	s.buf = append(s.buf, raw...)
	for uint64(len(s.buf)) >= s.chunkBytes {
		if err := s.cw.WriteChunk(s.buf[:s.chunkBytes]); err != nil {
			return fmt.Errorf("dataset %q: %w", s.name, err)
		}
		s.buf = append(s.buf[:0], s.buf[s.chunkBytes:]...)
	}
	return nil
}

// Close flushes the last partial chunk, writes the chunk index and links the
// dataset into its group. Every row of the declared shape must have been
// appended.
func (s *StreamWriter) Close() (*Dataset, error) {
	if s.closed {
		return nil, ErrClosed
	}
	s.closed = true

	if s.rows != s.dims[0] {
		return nil, fmt.Errorf("dataset %q: got %d of %d rows", s.name, s.rows, s.dims[0])
	}
	if len(s.buf) > 0 {
		if err := s.cw.WriteChunk(s.buf); err != nil {
			return nil, fmt.Errorf("dataset %q: %w", s.name, err)
		}
		s.buf = nil
	}

	indexAddr, err := s.cw.WriteIndex()
	if err != nil {
		return nil, fmt.Errorf("dataset %q: writing chunk index: %w", s.name, err)
	}
	dataLayout := message.NewChunkedLayout(s.chunkDims, s.datatype.Size, message.ChunkIndexFixedArray)
	dataLayout.ChunkIndexAddr = indexAddr

	if err := s.group.checkChildName(s.name); err != nil {
		return nil, err
	}
	dataspace := message.NewDataspace(s.dims, nil)
	return s.group.finishDataset(s.name, dataspace, s.datatype, dataLayout, s.pipeline, s.attrs)
}
