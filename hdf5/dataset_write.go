package hdf5

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/xpcs2nexus/internal/dtype"
	"github.com/robert-malhotra/xpcs2nexus/internal/filter"
	"github.com/robert-malhotra/xpcs2nexus/internal/layout"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
	"github.com/robert-malhotra/xpcs2nexus/internal/object"
)

// CreateDataset creates a dataset holding data.
//
// data may be a numeric scalar, a string, or a (nested) slice of numbers or
// strings. Scalars and strings get a scalar dataspace. Strings are stored
// as fixed-length, null-terminated ASCII. With WithDims, data is a flat
// slice.
func (g *Group) CreateDataset(name string, data interface{}, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkChildName(name); err != nil {
		return nil, err
	}
	options := &datasetOptions{}
	for _, opt := range opts {
		opt(options)
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("dataset %q: nil data", name)
	}
	dims, datatype, raw, err := encodeValue(v)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}

	if options.dims != nil {
		if want, got := product(options.dims), uint64(len(raw))/uint64(datatype.Size); want != got {
			return nil, fmt.Errorf("dataset %q: shape %v needs %d elements, got %d", name, options.dims, want, got)
		}
		dims = options.dims
	}

	dataspace := message.NewScalarDataspace()
	if dims != nil {
		dataspace = message.NewDataspace(dims, nil)
	}
	dataLayout, pipeline, err := g.writeData(raw, dims, datatype, options)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	return g.finishDataset(name, dataspace, datatype, dataLayout, pipeline, options.attrs)
}

// encodeValue derives the shape and datatype of a Go value and encodes it.
// Scalars have nil dims. Nested slices must be rectangular.
func encodeValue(v reflect.Value) ([]uint64, *message.Datatype, []byte, error) {
	dims, elem := shapeOf(v)
	var (
		datatype *message.Datatype
		raw      []byte
	)
	if elem.Kind() == reflect.String {
		flat := dtype.Flatten(v)
		if dims == nil {
			flat = reflect.ValueOf([]string{v.String()})
		}
		datatype, raw = encodeFixedStrings(flat)
	} else {
		var err error
		datatype, err = dtype.GoTypeToDatatype(elem)
		if err != nil {
			return nil, nil, nil, err
		}
		raw, err = dtype.Encode(datatype, v.Interface())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encoding data: %w", err)
		}
	}

	if dims != nil {
		if want := product(dims) * uint64(datatype.Size); uint64(len(raw)) != want {
			return nil, nil, nil, fmt.Errorf("ragged data: shape %v needs %d bytes, got %d", dims, want, len(raw))
		}
	}
	return dims, datatype, raw, nil
}

// shapeOf walks nested slices and arrays along their first elements.
// Empty slices contribute zero to every remaining axis.
func shapeOf(v reflect.Value) ([]uint64, reflect.Type) {
	var dims []uint64
	for v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		dims = append(dims, uint64(v.Len()))
		if v.Len() == 0 {
			t := v.Type().Elem()
			for t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
				dims = append(dims, 0)
				t = t.Elem()
			}
			return dims, t
		}
		v = v.Index(0)
	}
	return dims, v.Type()
}

// encodeFixedStrings packs strings into one fixed-length string type sized
// for the longest value plus a null terminator.
func encodeFixedStrings(v reflect.Value) (*message.Datatype, []byte) {
	width := 1
	for i := 0; i < v.Len(); i++ {
		width = max(width, len(v.Index(i).String())+1)
	}
	data := make([]byte, v.Len()*width)
	for i := 0; i < v.Len(); i++ {
		copy(data[i*width:], v.Index(i).String())
	}
	return message.NewStringDatatype(uint32(width), message.PadNullTerm, message.CharsetASCII), data
}

// writeData stores raw element bytes and returns the matching layout.
// Chunks, compression or checksums select chunked storage. Scalars and
// empty datasets are always contiguous.
func (g *Group) writeData(raw []byte, dims []uint64, datatype *message.Datatype, options *datasetOptions) (*message.DataLayout, *message.FilterPipeline, error) {
	chunked := options.chunks != nil || options.level > 0 || options.fletcher32
	if dims == nil || len(raw) == 0 || !chunked {
		addr := g.file.allocator.Alloc(uint64(len(raw)))
		if err := g.file.writer.At(int64(addr)).WriteBytes(raw); err != nil {
			return nil, nil, fmt.Errorf("writing data: %w", err)
		}
		return message.NewContiguousLayout(addr, uint64(len(raw))), nil, nil
	}

	requested := make([]uint32, len(dims))
	if options.chunks != nil {
		if len(options.chunks) != len(dims) {
			return nil, nil, fmt.Errorf("chunk rank %d does not match data rank %d", len(options.chunks), len(dims))
		}
		for i, c := range options.chunks {
			requested[i] = uint32(c)
		}
	}
	chunkDims := layout.FitChunkDims(dims, requested)

	cw, pipeline, err := g.chunkWriter(chunkDims, datatype, options)
	if err != nil {
		return nil, nil, err
	}
	chunks := layout.SplitIntoChunks(raw, dims, chunkDims, datatype.Size)

	// Unfiltered chunks written back to back need no index.
	if !cw.Filtered() {
		var stored []byte
		for _, c := range chunks {
			stored = append(stored, c...)
		}
		addr, err := cw.WriteUnindexed(stored)
		if err != nil {
			return nil, nil, fmt.Errorf("writing chunks: %w", err)
		}
		dataLayout := message.NewChunkedLayout(chunkDims, datatype.Size, message.ChunkIndexImplicit)
		dataLayout.ChunkIndexAddr = addr
		return dataLayout, nil, nil
	}

	for _, c := range chunks {
		if err := cw.WriteChunk(c); err != nil {
			return nil, nil, fmt.Errorf("writing chunks: %w", err)
		}
	}
	addr, err := cw.WriteIndex()
	if err != nil {
		return nil, nil, fmt.Errorf("writing chunk index: %w", err)
	}
	dataLayout := message.NewChunkedLayout(chunkDims, datatype.Size, message.ChunkIndexFixedArray)
	dataLayout.ChunkIndexAddr = addr
	return dataLayout, pipeline, nil
}

// chunkWriter returns a chunk writer applying the filters options ask for,
// along with their pipeline message.
func (g *Group) chunkWriter(chunkDims []uint32, datatype *message.Datatype, options *datasetOptions) (*layout.ChunkWriter, *message.FilterPipeline, error) {
	msg := filter.NewWritePipeline(datatype.Size, options.level, options.shuffle, options.fletcher32)
	p, err := filter.NewPipeline(msg)
	if err != nil {
		return nil, nil, err
	}
	return layout.NewChunkWriter(g.file.writer, chunkDims, datatype.Size, g.file.allocator.Alloc, p), msg, nil
}

// finishDataset writes the dataset object header and links it into g.
func (g *Group) finishDataset(name string, dataspace *message.Dataspace, datatype *message.Datatype, dataLayout *message.DataLayout, pipeline *message.FilterPipeline, attrs []Attr) (*Dataset, error) {
	messages := object.NewDatasetHeader(dataspace, datatype, dataLayout, pipeline)
	for _, a := range attrs {
		msg, err := createAttributeMessage(a.Name, a.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		messages = append(messages, msg)
	}

	addr, _, err := g.file.writeHeader(messages, 0)
	if err != nil {
		return nil, fmt.Errorf("writing dataset header: %w", err)
	}
	if err := g.addLink(message.NewHardLink(name, addr)); err != nil {
		return nil, err
	}

	header, err := object.Read(g.file.reader, addr)
	if err != nil {
		return nil, fmt.Errorf("re-reading dataset header: %w", err)
	}
	ds, err := newDataset(g.file, g.childPath(name), header)
	if err != nil {
		return nil, err
	}
	ds.addr = addr
	return ds, nil
}

func product(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

// createAttributeMessage encodes a scalar, string or one-dimensional slice
// as an attribute.
func createAttributeMessage(name string, value interface{}) (*message.Attribute, error) {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("nil attribute value")
	}
	if (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && v.Len() == 0 {
		return nil, fmt.Errorf("empty attribute value")
	}

	dims, datatype, raw, err := encodeValue(v)
	if err != nil {
		return nil, err
	}
	if len(dims) > 1 {
		return nil, fmt.Errorf("attribute of rank %d", len(dims))
	}
	dataspace := message.NewScalarDataspace()
	if dims != nil {
		dataspace = message.NewDataspace(dims, nil)
	}
	return message.NewAttribute(name, datatype, dataspace, raw), nil
}
