package nexus

import (
	"fmt"
	"log/slog"
	"path"
	"reflect"

	"github.com/robert-malhotra/xpcs2nexus/hdf5"
	"github.com/robert-malhotra/xpcs2nexus/internal/schema"
	"github.com/robert-malhotra/xpcs2nexus/internal/units"
)

// FieldWriter writes single NeXus fields: the value, its validated units
// and the target attribute holding the field's own path.
type FieldWriter struct {
	units       *units.Registry
	logger      *slog.Logger
	compression int
	threshold   int
}

func newFieldWriter(o *options) *FieldWriter {
	return &FieldWriter{
		units:       o.units,
		logger:      o.logger,
		compression: o.compression,
		threshold:   o.threshold,
	}
}

// Write creates dataset name under parent from q. An absent q (nil, nil
// Value, nil or empty slice) is not written and Write returns (nil, nil).
//
// Units are checked against f.Dimension and dropped when rejected. Fields
// marked compressible whose data reaches the size threshold are written
// chunked with shuffle and deflate.
func (w *FieldWriter) Write(parent *hdf5.Group, f schema.Field, name string, q *Quantity, extra ...hdf5.DatasetOption) (*hdf5.Dataset, error) {
	if q == nil || q.Value == nil {
		return nil, nil
	}
	fieldPath := path.Join(parent.Path(), name)

	v, err := inspectValue(q.Value)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldPath, err)
	}
	if v.empty {
		w.logger.Debug("field empty, omitted", "field", fieldPath)
		return nil, nil
	}

	opts := []hdf5.DatasetOption{hdf5.WithAttrs(w.attrs(f, fieldPath, q.Units, q.Attrs)...)}
	if v.flat && len(v.dims) > 0 {
		opts = append(opts, hdf5.WithDims(v.dims...))
	}
	compressed := f.Compress && !v.scalar && !v.text && len(v.dims) > 0 && w.compression > 0 && v.bytes >= uint64(w.threshold)
	if compressed {
		opts = append(opts,
			hdf5.WithChunks(chunkRows(v.dims, v.elemSize)...),
			hdf5.WithShuffle(),
			hdf5.WithCompression(w.compression))
	}
	opts = append(opts, extra...)

	ds, err := parent.CreateDataset(name, v.data, opts...)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldPath, err)
	}
	w.logger.Debug("field written", "field", fieldPath, "shape", ds.Shape(), "compressed", compressed)
	return ds, nil
}

// WriteSlabs streams src into a chunked dataset one slab at a time. An
// empty source is treated as absent.
func (w *FieldWriter) WriteSlabs(parent *hdf5.Group, f schema.Field, name string, src SlabSource, unit string) (*hdf5.Dataset, error) {
	if src == nil {
		return nil, nil
	}
	shape := src.Shape()
	if len(shape) == 0 || product(shape) == 0 {
		return nil, nil
	}
	fieldPath := path.Join(parent.Path(), name)

	elemSize := uint64(reflect.TypeOf(src.Elem()).Size())
	opts := []hdf5.DatasetOption{
		hdf5.WithAttrs(w.attrs(f, fieldPath, unit, nil)...),
		hdf5.WithChunks(chunkRows(shape, elemSize)...),
	}
	if w.compression > 0 {
		opts = append(opts, hdf5.WithShuffle(), hdf5.WithCompression(w.compression))
	}

	sw, err := parent.CreateStream(name, src.Elem(), shape, opts...)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldPath, err)
	}
	slabs := 0
	err = src.Slabs(func(slab interface{}) error {
		slabs++
		return sw.Append(slab)
	})
	if err != nil {
		return nil, fmt.Errorf("field %s: slab %d: %w", fieldPath, slabs, err)
	}
	ds, err := sw.Close()
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldPath, err)
	}
	w.logger.Debug("field streamed", "field", fieldPath, "shape", shape, "slabs", slabs)
	return ds, nil
}

// attrs returns the dataset attributes in write order: units (if
// accepted), target, then the caller's extras.
func (w *FieldWriter) attrs(f schema.Field, fieldPath, unit string, extra []hdf5.Attr) []hdf5.Attr {
	var out []hdf5.Attr
	if unit != "" {
		if d := w.units.Validate(fieldPath, f.Dimension, unit); d.Accepted {
			out = append(out, hdf5.Attr{Name: "units", Value: unit})
			if d.NeedsConversion {
				w.logger.Debug("units differ from canonical", "field", fieldPath, "units", unit, "reason", d.Reason)
			}
		}
	}
	out = append(out, hdf5.Attr{Name: "target", Value: fieldPath})
	return append(out, extra...)
}

// chunkRows returns chunk dimensions spanning all trailing axes, with as
// many leading rows as fit in about one megabyte. dims must not be empty.
func chunkRows(dims []uint64, elemSize uint64) []uint64 {
	chunks := make([]uint64, len(dims))
	rowBytes := product(dims[1:]) * elemSize
	rows := uint64(1)
	if rowBytes > 0 && rowBytes < chunkTarget {
		rows = chunkTarget / rowBytes
	}
	chunks[0] = min(rows, dims[0])
	return chunks
}

// value describes a field value before it is written.
type value struct {
	data     interface{}
	dims     []uint64
	elemSize uint64
	bytes    uint64
	scalar   bool
	text     bool
	flat     bool
	empty    bool
}

func inspectValue(raw interface{}) (value, error) {
	if a, ok := raw.(Array); ok {
		rv, err := a.check()
		if err != nil {
			return value{}, err
		}
		elem := rv.Type().Elem()
		v := value{
			data:     a.Data,
			dims:     a.Shape,
			elemSize: uint64(elem.Size()),
			text:     elem.Kind() == reflect.String,
			flat:     true,
			empty:    rv.Len() == 0,
		}
		v.bytes = uint64(rv.Len()) * v.elemSize
		return v, nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return value{empty: true}, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return value{empty: true}, nil
		}
		var dims []uint64
		cur := rv
		for cur.Kind() == reflect.Slice || cur.Kind() == reflect.Array {
			dims = append(dims, uint64(cur.Len()))
			if cur.Len() == 0 {
				return value{empty: true}, nil
			}
			cur = cur.Index(0)
		}
		v := value{
			data:     rv.Interface(),
			dims:     dims,
			elemSize: uint64(cur.Type().Size()),
			text:     cur.Kind() == reflect.String,
		}
		v.bytes = product(dims) * v.elemSize
		return v, nil
	case reflect.String:
		return value{data: rv.String(), dims: []uint64{1}, scalar: true, text: true}, nil
	case reflect.Bool:
		b := uint8(0)
		if rv.Bool() {
			b = 1
		}
		return value{data: b, dims: []uint64{1}, scalar: true}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return value{data: rv.Interface(), dims: []uint64{1}, scalar: true}, nil
	}
	return value{}, fmt.Errorf("unsupported value type %T", raw)
}
