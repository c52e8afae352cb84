package hdf5

import (
	"fmt"
	"path"
	"reflect"

	"github.com/robert-malhotra/xpcs2nexus/internal/dtype"
	"github.com/robert-malhotra/xpcs2nexus/internal/layout"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
	"github.com/robert-malhotra/xpcs2nexus/internal/object"
)

// Dataset is an open HDF5 dataset.
type Dataset struct {
	file      *File
	path      string
	header    *object.Header
	dataspace *message.Dataspace
	datatype  *message.Datatype
	layout    layout.Layout
	addr      uint64
}

func newDataset(f *File, p string, header *object.Header) (*Dataset, error) {
	ds := &Dataset{
		file:      f,
		path:      p,
		header:    header,
		dataspace: header.Dataspace(),
		datatype:  header.Datatype(),
	}
	switch {
	case ds.dataspace == nil:
		return nil, fmt.Errorf("dataset missing dataspace message")
	case ds.datatype == nil:
		return nil, fmt.Errorf("dataset missing datatype message")
	}
	layoutMsg := header.DataLayout()
	if layoutMsg == nil {
		return nil, fmt.Errorf("dataset missing layout message")
	}

	var err error
	ds.layout, err = layout.New(layoutMsg, ds.dataspace, ds.datatype, header.FilterPipeline(), f.reader)
	if err != nil {
		return nil, fmt.Errorf("creating layout: %w", err)
	}
	if fv := header.FillValue(); fv != nil && fv.IsDefined && len(fv.Value) == int(ds.datatype.Size) {
		if filler, ok := ds.layout.(layout.Filler); ok {
			filler.SetFill(fv.Value)
		}
	}
	return ds, nil
}

// Address returns the file offset of the dataset's object header. Hard
// links to the same dataset share one address.
func (d *Dataset) Address() uint64 {
	return d.addr
}

func (d *Dataset) Name() string {
	return path.Base(d.path)
}

func (d *Dataset) Path() string {
	return d.path
}

// Shape returns the dimensions of the dataset, nil for a scalar.
func (d *Dataset) Shape() []uint64 {
	if d.dataspace.IsScalar() {
		return nil
	}
	return d.dataspace.Dimensions
}

func (d *Dataset) Rank() int {
	return d.dataspace.Rank
}

func (d *Dataset) NumElements() uint64 {
	return d.dataspace.NumElements()
}

func (d *Dataset) IsScalar() bool {
	return d.dataspace.IsScalar()
}

// DtypeSize returns the size of one element in bytes.
func (d *Dataset) DtypeSize() int {
	return int(d.datatype.Size)
}

// GoType returns the Go element type the dataset reads into by default.
func (d *Dataset) GoType() (reflect.Type, error) {
	return dtype.GoType(d.datatype)
}

// Read reads the whole dataset into dest, a pointer to a slice.
func (d *Dataset) Read(dest interface{}) error {
	raw, err := d.layout.Read()
	if err != nil {
		return fmt.Errorf("reading %s: %w", d.path, err)
	}
	return dtype.ConvertWithReader(d.datatype, raw, d.dataspace.NumElements(), dest, d.file.reader)
}

// ReadRows reads count rows along the first axis, starting at row start,
// into dest, a pointer to a slice. The rows are returned flat in row-major
// order.
func (d *Dataset) ReadRows(start, count uint64, dest interface{}) error {
	dims := d.dataspace.Dimensions
	if len(dims) == 0 {
		return fmt.Errorf("%s: scalar dataset has no rows", d.path)
	}
	if start+count > dims[0] {
		return fmt.Errorf("%s: rows %d..%d out of range (%d rows)", d.path, start, start+count, dims[0])
	}

	offset := make([]uint64, len(dims))
	shape := append([]uint64{count}, dims[1:]...)
	offset[0] = start
	raw, err := d.layout.ReadSlice(offset, shape)
	if err != nil {
		return fmt.Errorf("reading rows of %s: %w", d.path, err)
	}

	n := uint64(1)
	for _, s := range shape {
		n *= s
	}
	return dtype.ConvertWithReader(d.datatype, raw, n, dest, d.file.reader)
}

func readDataset[T any](d *Dataset) ([]T, error) {
	var vals []T
	err := d.Read(&vals)
	return vals, err
}

func (d *Dataset) ReadFloat64() ([]float64, error) { return readDataset[float64](d) }
func (d *Dataset) ReadFloat32() ([]float32, error) { return readDataset[float32](d) }
func (d *Dataset) ReadInt64() ([]int64, error)     { return readDataset[int64](d) }
func (d *Dataset) ReadInt32() ([]int32, error)     { return readDataset[int32](d) }
func (d *Dataset) ReadUint8() ([]uint8, error)     { return readDataset[uint8](d) }
func (d *Dataset) ReadString() ([]string, error)   { return readDataset[string](d) }

// Attrs returns the attribute names in header order.
func (d *Dataset) Attrs() []string {
	var names []string
	for _, msg := range d.header.GetMessages(message.TypeAttribute) {
		names = append(names, msg.(*message.Attribute).Name)
	}
	return names
}

// Attr returns the named attribute, or nil.
func (d *Dataset) Attr(name string) *Attribute {
	for _, msg := range d.header.GetMessages(message.TypeAttribute) {
		if attr := msg.(*message.Attribute); attr.Name == name {
			return &Attribute{msg: attr, reader: d.file.reader}
		}
	}
	return nil
}
