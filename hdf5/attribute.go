package hdf5

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/dtype"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// Attribute is an attribute of a group or dataset.
type Attribute struct {
	msg    *message.Attribute
	reader *binary.Reader
}

func (a *Attribute) Name() string {
	return a.msg.Name
}

// Shape returns the dimensions of the value, nil for a scalar.
func (a *Attribute) Shape() []uint64 {
	if a.IsScalar() {
		return nil
	}
	return a.msg.Dataspace.Dimensions
}

func (a *Attribute) NumElements() uint64 {
	if a.msg.Dataspace == nil {
		return 1
	}
	return a.msg.Dataspace.NumElements()
}

func (a *Attribute) IsScalar() bool {
	return a.msg.Dataspace == nil || a.msg.Dataspace.IsScalar()
}

// Read decodes the value into dest, a pointer to a slice.
func (a *Attribute) Read(dest interface{}) error {
	if a.msg.Datatype == nil {
		return fmt.Errorf("attribute %s has no datatype", a.msg.Name)
	}
	return dtype.ConvertWithReader(a.msg.Datatype, a.msg.Data, a.NumElements(), dest, a.reader)
}

func readAttr[T any](a *Attribute) ([]T, error) {
	var vals []T
	err := a.Read(&vals)
	return vals, err
}

func scalarAttr[T any](vals []T, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if len(vals) == 0 {
		return zero, fmt.Errorf("no values in attribute")
	}
	return vals[0], nil
}

func (a *Attribute) ReadFloat64() ([]float64, error) { return readAttr[float64](a) }
func (a *Attribute) ReadInt64() ([]int64, error)     { return readAttr[int64](a) }
func (a *Attribute) ReadInt32() ([]int32, error)     { return readAttr[int32](a) }
func (a *Attribute) ReadString() ([]string, error)   { return readAttr[string](a) }

func (a *Attribute) ReadScalarInt64() (int64, error)     { return scalarAttr(a.ReadInt64()) }
func (a *Attribute) ReadScalarFloat64() (float64, error) { return scalarAttr(a.ReadFloat64()) }
func (a *Attribute) ReadScalarString() (string, error)   { return scalarAttr(a.ReadString()) }

// Value decodes the attribute without a destination type. Signed integers
// come back as int64, unsigned as uint64, floats as float64 and strings
// as string. Scalars yield one value, other shapes a slice.
func (a *Attribute) Value() (interface{}, error) {
	if a.msg.Datatype == nil {
		return nil, fmt.Errorf("attribute %s has no datatype", a.msg.Name)
	}
	t, err := dtype.GoType(a.msg.Datatype)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", a.msg.Name, err)
	}
	switch k := t.Kind(); {
	case k >= reflect.Int && k <= reflect.Int64:
		t = reflect.TypeOf((*int64)(nil)).Elem()
	case k >= reflect.Uint && k <= reflect.Uint64:
		t = reflect.TypeOf((*uint64)(nil)).Elem()
	case k == reflect.Float32:
		t = reflect.TypeOf((*float64)(nil)).Elem()
	}

	dest := reflect.New(reflect.SliceOf(t))
	if err := a.Read(dest.Interface()); err != nil {
		return nil, err
	}
	vals := dest.Elem()
	if a.IsScalar() && vals.Len() == 1 {
		return vals.Index(0).Interface(), nil
	}
	return vals.Interface(), nil
}
