package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// Encode packs src, a numeric scalar or a (nested) slice of numbers, into
// the bytes of dt. Strings are packed by the writer itself.
func Encode(dt *message.Datatype, src interface{}) ([]byte, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	v := reflect.ValueOf(src)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	v = Flatten(v)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		one := reflect.MakeSlice(reflect.SliceOf(v.Type()), 1, 1)
		one.Index(0).Set(v)
		v = one
	}

	order, err := byteOrder(dt.ByteOrder)
	if err != nil {
		return nil, err
	}
	size := int(dt.Size)
	put, err := encoder(dt, order)
	if err != nil {
		return nil, err
	}
	data := make([]byte, v.Len()*size)
	for i := 0; i < v.Len(); i++ {
		if err := put(data[i*size:(i+1)*size], v.Index(i)); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func encoder(dt *message.Datatype, order binary.ByteOrder) (func([]byte, reflect.Value) error, error) {
	switch dt.Class {
	case message.ClassFixedPoint:
		return func(b []byte, v reflect.Value) error {
			var x uint64
			switch {
			case v.CanInt():
				x = uint64(v.Int())
			case v.CanUint():
				x = v.Uint()
			default:
				return fmt.Errorf("cannot encode %v as fixed-point", v.Type())
			}
			return putUint(b, x, order)
		}, nil

	case message.ClassFloatPoint:
		return func(b []byte, v reflect.Value) error {
			if !v.CanFloat() {
				return fmt.Errorf("cannot encode %v as float", v.Type())
			}
			if len(b) == 4 {
				order.PutUint32(b, math.Float32bits(float32(v.Float())))
			} else {
				order.PutUint64(b, math.Float64bits(v.Float()))
			}
			return nil
		}, nil
	}
	return nil, fmt.Errorf("encoding %v data is not supported", dt.Class)
}

func putUint(b []byte, x uint64, order binary.ByteOrder) error {
	switch len(b) {
	case 1:
		b[0] = byte(x)
	case 2:
		order.PutUint16(b, uint16(x))
	case 4:
		order.PutUint32(b, uint32(x))
	case 8:
		order.PutUint64(b, x)
	default:
		return fmt.Errorf("%d-byte integers are not supported", len(b))
	}
	return nil
}

// Flatten turns nested slices or arrays into one row-major slice of the
// innermost element type. Other values are returned unchanged.
func Flatten(v reflect.Value) reflect.Value {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return v
	}
	elemType := v.Type().Elem()
	if elemType.Kind() != reflect.Slice && elemType.Kind() != reflect.Array {
		return v
	}

	leaf := elemType
	for leaf.Kind() == reflect.Slice || leaf.Kind() == reflect.Array {
		leaf = leaf.Elem()
	}
	out := reflect.MakeSlice(reflect.SliceOf(leaf), 0, v.Len())
	var walk func(reflect.Value)
	walk = func(cur reflect.Value) {
		if cur.Kind() != reflect.Slice && cur.Kind() != reflect.Array {
			out = reflect.Append(out, cur)
			return
		}
		for i := 0; i < cur.Len(); i++ {
			walk(cur.Index(i))
		}
	}
	walk(v)
	return out
}

// GoTypeToDatatype returns the little-endian datatype for the element type
// of t, looking through pointers, slices and arrays.
func GoTypeToDatatype(t reflect.Type) (*message.Datatype, error) {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	size := uint32(t.Size())
	switch {
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Int64:
		return message.NewFixedPointDatatype(size, true, message.OrderLE), nil
	case t.Kind() >= reflect.Uint && t.Kind() <= reflect.Uint64:
		return message.NewFixedPointDatatype(size, false, message.OrderLE), nil
	case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
		return message.NewFloatDatatype(size, message.OrderLE), nil
	}
	return nil, fmt.Errorf("unsupported Go type: %v", t)
}
