package dtype

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"unsafe"

	hbin "github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/heap"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

var hostLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// Convert decodes n elements of raw data into dest, a pointer to a slice.
// Variable-length strings need [ConvertWithReader].
func Convert(dt *message.Datatype, data []byte, n uint64, dest interface{}) error {
	return ConvertWithReader(dt, data, n, dest, nil)
}

// ConvertWithReader decodes n elements of raw data into dest, a pointer to
// a slice, which is replaced by a slice of length n. Integers widen into
// any integer or float slice they fit, strings go to string or []byte
// slices, and []interface{} takes every class GoType knows. r resolves
// variable-length strings in the global heap.
func ConvertWithReader(dt *message.Datatype, data []byte, n uint64, dest interface{}, r *hbin.Reader) error {
	ptr := reflect.ValueOf(dest)
	if ptr.Kind() != reflect.Pointer || ptr.IsNil() || ptr.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("destination must be a non-nil pointer to a slice, got %T", dest)
	}
	decode, err := newDecoder(dt, r)
	if err != nil {
		return err
	}
	size := uint64(dt.Size)
	if need := n * size; uint64(len(data)) < need {
		return fmt.Errorf("have %d bytes for %d elements of %d bytes", len(data), n, size)
	}

	out := reflect.MakeSlice(ptr.Elem().Type(), int(n), int(n))
	if canCopy(dt, out.Type().Elem()) {
		if n > 0 {
			copy(unsafe.Slice((*byte)(out.UnsafePointer()), n*size), data)
		}
	} else {
		for i := uint64(0); i < n; i++ {
			v, err := decode(data[i*size : (i+1)*size])
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			if err := v.store(out.Index(int(i))); err != nil {
				return err
			}
		}
	}
	ptr.Elem().Set(out)
	return nil
}

// canCopy reports whether the file bytes already have the memory layout
// of elements of type t.
func canCopy(dt *message.Datatype, t reflect.Type) bool {
	if !hostLittleEndian || dt.ByteOrder != message.OrderLE {
		return false
	}
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassEnum, message.ClassBitfield, message.ClassFloatPoint:
		native, err := GoType(dt)
		return err == nil && native.Kind() == t.Kind()
	}
	return false
}

// value is one decoded element. kind is Int64, Uint64, Float64 or String.
type value struct {
	kind reflect.Kind
	i    int64
	u    uint64
	f    float64
	s    string
}

func (v value) native() interface{} {
	switch v.kind {
	case reflect.Int64:
		return v.i
	case reflect.Uint64:
		return v.u
	case reflect.Float64:
		return v.f
	}
	return v.s
}

func (v value) store(dst reflect.Value) error {
	switch k := dst.Kind(); {
	case k == reflect.Interface:
		dst.Set(reflect.ValueOf(v.native()))
		return nil

	case dst.CanInt():
		var x int64
		switch v.kind {
		case reflect.Int64:
			x = v.i
		case reflect.Uint64:
			if v.u > math.MaxInt64 {
				return fmt.Errorf("value %d overflows %v", v.u, dst.Type())
			}
			x = int64(v.u)
		default:
			return v.mismatch(dst)
		}
		if dst.OverflowInt(x) {
			return fmt.Errorf("value %d overflows %v", x, dst.Type())
		}
		dst.SetInt(x)
		return nil

	case dst.CanUint():
		var x uint64
		switch v.kind {
		case reflect.Uint64:
			x = v.u
		case reflect.Int64:
			if v.i < 0 {
				return fmt.Errorf("value %d overflows %v", v.i, dst.Type())
			}
			x = uint64(v.i)
		default:
			return v.mismatch(dst)
		}
		if dst.OverflowUint(x) {
			return fmt.Errorf("value %d overflows %v", x, dst.Type())
		}
		dst.SetUint(x)
		return nil

	case dst.CanFloat():
		switch v.kind {
		case reflect.Int64:
			dst.SetFloat(float64(v.i))
		case reflect.Uint64:
			dst.SetFloat(float64(v.u))
		case reflect.Float64:
			dst.SetFloat(v.f)
		default:
			return v.mismatch(dst)
		}
		return nil

	case k == reflect.String && v.kind == reflect.String:
		dst.SetString(v.s)
		return nil

	case k == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8 && v.kind == reflect.String:
		dst.SetBytes([]byte(v.s))
		return nil
	}
	return v.mismatch(dst)
}

func (v value) mismatch(dst reflect.Value) error {
	names := map[reflect.Kind]string{
		reflect.Int64: "integer", reflect.Uint64: "integer",
		reflect.Float64: "floating-point", reflect.String: "string",
	}
	return fmt.Errorf("cannot store %s data in %v", names[v.kind], dst.Type())
}

type decodeFunc func(b []byte) (value, error)

func newDecoder(dt *message.Datatype, r *hbin.Reader) (decodeFunc, error) {
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassBitfield:
		return intDecoder(dt.Size, dt.Signed, dt.ByteOrder)
	case message.ClassEnum:
		if dt.BaseType == nil {
			return nil, fmt.Errorf("enum datatype without a base type")
		}
		return intDecoder(dt.Size, dt.BaseType.Signed, dt.BaseType.ByteOrder)
	case message.ClassFloatPoint:
		return floatDecoder(dt.Size, dt.ByteOrder)
	case message.ClassString:
		return stringDecoder(dt.Size, dt.StringPadding), nil
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return varLenStringDecoder(dt.Size, r)
		}
	}
	return nil, fmt.Errorf("reading %v data is not supported", dt.Class)
}

func byteOrder(o message.ByteOrder) (binary.ByteOrder, error) {
	switch o {
	case message.OrderLE:
		return binary.LittleEndian, nil
	case message.OrderBE:
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("byte order %d is not supported", o)
}

func intDecoder(size uint32, signed bool, o message.ByteOrder) (decodeFunc, error) {
	order, err := byteOrder(o)
	if err != nil {
		return nil, err
	}
	var get func([]byte) uint64
	switch size {
	case 1:
		get = func(b []byte) uint64 { return uint64(b[0]) }
	case 2:
		get = func(b []byte) uint64 { return uint64(order.Uint16(b)) }
	case 4:
		get = func(b []byte) uint64 { return uint64(order.Uint32(b)) }
	case 8:
		get = order.Uint64
	default:
		return nil, fmt.Errorf("%d-byte integers are not supported", size)
	}
	if !signed {
		return func(b []byte) (value, error) {
			return value{kind: reflect.Uint64, u: get(b)}, nil
		}, nil
	}
	shift := 64 - 8*size
	return func(b []byte) (value, error) {
		return value{kind: reflect.Int64, i: int64(get(b)<<shift) >> shift}, nil
	}, nil
}

func floatDecoder(size uint32, o message.ByteOrder) (decodeFunc, error) {
	order, err := byteOrder(o)
	if err != nil {
		return nil, err
	}
	switch size {
	case 4:
		return func(b []byte) (value, error) {
			return value{kind: reflect.Float64, f: float64(math.Float32frombits(order.Uint32(b)))}, nil
		}, nil
	case 8:
		return func(b []byte) (value, error) {
			return value{kind: reflect.Float64, f: math.Float64frombits(order.Uint64(b))}, nil
		}, nil
	}
	return nil, fmt.Errorf("%d-byte floats are not supported", size)
}

func stringDecoder(size uint32, pad message.StringPadding) decodeFunc {
	return func(b []byte) (value, error) {
		s := b[:size]
		if pad == message.PadSpacePad {
			s = bytes.TrimRight(s, " \x00")
		} else if i := bytes.IndexByte(s, 0); i >= 0 {
			s = s[:i]
		}
		return value{kind: reflect.String, s: string(s)}, nil
	}
}

// varLenStringDecoder reads elements made of a 4-byte length and a global
// heap ID. Collections are read once per conversion.
func varLenStringDecoder(size uint32, r *hbin.Reader) (decodeFunc, error) {
	if r == nil {
		return nil, fmt.Errorf("variable-length strings need a file reader")
	}
	if want := uint32(4 + r.OffsetSize() + 4); size < want {
		return nil, fmt.Errorf("variable-length string element of %d bytes, want %d", size, want)
	}
	heaps := map[uint64]*heap.GlobalHeap{}
	return func(b []byte) (value, error) {
		n := binary.LittleEndian.Uint32(b)
		id, err := heap.ParseGlobalHeapID(b[4:], r.OffsetSize())
		if err != nil {
			return value{}, err
		}
		if n == 0 || id.CollectionAddress == 0 {
			return value{kind: reflect.String}, nil
		}
		h, ok := heaps[id.CollectionAddress]
		if !ok {
			if h, err = heap.ReadGlobalHeap(r, id.CollectionAddress); err != nil {
				return value{}, err
			}
			heaps[id.CollectionAddress] = h
		}
		obj, err := h.GetObject(uint16(id.ObjectIndex))
		if err != nil {
			return value{}, err
		}
		if int(n) < len(obj) {
			obj = obj[:n]
		}
		if i := bytes.IndexByte(obj, 0); i >= 0 {
			obj = obj[:i]
		}
		return value{kind: reflect.String, s: string(obj)}, nil
	}, nil
}
