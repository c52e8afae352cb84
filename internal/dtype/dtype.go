package dtype

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

var (
	signedTypes = map[uint32]reflect.Type{
		1: reflect.TypeOf((*int8)(nil)).Elem(), 2: reflect.TypeOf((*int16)(nil)).Elem(),
		4: reflect.TypeOf((*int32)(nil)).Elem(), 8: reflect.TypeOf((*int64)(nil)).Elem(),
	}
	unsignedTypes = map[uint32]reflect.Type{
		1: reflect.TypeOf((*uint8)(nil)).Elem(), 2: reflect.TypeOf((*uint16)(nil)).Elem(),
		4: reflect.TypeOf((*uint32)(nil)).Elem(), 8: reflect.TypeOf((*uint64)(nil)).Elem(),
	}
	floatTypes = map[uint32]reflect.Type{
		4: reflect.TypeOf((*float32)(nil)).Elem(), 8: reflect.TypeOf((*float64)(nil)).Elem(),
	}
)

// GoType returns the Go element type dt reads into by default.
func GoType(dt *message.Datatype) (reflect.Type, error) {
	var t reflect.Type
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassEnum:
		if dt.Signed {
			t = signedTypes[dt.Size]
		} else {
			t = unsignedTypes[dt.Size]
		}
	case message.ClassBitfield:
		t = unsignedTypes[dt.Size]
	case message.ClassFloatPoint:
		t = floatTypes[dt.Size]
	case message.ClassString:
		t = reflect.TypeOf((*string)(nil)).Elem()
	case message.ClassVarLen:
		if dt.IsVarLenString {
			t = reflect.TypeOf((*string)(nil)).Elem()
		}
	}
	if t == nil {
		return nil, fmt.Errorf("%d-byte %v data has no Go equivalent", dt.Size, dt.Class)
	}
	return t, nil
}
