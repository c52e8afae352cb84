// Package dtype maps HDF5 datatypes to Go types and back.
//
// Reading goes through [GoType] and [ConvertWithReader]: integer, enum
// and bitfield classes become sized ints and uints, floating point
// becomes float32 or float64, and fixed and variable-length strings
// become string. Values widen into larger destination types; narrowing
// that loses data is an error.
//
// Writing goes through [GoTypeToDatatype] and [Encode] for numbers.
// [Flatten] turns a nested slice into the flat row-major slice the
// encoders and the ROI mask derivation work on.
package dtype
