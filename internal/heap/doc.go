// Package heap reads HDF5 heaps.
//
// Local heaps ("HEAP") hold the member names of symbol-table groups found
// in facility source files. Global heap collections ("GCOL") hold the
// bytes of variable-length strings, which h5py uses for string
// attributes; they are resolved by collection address and object index.
package heap
