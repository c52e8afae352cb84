// Package object reads and writes HDF5 object headers.
//
// Version 1 headers appear in h5py-written source files; version 2 headers
// ("OHDR", with checksums) are what the writer produces. [Read] detects the
// version and follows continuation blocks. Group headers that outgrow
// their allocation are rewritten elsewhere and the old space is freed.
package object
