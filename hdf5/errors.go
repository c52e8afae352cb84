// Package hdf5 reads and writes HDF5 files without cgo.
package hdf5

import (
	"errors"

	"github.com/robert-malhotra/xpcs2nexus/internal/superblock"
)

var (
	ErrNotHDF5     = superblock.ErrNotHDF5
	ErrNotFound    = errors.New("object not found")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrUnsupported = errors.New("unsupported feature")
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("file is closed")
	ErrLinkDepth   = errors.New("too many soft or external links")
	ErrExists      = errors.New("object already exists")
	ErrNotWritable = errors.New("file is not writable")
)

// MaxLinkDepth bounds the soft and external links followed while resolving
// one path, which also ends link cycles.
const MaxLinkDepth = 100
