// Package nexus assembles NeXus documents for XPCS results on top of the
// hdf5 package.
//
// A Creator walks a fixed set of sections (entry, instrument, sample, XPCS,
// SAXS_1D, SAXS_2D) in order. What each section writes comes from a
// schema.Schema table; the Creator only adds the behavior the table cannot
// express, such as the SAXS_2D mask inversion and the default plot chain.
// Missing values are omitted, never written as placeholders.
package nexus

import "errors"

var (
	// ErrOutOfOrder is returned when a section is written before its
	// prerequisites (an open file, an open entry).
	ErrOutOfOrder = errors.New("section written out of order")

	// ErrDuplicateGroup is returned when a group name is already used by a
	// sibling. It wraps hdf5.ErrExists.
	ErrDuplicateGroup = errors.New("duplicate group")

	// ErrPathUnwritable is returned when the output file cannot be created.
	ErrPathUnwritable = errors.New("output path not writable")

	// ErrClosed is returned for any call after Close.
	ErrClosed = errors.New("creator is closed")
)
