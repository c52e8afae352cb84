// Package btree reads the version 1 B-trees that index group members and
// chunks.
//
// Facility result files come from h5py with the default library bounds,
// so their groups are symbol tables behind v1 B-trees ("TREE" nodes
// pointing at "SNOD" symbol nodes) and their chunked datasets are indexed
// by v1 chunk B-trees.
//
// The converter's own output does not use B-trees: groups are v2 link
// messages and chunks go into a fixed array index.
package btree
