// Package alloc hands out file space to a file being written.
//
// Space is taken from the end of the file. Blocks given back with
// [Allocator.Free], the headers of groups that were rewritten, are reused
// first-fit before the file grows. Adjacent free blocks merge.
package alloc
