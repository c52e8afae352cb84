// Package superblock reads and writes the HDF5 superblock.
//
// The superblock is the first structure read from any HDF5 file. It opens
// with the 8-byte signature 0x89 'H' 'D' 'F' '\r' '\n' 0x1a '\n', and the
// byte after it is the superblock version. [Read] looks for the signature
// at offsets 0, 512, 1024 and 2048, since files with a user block move the
// superblock to the next power of two. Sources with no signature at any of
// these offsets fail with [ErrNotHDF5].
//
// # Versions 0 and 1
//
// Files written by older HDF5 libraries use these. After the signature and
// version come the free-space and root symbol table versions, a reserved
// byte, the shared header version, the offset and length sizes, another
// reserved byte, the group leaf and internal node K values and four flag
// bytes. Version 1 adds the indexed storage K value and two reserved
// bytes. Then follow four addresses (base, free
// space, end of file, driver info) and the root group's symbol table
// entry. When that entry caches a symbol table, its B-tree and local heap
// addresses are kept in RootGroupBTreeAddress and
// RootGroupLocalHeapAddress. These versions carry no checksum.
//
// # Versions 2 and 3
//
// After the signature and version come the offset size, the length size
// and a consistency flags byte, then four addresses: base, superblock
// extension, end of file and the root group's object header. A Jenkins
// lookup3 checksum over everything before it ends the block; a mismatch
// fails with [ErrChecksum]. Version 3 differs only in how readers must
// treat the flags.
//
// Offsets and lengths of 2, 4 or 8 bytes are accepted.
// [Superblock.ReaderConfig] returns the little-endian binary layout the
// rest of the file's metadata is decoded with.
//
// # Writing
//
// [NewSuperblock] returns a version 2 superblock with 8-byte offsets and
// lengths and no extension, and [Superblock.Write] encodes it. The file
// writer reserves its space at offset 0 and writes it on close, once the
// end-of-file address is known.
//
// Versions above 3 fail with [ErrUnsupportedVersion].
package superblock
