// Package layout reads and writes dataset storage.
//
// The data layout message of a dataset names one of three storage classes.
// [New] returns the matching [Layout], and every layout answers Read for
// the whole dataset and ReadSlice for a row-major box of it:
//
//   - Compact (class 0): the raw bytes live inside the layout message
//     itself, so nothing beyond the object header is read. See [Compact].
//
//   - Contiguous (class 1): one block at a file address, holding every
//     element in row-major order. An undefined address means the storage
//     was never allocated and reads return the fill value. See
//     [Contiguous].
//
//   - Chunked (class 2): the dataspace is cut into equal boxes, each stored
//     on its own and passed through the filter pipeline. Edge chunks are
//     stored at full size. See [Chunked].
//
// # Chunk Indexes
//
// Chunked layouts locate their chunks through an index. Layout messages
// before version 4 always use a version 1 B-tree ("TREE" nodes keyed by
// chunk offset), which is what h5py writes by default. Version 4 layout
// messages name their index:
//
//   - Single chunk (0): the index address is the chunk itself. Filtered
//     single chunks carry their stored size and filter mask in the message.
//   - Implicit (1): unfiltered chunks laid out back to back in row-major
//     chunk order, found by position alone.
//   - Fixed array (2): a "FAHD" header pointing at a "FADB" data block with
//     one entry per chunk. Filtered entries add the stored size and a
//     filter mask. Only arrays that fit in one page are read.
//
// Extensible array and version 2 B-tree indexes are recognized and
// rejected with an error naming the index.
//
// Chunks missing from an index read back as the fill value, which callers
// set through [Filler].
//
// # Writing
//
// [ChunkWriter] writes chunked datasets. Each chunk is zero padded to the
// full chunk size, filtered and stored at freshly allocated space. Filtered
// datasets get a single-page fixed array index from WriteIndex, so one
// dataset holds at most [MaxFixedArrayChunks] chunks; [FitChunkDims]
// enlarges chunk dimensions to stay within that. Unfiltered datasets may
// skip the index with WriteUnindexed and use an implicit index.
//
// Streamed datasets are filled one chunk row at a time, so a two-time
// matrix never has to be held whole.
package layout
