package hdf5

// FileOption configures Create.
type FileOption func(*fileOptions)

type fileOptions struct {
	offsetSize int
	lengthSize int
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{offsetSize: 8, lengthSize: 8}
}

func validSize(n int) bool {
	return n == 2 || n == 4 || n == 8
}

// WithOffsetSize sets the width of file addresses in bytes (2, 4 or 8).
func WithOffsetSize(size int) FileOption {
	return func(o *fileOptions) {
		if validSize(size) {
			o.offsetSize = size
		}
	}
}

// WithLengthSize sets the width of object lengths in bytes (2, 4 or 8).
func WithLengthSize(size int) FileOption {
	return func(o *fileOptions) {
		if validSize(size) {
			o.lengthSize = size
		}
	}
}

// DatasetOption configures CreateDataset and CreateStream.
type DatasetOption func(*datasetOptions)

type datasetOptions struct {
	dims       []uint64
	chunks     []uint64
	level      int
	shuffle    bool
	fletcher32 bool
	attrs      []Attr
}

// WithDims sets the dataset shape explicitly. The data passed to
// CreateDataset is then a flat row-major slice whose length must match.
func WithDims(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.dims = dims
	}
}

// WithChunks sets the chunk shape. A zero entry means the full extent of
// that axis. Chunks may be enlarged so a dataset needs at most 1024 of them.
func WithChunks(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.chunks = dims
	}
}

// WithCompression sets the deflate level, 1 to 9. Level 0 disables it.
// Compressed datasets are always chunked.
func WithCompression(level int) DatasetOption {
	return func(o *datasetOptions) {
		if level >= 0 && level <= 9 {
			o.level = level
		}
	}
}

// WithShuffle byte-shuffles chunks ahead of compression.
func WithShuffle() DatasetOption {
	return func(o *datasetOptions) {
		o.shuffle = true
	}
}

// WithFletcher32 appends a checksum to every chunk.
func WithFletcher32() DatasetOption {
	return func(o *datasetOptions) {
		o.fletcher32 = true
	}
}

// WithAttrs writes attributes on the dataset.
func WithAttrs(attrs ...Attr) DatasetOption {
	return func(o *datasetOptions) {
		o.attrs = append(o.attrs, attrs...)
	}
}
