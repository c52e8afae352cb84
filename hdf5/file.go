package hdf5

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-malhotra/xpcs2nexus/internal/alloc"
	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
	"github.com/robert-malhotra/xpcs2nexus/internal/object"
	"github.com/robert-malhotra/xpcs2nexus/internal/superblock"
)

// CompatibleVersion is the oldest HDF5 library release that can read files
// written by Create (v2 superblock, fixed-array chunk indexes).
const CompatibleVersion = "1.10.0"

// File is an open HDF5 file. Files from Open are read-only. Files from
// Create accept new groups, datasets and attributes until Close.
type File struct {
	path       string
	file       *os.File
	reader     *binpkg.Reader
	superblock *superblock.Superblock
	root       *Group
	closed     bool
	external   map[string]*File

	// Nil for read-only files.
	writer    *binpkg.Writer
	allocator *alloc.Allocator
	groups    []*Group
}

// Open opens an HDF5 file for reading.
func Open(path string) (*File, error) {
	osFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	sb, err := superblock.Read(osFile)
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	f := &File{
		path:       path,
		file:       osFile,
		reader:     binpkg.NewReader(osFile, sb.ReaderConfig()),
		superblock: sb,
	}
	header, err := object.Read(f.reader, sb.RootGroupAddress)
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	f.root = &Group{file: f, path: "/", addr: sb.RootGroupAddress, header: header}
	return f, nil
}

// Create creates an HDF5 file at path, truncating any existing file. The
// file uses a version 2 superblock and version 2 object headers.
func Create(path string, opts ...FileOption) (*File, error) {
	options := defaultFileOptions()
	for _, opt := range opts {
		opt(options)
	}

	osFile, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*File, error) {
		osFile.Close()
		os.Remove(path)
		return nil, err
	}

	cfg := binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: options.offsetSize,
		LengthSize: options.lengthSize,
	}
	sb := superblock.NewSuperblock()
	sb.OffsetSize = uint8(options.offsetSize)
	sb.LengthSize = uint8(options.lengthSize)

	f := &File{
		path:       path,
		file:       osFile,
		reader:     binpkg.NewReader(osFile, cfg),
		superblock: sb,
		writer:     binpkg.NewWriter(osFile, cfg),
		allocator:  alloc.New(uint64(sb.Size())),
	}

	// The root group header lands right after the superblock.
	addr, size, err := f.writeHeader(object.NewGroupHeader(nil, nil), object.MinGroupChunkSize)
	if err != nil {
		return fail(fmt.Errorf("writing root group: %w", err))
	}
	sb.RootGroupAddress = addr
	if err := f.Flush(); err != nil {
		return fail(err)
	}

	header, err := object.Read(f.reader, addr)
	if err != nil {
		return fail(err)
	}
	f.root = &Group{file: f, path: "/", addr: addr, header: header, headerSize: size}
	f.groups = append(f.groups, f.root)
	return f, nil
}

// Close flushes a writable file and closes it along with any files opened
// through external links.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	for _, ext := range f.external {
		ext.Close()
	}
	f.external = nil

	if f.writer != nil {
		if err := f.Flush(); err != nil {
			f.file.Close()
			return err
		}
	}
	return f.file.Close()
}

// Flush writes the superblock of a writable file and syncs it to disk.
func (f *File) Flush() error {
	if f.writer == nil {
		return nil
	}
	f.superblock.EOFAddress = f.allocator.EOFAddr()
	if _, err := f.superblock.Write(f.writer.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return f.file.Sync()
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

func (f *File) Path() string {
	return f.path
}

// Version returns the superblock version.
func (f *File) Version() int {
	return int(f.superblock.Version)
}

// Writable reports whether the file was created for writing.
func (f *File) Writable() bool {
	return f.writer != nil
}

// OpenGroup opens a group by absolute path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

// OpenDataset opens a dataset by absolute path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

// openAt wraps the object header at addr as a *Group or a *Dataset.
// Objects with a dataspace are datasets. Groups of a writable file come
// back as the handle that tracks their pending links.
func (f *File) openAt(addr uint64, p string) (interface{}, error) {
	for _, g := range f.groups {
		if g.addr == addr {
			return g, nil
		}
	}

	header, err := object.Read(f.reader, addr)
	if err != nil {
		return nil, fmt.Errorf("%s: reading object header: %w", p, err)
	}
	if header.Dataspace() == nil {
		return &Group{file: f, path: p, addr: addr, header: header}, nil
	}
	ds, err := newDataset(f, p, header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	ds.addr = addr
	return ds, nil
}

// openExternal opens the target file of an external link. Names are
// relative to the directory of f. Opened files are cached until f closes.
func (f *File) openExternal(name string) (*File, error) {
	if ext, ok := f.external[name]; ok {
		return ext, nil
	}
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(f.path), name)
	}
	ext, err := Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening external file %q: %w", name, err)
	}
	if f.external == nil {
		f.external = make(map[string]*File)
	}
	f.external[name] = ext
	return ext, nil
}

// writeHeader stores an object header holding messages in newly allocated
// space and returns its address and size.
func (f *File) writeHeader(messages []message.Message, minChunk int) (uint64, uint64, error) {
	size, err := object.HeaderSize(f.writer, messages, minChunk)
	if err != nil {
		return 0, 0, err
	}
	addr := f.allocator.Alloc(uint64(size))
	if _, err := object.WriteHeader(f.writer.At(int64(addr)), messages, minChunk); err != nil {
		return 0, 0, err
	}
	return addr, uint64(size), nil
}

// relink points every hard link to oldAddr at newAddr and rewrites the
// groups holding them, which relocates those groups in turn.
func (f *File) relink(oldAddr, newAddr uint64) error {
	if f.superblock.RootGroupAddress == oldAddr {
		f.superblock.RootGroupAddress = newAddr
	}
	for _, g := range f.groups {
		changed := false
		for _, l := range g.links {
			if l.IsHard() && l.ObjectAddress == oldAddr {
				l.ObjectAddress = newAddr
				changed = true
			}
		}
		if changed {
			if err := g.rewriteHeader(); err != nil {
				return fmt.Errorf("relocating %s: %w", g.path, err)
			}
		}
	}
	return nil
}
