package hdf5

import (
	"fmt"
	"path"
	"strings"

	"github.com/robert-malhotra/xpcs2nexus/internal/btree"
	"github.com/robert-malhotra/xpcs2nexus/internal/heap"
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
	"github.com/robert-malhotra/xpcs2nexus/internal/object"
)

// Group is an HDF5 group.
type Group struct {
	file   *File
	path   string
	addr   uint64
	header *object.Header

	// Kept for groups of a writable file. Every change rewrites the header
	// from these.
	links      []*message.Link
	attrs      []*message.Attribute
	headerSize uint64
}

// Name returns the last component of the group's path.
func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

func (g *Group) Path() string {
	return g.path
}

// Address returns the file offset of the group's object header. Hard links
// to the same group share one address.
func (g *Group) Address() uint64 {
	return g.addr
}

// OpenGroup opens a group by path. Paths starting with "/" are resolved
// from the root group.
func (g *Group) OpenGroup(p string) (*Group, error) {
	obj, err := g.open(p)
	if err != nil {
		return nil, err
	}
	sub, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, p)
	}
	return sub, nil
}

// OpenDataset opens a dataset by path. Paths starting with "/" are
// resolved from the root group.
func (g *Group) OpenDataset(p string) (*Dataset, error) {
	obj, err := g.open(p)
	if err != nil {
		return nil, err
	}
	ds, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDataset, p)
	}
	return ds, nil
}

// Members returns the link names in the group.
func (g *Group) Members() ([]string, error) {
	links, err := g.readLinks()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(links))
	for i, l := range links {
		names[i] = l.Name
	}
	return names, nil
}

// Attrs returns the attribute names in header order.
func (g *Group) Attrs() []string {
	var names []string
	for _, msg := range g.header.GetMessages(message.TypeAttribute) {
		names = append(names, msg.(*message.Attribute).Name)
	}
	return names
}

// Attr returns the named attribute, or nil.
func (g *Group) Attr(name string) *Attribute {
	for _, msg := range g.header.GetMessages(message.TypeAttribute) {
		if attr := msg.(*message.Attribute); attr.Name == name {
			return &Attribute{msg: attr, reader: g.file.reader}
		}
	}
	return nil
}

// childPath returns the absolute path of a direct child of g.
func (g *Group) childPath(name string) string {
	return path.Join(g.path, name)
}

func (g *Group) open(p string) (interface{}, error) {
	if g.file.closed {
		return nil, ErrClosed
	}
	f, addr, err := g.find(p, 0)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(p, "/") {
		p = g.childPath(p)
	}
	return f.openAt(addr, path.Clean(p))
}

// find follows the components of p below g and returns the file and
// address of the object p names. depth counts the soft and external links
// already followed.
func (g *Group) find(p string, depth int) (*File, uint64, error) {
	cur := g
	if strings.HasPrefix(p, "/") {
		cur = g.file.root
	}
	var names []string
	for _, name := range strings.Split(p, "/") {
		if name != "" && name != "." {
			names = append(names, name)
		}
	}

	f, addr := cur.file, cur.addr
	for i, name := range names {
		if i > 0 {
			obj, err := f.openAt(addr, cur.childPath(names[i-1]))
			if err != nil {
				return nil, 0, err
			}
			next, ok := obj.(*Group)
			if !ok {
				return nil, 0, fmt.Errorf("%w: %s is not a group", ErrInvalidPath, cur.childPath(names[i-1]))
			}
			cur = next
		}
		var err error
		if f, addr, err = cur.lookup(name, depth); err != nil {
			return nil, 0, err
		}
	}
	return f, addr, nil
}

// lookup follows the link called name.
func (g *Group) lookup(name string, depth int) (*File, uint64, error) {
	links, err := g.readLinks()
	if err != nil {
		return nil, 0, err
	}
	for _, l := range links {
		if l.Name != name {
			continue
		}
		if l.IsHard() {
			return g.file, l.ObjectAddress, nil
		}
		if depth >= MaxLinkDepth {
			return nil, 0, fmt.Errorf("%w: %s", ErrLinkDepth, g.childPath(name))
		}
		if l.IsSoft() {
			return g.file.root.find(l.SoftLinkValue, depth+1)
		}
		ext, err := g.file.openExternal(l.ExternalFile)
		if err != nil {
			return nil, 0, err
		}
		return ext.root.find(l.ExternalPath, depth+1)
	}
	return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, g.childPath(name))
}

// readLinks returns the links of g. Newer groups keep link messages in
// the header, older ones a symbol table of B-tree and local heap.
func (g *Group) readLinks() ([]*message.Link, error) {
	if g.links != nil {
		return g.links, nil
	}
	if info := g.header.LinkInfo(); info != nil && info.Dense() {
		return nil, fmt.Errorf("%w: dense link storage in %s", ErrUnsupported, g.path)
	}

	var links []*message.Link
	for _, msg := range g.header.GetMessages(message.TypeLink) {
		links = append(links, msg.(*message.Link))
	}

	table, _ := g.header.GetMessage(message.TypeSymbolTable).(*message.SymbolTable)
	sb := g.file.superblock
	if table == nil && g.path == "/" && sb.RootGroupBTreeAddress != 0 {
		// Root groups may only be described by the superblock scratch pad.
		table = &message.SymbolTable{
			BTreeAddress:     sb.RootGroupBTreeAddress,
			LocalHeapAddress: sb.RootGroupLocalHeapAddress,
		}
	}
	if table == nil {
		return links, nil
	}

	names, err := heap.ReadLocalHeap(g.file.reader, table.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("%s: reading local heap: %w", g.path, err)
	}
	entries, err := btree.ReadGroupEntries(g.file.reader, table.BTreeAddress, names)
	if err != nil {
		return nil, fmt.Errorf("%s: reading symbol table: %w", g.path, err)
	}
	for _, e := range entries {
		if e.LinkType == btree.SoftLink {
			links = append(links, message.NewSoftLink(e.Name, e.SoftLinkValue))
		} else {
			links = append(links, message.NewHardLink(e.Name, e.ObjectAddress))
		}
	}
	return links, nil
}
