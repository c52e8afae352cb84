package hdf5

import (
	"fmt"
	"path"
	"strings"

	"github.com/robert-malhotra/xpcs2nexus/internal/message"
	"github.com/robert-malhotra/xpcs2nexus/internal/object"
)

// Attr is a name/value pair written as an HDF5 attribute.
// Value may be a scalar or slice of integers, floats or strings.
type Attr struct {
	Name  string
	Value interface{}
}

func (g *Group) checkWritable() error {
	switch {
	case g.file.closed:
		return ErrClosed
	case g.file.writer == nil:
		return ErrNotWritable
	}
	return nil
}

// checkChildName validates a new link name and rejects duplicates.
func (g *Group) checkChildName(name string) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("%w: link name %q", ErrInvalidPath, name)
	}
	for _, l := range g.links {
		if l.Name == name {
			return fmt.Errorf("%w: %s", ErrExists, g.childPath(name))
		}
	}
	return nil
}

// CreateGroup creates an empty subgroup. A second link with the same name
// fails with ErrExists.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.checkChildName(name); err != nil {
		return nil, err
	}

	addr, size, err := g.file.writeHeader(object.NewGroupHeader(nil, nil), object.MinGroupChunkSize)
	if err != nil {
		return nil, fmt.Errorf("writing group header: %w", err)
	}
	header, err := object.Read(g.file.reader, addr)
	if err != nil {
		return nil, fmt.Errorf("reading group header: %w", err)
	}

	sub := &Group{
		file:       g.file,
		path:       g.childPath(name),
		addr:       addr,
		header:     header,
		headerSize: size,
	}
	g.file.groups = append(g.file.groups, sub)
	if err := g.addLink(message.NewHardLink(name, addr)); err != nil {
		return nil, err
	}
	return sub, nil
}

// SetAttrs writes attributes on the group, replacing any with the same
// name. The header is rewritten once for the whole batch.
func (g *Group) SetAttrs(attrs ...Attr) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	if len(attrs) == 0 {
		return nil
	}

	for _, a := range attrs {
		msg, err := createAttributeMessage(a.Name, a.Value)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		replaced := false
		for i, existing := range g.attrs {
			if existing.Name == a.Name {
				g.attrs[i] = msg
				replaced = true
				break
			}
		}
		if !replaced {
			g.attrs = append(g.attrs, msg)
		}
	}
	return g.rewriteHeader()
}

// SetAttr writes a single attribute on the group.
func (g *Group) SetAttr(name string, value interface{}) error {
	return g.SetAttrs(Attr{Name: name, Value: value})
}

// Link creates a hard link called name to the object at the absolute path
// target, which must already exist in the same file.
func (g *Group) Link(name, target string) error {
	if err := g.checkChildName(name); err != nil {
		return err
	}
	if !strings.HasPrefix(target, "/") {
		return fmt.Errorf("%w: link target %q is not absolute", ErrInvalidPath, target)
	}
	target = path.Clean(target)

	// A link to the group itself or an ancestor would relocate forever.
	if target == "/" || strings.HasPrefix(g.path+"/", target+"/") {
		return fmt.Errorf("%w: hard link from %s to ancestor %s", ErrUnsupported, g.path, target)
	}

	f, addr, err := g.find(target, 0)
	if err != nil {
		return err
	}
	if f != g.file {
		return fmt.Errorf("%w: hard link to %s in another file", ErrUnsupported, target)
	}
	return g.addLink(message.NewHardLink(name, addr))
}

// SoftLink creates a link called name holding the path target. The target
// is resolved on every access and need not exist.
func (g *Group) SoftLink(name, target string) error {
	if err := g.checkChildName(name); err != nil {
		return err
	}
	return g.addLink(message.NewSoftLink(name, target))
}

// ExternalLink creates a link called name to the object at target in
// another HDF5 file. Relative file names resolve against the directory of
// the linking file.
func (g *Group) ExternalLink(name, file, target string) error {
	if err := g.checkChildName(name); err != nil {
		return err
	}
	return g.addLink(message.NewExternalLink(name, file, target))
}

func (g *Group) addLink(link *message.Link) error {
	g.links = append(g.links, link)
	return g.rewriteHeader()
}

// rewriteHeader writes the group's links and attributes into a new object
// header and points every referrer at it. Headers never grow in place.
func (g *Group) rewriteHeader() error {
	messages := object.NewGroupHeader(g.links, g.attrs)
	addr, size, err := g.file.writeHeader(messages, object.MinGroupChunkSize)
	if err != nil {
		return fmt.Errorf("writing header of %s: %w", g.path, err)
	}

	oldAddr, oldSize := g.addr, g.headerSize
	g.addr, g.headerSize = addr, size
	if g.header, err = object.Read(g.file.reader, addr); err != nil {
		return fmt.Errorf("re-reading header of %s: %w", g.path, err)
	}
	if err := g.file.relink(oldAddr, addr); err != nil {
		return err
	}

	// The old block is only reusable once nothing links to it.
	g.file.allocator.Free(oldAddr, oldSize)
	return nil
}
