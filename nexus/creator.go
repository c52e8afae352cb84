package nexus

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"time"

	"github.com/robert-malhotra/xpcs2nexus/hdf5"
	"github.com/robert-malhotra/xpcs2nexus/internal/schema"
	"github.com/robert-malhotra/xpcs2nexus/internal/units"
)

// NeXusVersion is written as the root NeXus_version attribute.
const NeXusVersion = "v2024.02"

type state int

const (
	stateUninitialized state = iota
	stateFileOpen
	stateEntryOpen
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateFileOpen:
		return "file open"
	case stateEntryOpen:
		return "entry open"
	case stateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Creator writes one NeXus document. Sections are appended in order after
// an entry has been created; nothing is reopened once its call returns.
// A Creator is not safe for concurrent use.
type Creator struct {
	schema   *schema.Schema
	naming   schema.Naming
	logger   *slog.Logger
	fields   *FieldWriter
	groups   *GroupBuilder
	creator  string
	fileName string

	state state
	file  *hdf5.File
	path  string

	// Per entry. nodes maps entry-relative group paths ("" is the entry) to
	// their handles; written holds entry-relative dataset and link paths.
	entry     *hdf5.Group
	entryName string
	nodes     map[string]*hdf5.Group
	written   map[string]bool
	claimed   bool
}

// New returns a Creator with no file. Call InitFile before any section.
func New(opts ...Option) (*Creator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.schema == nil {
		s, err := schema.Default()
		if err != nil {
			return nil, err
		}
		o.schema = s
	}
	if o.units == nil {
		r, err := units.New(units.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		o.units = r
	}
	if o.naming == "" {
		o.naming = o.schema.DefaultNaming
	}
	naming, err := schema.ParseNaming(string(o.naming))
	if err != nil {
		return nil, err
	}

	return &Creator{
		schema:   o.schema,
		naming:   naming,
		logger:   o.logger,
		fields:   newFieldWriter(o),
		groups:   &GroupBuilder{logger: o.logger},
		creator:  o.creator,
		fileName: o.fileName,
	}, nil
}

// Create returns a Creator writing to a new file at path.
func Create(path string, opts ...Option) (*Creator, error) {
	c, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := c.InitFile(path); err != nil {
		return nil, err
	}
	return c, nil
}

// InitFile creates the output file, truncating an existing one, and writes
// the root attributes.
func (c *Creator) InitFile(filePath string) error {
	switch c.state {
	case stateClosed:
		return ErrClosed
	case stateUninitialized:
	default:
		return fmt.Errorf("%w: file already initialized (%s)", ErrOutOfOrder, c.state)
	}

	f, err := hdf5.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPathUnwritable, filePath, err)
	}

	fileName := c.fileName
	if fileName == "" {
		fileName = filePath
	}
	err = f.Root().SetAttrs(
		hdf5.Attr{Name: "file_name", Value: fileName},
		hdf5.Attr{Name: "file_time", Value: time.Now().Format(time.RFC3339)},
		hdf5.Attr{Name: "creator", Value: c.creator},
		hdf5.Attr{Name: "format_version", Value: c.schema.Version},
		hdf5.Attr{Name: "NeXus_version", Value: NeXusVersion},
		hdf5.Attr{Name: "HDF5_Version", Value: hdf5.CompatibleVersion},
	)
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %w", ErrPathUnwritable, filePath, err)
	}

	c.file = f
	c.path = filePath
	c.state = stateFileOpen
	c.logger.Info("output file created", "path", filePath, "schema", c.schema.Version, "naming", c.naming)
	return nil
}

// Naming returns the field naming in use.
func (c *Creator) Naming() schema.Naming {
	return c.naming
}

// Close flushes and closes the document. Every later call returns ErrClosed.
func (c *Creator) Close() error {
	if c.state == stateClosed {
		return ErrClosed
	}
	c.state = stateClosed
	if c.file == nil {
		return nil
	}
	if err := c.file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", c.path, err)
	}
	c.logger.Info("output file closed", "path", c.path)
	return nil
}

// requireEntry checks that a section may be written now.
func (c *Creator) requireEntry(section string) error {
	switch c.state {
	case stateEntryOpen:
		return nil
	case stateClosed:
		return ErrClosed
	}
	return fmt.Errorf("%w: %s section with %s", ErrOutOfOrder, section, c.state)
}

// abs returns the absolute path of an entry-relative path.
func (c *Creator) abs(rel string) string {
	return path.Join("/", c.entryName, rel)
}

func (c *Creator) exists(rel string) bool {
	if c.written[rel] {
		return true
	}
	_, ok := c.nodes[rel]
	return ok
}

// writeSection writes the fields and links of one schema section and
// returns the entry-relative paths of the fields written, by field key.
func (c *Creator) writeSection(name string, values map[string]*Quantity, streams map[string]*Stream) (map[string]string, error) {
	sec, err := c.schema.Section(name)
	if err != nil {
		return nil, err
	}

	root := sec.Root()
	if _, ok := c.nodes[root.Path]; ok && root.Path != "" {
		return nil, fmt.Errorf("%w: %s: %w", ErrDuplicateGroup, c.abs(root.Path), hdf5.ErrExists)
	}
	if _, err := c.ensureGroup(sec, root.Path); err != nil {
		return nil, err
	}

	written := make(map[string]string)
	for _, f := range sec.Fields {
		q := values[f.Key]
		if f.Constant() {
			q = Text(f.Value)
		}
		stream := streams[f.Key]
		if (q == nil || q.Value == nil) && stream == nil {
			c.logger.Debug("field absent", "section", name, "field", f.Key)
			continue
		}

		rel := schema.FieldPath(f, c.naming)
		parent, err := c.ensureGroup(sec, f.Group)
		if err != nil {
			return nil, err
		}

		var ds *hdf5.Dataset
		if q != nil && q.Value != nil {
			ds, err = c.fields.Write(parent, f, path.Base(rel), q)
		} else {
			ds, err = c.fields.WriteSlabs(parent, f, path.Base(rel), stream.Source, stream.Units)
		}
		if err != nil {
			return nil, err
		}
		if ds != nil {
			written[f.Key] = rel
			c.written[rel] = true
		}
	}

	for _, l := range sec.Links {
		parent, ok := c.nodes[parentOf(l.From)]
		if !ok || !c.exists(l.To) {
			c.logger.Debug("link skipped", "link", c.abs(l.From), "target", c.abs(l.To))
			continue
		}
		if err := parent.Link(path.Base(l.From), c.abs(l.To)); err != nil {
			return nil, fmt.Errorf("link %s: %w", c.abs(l.From), err)
		}
		c.written[l.From] = true
	}

	if len(sec.Signal) > 0 {
		if err := c.plot(sec, written); err != nil {
			return nil, err
		}
	}

	c.logger.Info("section written", "section", name, "entry", c.entryName, "fields", len(written))
	return written, nil
}

// ensureGroup returns the group at rel, creating it and any missing
// ancestors declared by sec.
func (c *Creator) ensureGroup(sec *schema.Section, rel string) (*hdf5.Group, error) {
	if g, ok := c.nodes[rel]; ok {
		return g, nil
	}
	def, ok := sec.Group(rel)
	if !ok {
		return nil, fmt.Errorf("section %s: group %s is not declared", sec.Name, c.abs(rel))
	}

	parent, err := c.ensureGroup(sec, parentOf(rel))
	if err != nil {
		return nil, err
	}

	g, err := c.groups.MakeGroup(parent, path.Base(rel), def.Class, groupAttrs(def.Attrs)...)
	if err != nil {
		return nil, err
	}
	c.nodes[rel] = g
	return g, nil
}

// plot marks the first written signal candidate of sec and points the
// default attributes from the entry down to its group.
func (c *Creator) plot(sec *schema.Section, written map[string]string) error {
	for _, key := range sec.Signal {
		rel, ok := written[key]
		if !ok {
			continue
		}

		dataRel := parentOf(rel)
		if err := c.nodes[dataRel].SetAttr("signal", path.Base(rel)); err != nil {
			return err
		}
		for p := dataRel; p != sec.Root().Path && p != ""; p = parentOf(p) {
			if err := c.nodes[parentOf(p)].SetAttr("default", path.Base(p)); err != nil {
				return err
			}
		}
		if !c.claimed && sec.Root().Path != "" {
			if err := c.entry.SetAttr("default", sec.Root().Path); err != nil {
				return err
			}
			c.claimed = true
		}
		c.logger.Debug("signal selected", "section", sec.Name, "signal", c.abs(rel))
		return nil
	}

	c.logger.Warn("no plottable signal written", "section", sec.Name, "entry", c.entryName, "candidates", sec.Signal)
	return nil
}

// parentOf returns the entry-relative parent of rel, "" for the entry.
func parentOf(rel string) string {
	if d := path.Dir(rel); d != "." {
		return d
	}
	return ""
}

func groupAttrs(m map[string]string) []hdf5.Attr {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	attrs := make([]hdf5.Attr, 0, len(names))
	for _, k := range names {
		attrs = append(attrs, hdf5.Attr{Name: k, Value: m[k]})
	}
	return attrs
}
