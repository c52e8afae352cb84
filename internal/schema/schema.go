// Package schema holds the versioned NeXus layout the converter writes:
// which groups each section creates, the fields they hold with their output
// names and expected dimensions, and the hard links between them.
//
// The layout is data, not code. A default table is embedded; Load reads a
// replacement so the layout can change without touching the writer.
package schema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/xpcs2nexus/internal/units"
)

//go:embed schema.yaml
var defaultSchema []byte

// ErrInvalid is returned for a schema table that fails validation.
var ErrInvalid = errors.New("invalid schema")

// Naming selects between the two families of output field names.
type Naming string

const (
	// NamingLegacy uses the short names of the facility files
	// (tau, twotime, dqmap, frameSum, ...).
	NamingLegacy Naming = "legacy"
	// NamingDescriptive uses spelled-out names
	// (delay_difference, two_time_corr_func, dynamic_roi_map, ...).
	NamingDescriptive Naming = "descriptive"
)

// ParseNaming converts a flag or table value to a Naming.
func ParseNaming(s string) (Naming, error) {
	switch n := Naming(strings.ToLower(strings.TrimSpace(s))); n {
	case NamingLegacy, NamingDescriptive:
		return n, nil
	}
	return "", fmt.Errorf("unknown naming %q (want %s or %s)", s, NamingLegacy, NamingDescriptive)
}

// Section names used by the creator.
const (
	SectionEntry      = "entry"
	SectionInstrument = "instrument"
	SectionSample     = "sample"
	SectionXPCS       = "xpcs"
	SectionSAXS1D     = "saxs_1d"
	SectionSAXS2D     = "saxs_2d"
)

// Schema is a complete layout table.
type Schema struct {
	Version       string    `yaml:"version"`
	DefaultNaming Naming    `yaml:"default_naming"`
	Sections      []Section `yaml:"sections"`
}

// Section is the layout written by one creator call.
type Section struct {
	Name   string   `yaml:"name"`
	Groups []Group  `yaml:"groups"`
	Fields []Field  `yaml:"fields"`
	Links  []Link   `yaml:"links"`
	Signal []string `yaml:"signal"`
}

// Group is a NeXus group relative to the entry.
type Group struct {
	Path  string            `yaml:"path"`
	Class string            `yaml:"class"`
	Attrs map[string]string `yaml:"attrs"`
}

// Field describes one dataset.
type Field struct {
	Key         string          `yaml:"key"`
	Name        string          `yaml:"name"`
	Legacy      string          `yaml:"legacy"`
	Descriptive string          `yaml:"descriptive"`
	Group       string          `yaml:"group"`
	Dimension   units.Dimension `yaml:"dimension"`
	Compress    bool            `yaml:"compress"`
	Value       string          `yaml:"value"`
}

// OutputName returns the dataset name under naming n.
func (f Field) OutputName(n Naming) string {
	switch {
	case n == NamingDescriptive && f.Descriptive != "":
		return f.Descriptive
	case n == NamingLegacy && f.Legacy != "":
		return f.Legacy
	case f.Name != "":
		return f.Name
	}
	return f.Key
}

// Constant reports whether the field holds a fixed value.
func (f Field) Constant() bool {
	return f.Value != ""
}

// Link is a hard link from a new path to an existing object, both relative
// to the entry.
type Link struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Default returns the embedded schema.
func Default() (*Schema, error) {
	return Load(bytes.NewReader(defaultSchema))
}

// Load reads and validates a schema table.
func Load(r io.Reader) (*Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Section returns the named section.
func (s *Schema) Section(name string) (*Section, error) {
	for i := range s.Sections {
		if s.Sections[i].Name == name {
			return &s.Sections[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no section %q", ErrInvalid, name)
}

// Field returns the field with the given key.
func (sec *Section) Field(key string) (Field, bool) {
	for _, f := range sec.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Group returns the declared group at the entry-relative path p.
func (sec *Section) Group(p string) (Group, bool) {
	for _, g := range sec.Groups {
		if g.Path == p {
			return g, true
		}
	}
	return Group{}, false
}

// Root returns the group every call of this section creates.
func (sec *Section) Root() Group {
	return sec.Groups[0]
}

// FieldPath returns the entry-relative path of a field under naming n.
func FieldPath(f Field, n Naming) string {
	return Join(f.Group, f.OutputName(n))
}

// Join joins entry-relative path elements, treating "" as the entry.
func Join(elem ...string) string {
	return strings.TrimPrefix(path.Join(elem...), "/")
}

func (s *Schema) validate() error {
	if s.Version == "" {
		return fmt.Errorf("%w: missing version", ErrInvalid)
	}
	if s.DefaultNaming == "" {
		s.DefaultNaming = NamingLegacy
	}
	if _, err := ParseNaming(string(s.DefaultNaming)); err != nil {
		return fmt.Errorf("%w: default_naming: %v", ErrInvalid, err)
	}

	seen := map[string]bool{}
	for _, sec := range s.Sections {
		if sec.Name == "" {
			return fmt.Errorf("%w: section without a name", ErrInvalid)
		}
		if seen[sec.Name] {
			return fmt.Errorf("%w: duplicate section %q", ErrInvalid, sec.Name)
		}
		seen[sec.Name] = true
		if err := sec.validate(); err != nil {
			return fmt.Errorf("%w: section %s: %v", ErrInvalid, sec.Name, err)
		}
	}

	for _, name := range []string{SectionEntry, SectionInstrument, SectionSample, SectionXPCS, SectionSAXS1D, SectionSAXS2D} {
		if !seen[name] {
			return fmt.Errorf("%w: missing section %q", ErrInvalid, name)
		}
	}
	return nil
}

func (sec *Section) validate() error {
	if len(sec.Groups) == 0 {
		return errors.New("no groups")
	}

	groups := map[string]bool{}
	for _, g := range sec.Groups {
		if g.Class == "" {
			return fmt.Errorf("group %q has no class", g.Path)
		}
		if groups[g.Path] {
			return fmt.Errorf("duplicate group %q", g.Path)
		}
		if g.Path != sec.Root().Path && !strings.HasPrefix(g.Path, sec.Root().Path+"/") && sec.Root().Path != "" {
			return fmt.Errorf("group %q is outside %q", g.Path, sec.Root().Path)
		}
		if parent := path.Dir(g.Path); g.Path != sec.Root().Path && parent != "." && !groups[parent] {
			return fmt.Errorf("group %q listed before its parent", g.Path)
		}
		groups[g.Path] = true
	}

	keys := map[string]bool{}
	names := map[string]bool{}
	for _, f := range sec.Fields {
		if f.Key == "" {
			return errors.New("field without a key")
		}
		if keys[f.Key] {
			return fmt.Errorf("duplicate field %q", f.Key)
		}
		keys[f.Key] = true
		if !groups[f.Group] {
			return fmt.Errorf("field %q in undeclared group %q", f.Key, f.Group)
		}
		for _, n := range []Naming{NamingLegacy, NamingDescriptive} {
			p := string(n) + ":" + FieldPath(f, n)
			if names[p] {
				return fmt.Errorf("field %q clashes with another field under %s naming", f.Key, n)
			}
			names[p] = true
		}
	}

	for _, l := range sec.Links {
		if l.From == "" || l.To == "" {
			return fmt.Errorf("incomplete link %+v", l)
		}
		if !groups[Join(path.Dir(l.From))] && path.Dir(l.From) != "." {
			return fmt.Errorf("link %s: parent group not in section", l.From)
		}
	}

	for _, key := range sec.Signal {
		if !keys[key] {
			return fmt.Errorf("signal field %q not declared", key)
		}
	}
	return nil
}
