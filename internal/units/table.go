package units

import (
	_ "embed"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed units.yaml
var defaultTable []byte

// table is the YAML form of a registry.
type table struct {
	Version    int                  `yaml:"version"`
	Base       []string             `yaml:"base"`
	Sentinels  []string             `yaml:"sentinels"`
	Prefixes   map[string]float64   `yaml:"prefixes"`
	Units      map[string]unitEntry `yaml:"units"`
	Dimensions map[string]dimEntry  `yaml:"dimensions"`
}

type unitEntry struct {
	Dims    map[string]int `yaml:"dims"`
	Scale   float64        `yaml:"scale"`
	Prefix  bool           `yaml:"prefix"`
	Aliases []string       `yaml:"aliases"`
}

type dimEntry struct {
	Dims      map[string]int `yaml:"dims"`
	Canonical string         `yaml:"canonical"`
	Arbitrary bool           `yaml:"arbitrary"`
}

func decodeTable(r io.Reader) (*table, error) {
	var t table
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		if err == io.EOF {
			return &t, nil
		}
		return nil, fmt.Errorf("decoding unit table: %w", err)
	}
	return &t, nil
}

// merge overlays o onto t. Entries in o replace entries of the same name.
func (t *table) merge(o *table) {
	if o.Version != 0 {
		t.Version = o.Version
	}
	if len(o.Base) > 0 {
		t.Base = o.Base
	}
	t.Sentinels = append(t.Sentinels, o.Sentinels...)
	if t.Prefixes == nil {
		t.Prefixes = make(map[string]float64)
	}
	for k, v := range o.Prefixes {
		t.Prefixes[k] = v
	}
	if t.Units == nil {
		t.Units = make(map[string]unitEntry)
	}
	for k, v := range o.Units {
		t.Units[k] = v
	}
	if t.Dimensions == nil {
		t.Dimensions = make(map[string]dimEntry)
	}
	for k, v := range o.Dimensions {
		t.Dimensions[k] = v
	}
}

// build validates the table and turns it into registry lookups.
func (t *table) build(r *Registry) error {
	base := make(map[string]bool, len(t.Base))
	for _, b := range t.Base {
		base[b] = true
	}
	checkDims := func(owner string, dims map[string]int) (Vector, error) {
		v := Vector{}
		for name, exp := range dims {
			if !base[name] {
				return nil, fmt.Errorf("%s: unknown base dimension %q", owner, name)
			}
			if exp != 0 {
				v[name] = exp
			}
		}
		return v, nil
	}

	r.sentinels = make(map[string]bool, len(t.Sentinels))
	for _, s := range t.Sentinels {
		r.sentinels[s] = true
	}

	r.prefixes = make([]prefix, 0, len(t.Prefixes))
	for sym, scale := range t.Prefixes {
		if sym == "" || scale <= 0 {
			return fmt.Errorf("invalid prefix %q = %g", sym, scale)
		}
		r.prefixes = append(r.prefixes, prefix{symbol: sym, scale: scale})
	}
	// Longest prefix first so "da" wins over "d".
	sort.Slice(r.prefixes, func(i, j int) bool {
		if len(r.prefixes[i].symbol) != len(r.prefixes[j].symbol) {
			return len(r.prefixes[i].symbol) > len(r.prefixes[j].symbol)
		}
		return r.prefixes[i].symbol < r.prefixes[j].symbol
	})

	r.units = make(map[string]*unitDef)
	r.symbols = r.symbols[:0]
	for sym, e := range t.Units {
		dims, err := checkDims("unit "+sym, e.Dims)
		if err != nil {
			return err
		}
		scale := e.Scale
		if scale == 0 {
			scale = 1
		}
		def := &unitDef{symbol: sym, aliases: e.Aliases, scale: scale, dims: dims, prefixable: e.Prefix}
		for _, name := range append([]string{sym}, e.Aliases...) {
			if other, ok := r.units[name]; ok && other.symbol != sym {
				return fmt.Errorf("unit name %q defined by both %q and %q", name, other.symbol, sym)
			}
			r.units[name] = def
		}
		r.symbols = append(r.symbols, sym)
	}
	sort.Strings(r.symbols)

	r.dimensions = make(map[Dimension]*dimensionDef, len(t.Dimensions))
	for name, e := range t.Dimensions {
		def := &dimensionDef{name: Dimension(name), canonical: e.Canonical, arbitrary: e.Arbitrary}
		if !e.Arbitrary {
			dims, err := checkDims("dimension "+name, e.Dims)
			if err != nil {
				return err
			}
			def.dims = dims
			def.canonicalScale = 1
			if e.Canonical != "" {
				u, err := r.Parse(e.Canonical)
				if err != nil {
					return fmt.Errorf("dimension %s: canonical unit: %w", name, err)
				}
				if !u.Dims.Equal(dims) {
					return fmt.Errorf("dimension %s: canonical unit %q has dimension %s", name, e.Canonical, u.Dims)
				}
				def.canonicalScale = u.Scale
			}
		}
		r.dimensions[def.name] = def
	}
	r.version = t.Version
	return nil
}
