// Package units validates unit strings against the physical dimension a
// field is expected to carry.
//
// A Registry is built from a YAML table (an embedded default plus optional
// overrides). Validation only checks dimensional compatibility; values are
// never rescaled. A Registry is immutable once built, so the same
// (dimension, unit) pair always yields the same Decision.
package units

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
)

var (
	// ErrUnparsable is returned when a unit expression cannot be parsed.
	ErrUnparsable = errors.New("unparsable unit")

	// ErrUnknownDimension is returned for an expected dimension the registry
	// does not define.
	ErrUnknownDimension = errors.New("unknown dimension")
)

// Dimension names a physical dimension a field is expected to have.
type Dimension string

// Dimensions defined by the embedded table.
const (
	Length           Dimension = "length"
	Time             Dimension = "time"
	Energy           Dimension = "energy"
	ReciprocalLength Dimension = "reciprocal_length"
	Pixel            Dimension = "pixel"
	Temperature      Dimension = "temperature"
	Current          Dimension = "current"
	Angle            Dimension = "angle"
	Dimensionless    Dimension = "dimensionless"
	Arbitrary        Dimension = "arbitrary"
)

// Decision is the outcome of validating one unit string.
type Decision struct {
	// Accepted means the unit may be written as the units attribute.
	Accepted bool
	// NeedsConversion is set for accepted units that differ in scale from
	// the dimension's canonical unit. It is informational only.
	NeedsConversion bool
	// Sentinel marks the arbitrary-unit spellings ("au", "a.u.", "a.u").
	Sentinel bool
	// Reason explains a rejection or a notable acceptance.
	Reason string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for sentinel and mismatch messages.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

type prefix struct {
	symbol string
	scale  float64
}

type unitDef struct {
	symbol     string
	aliases    []string
	scale      float64
	dims       Vector
	prefixable bool
}

type dimensionDef struct {
	name           Dimension
	dims           Vector
	canonical      string
	canonicalScale float64
	arbitrary      bool
}

// Registry resolves unit expressions and validates them against expected
// dimensions.
type Registry struct {
	version    int
	sentinels  map[string]bool
	prefixes   []prefix
	units      map[string]*unitDef
	symbols    []string
	dimensions map[Dimension]*dimensionDef
	logger     *slog.Logger
}

// New returns a registry built from the embedded unit table.
func New(opts ...Option) (*Registry, error) {
	return Load(nil, opts...)
}

// Load returns a registry built from the embedded unit table with the table
// read from overrides laid on top. A nil reader uses the embedded table alone.
func Load(overrides io.Reader, opts ...Option) (*Registry, error) {
	t, err := decodeTable(bytes.NewReader(defaultTable))
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		o, err := decodeTable(overrides)
		if err != nil {
			return nil, err
		}
		t.merge(o)
	}

	r := &Registry{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if err := t.build(r); err != nil {
		return nil, fmt.Errorf("unit table: %w", err)
	}
	return r, nil
}

// Version returns the version of the unit table.
func (r *Registry) Version() int {
	return r.version
}

// IsSentinel reports whether unit is one of the arbitrary-unit spellings.
func (r *Registry) IsSentinel(unit string) bool {
	return r.sentinels[strings.TrimSpace(unit)]
}

// Validate checks unit against the expected dimension for field. An empty
// unit is accepted with nothing to write; an empty expected dimension
// accepts any parsable unit.
func (r *Registry) Validate(field string, expected Dimension, unit string) Decision {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return Decision{Accepted: true, Reason: "no units supplied"}
	}
	if r.sentinels[unit] {
		r.logger.Info("arbitrary units accepted", "field", field, "units", unit)
		return Decision{Accepted: true, Sentinel: true, Reason: "arbitrary units"}
	}

	u, err := r.Parse(unit)
	if err != nil {
		return r.reject(field, expected, unit, err.Error())
	}
	if expected == "" {
		return Decision{Accepted: true}
	}

	dim, ok := r.dimensions[expected]
	if !ok {
		return r.reject(field, expected, unit, fmt.Sprintf("%v: %s", ErrUnknownDimension, expected))
	}

	if dim.arbitrary {
		if len(u.Dims) == 0 || (len(u.Dims) == 1 && u.Dims["count"] != 0) {
			return Decision{Accepted: true}
		}
		return r.reject(field, expected, unit, fmt.Sprintf("%s has dimension %s", unit, u.Dims))
	}
	if !u.Dims.Equal(dim.dims) {
		return r.reject(field, expected, unit, fmt.Sprintf("%s has dimension %s", unit, u.Dims))
	}

	d := Decision{Accepted: true}
	if !sameScale(u.Scale, dim.canonicalScale) {
		d.NeedsConversion = true
		d.Reason = fmt.Sprintf("differs from canonical %s", dim.canonical)
	}
	return d
}

func (r *Registry) reject(field string, expected Dimension, unit, reason string) Decision {
	r.logger.Warn("units rejected, writing field without units",
		"field", field, "units", unit, "expected", string(expected), "reason", reason)
	return Decision{Reason: reason}
}

func sameScale(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

// Dimensions returns the names of the expected dimensions, sorted.
func (r *Registry) Dimensions() []Dimension {
	out := make([]Dimension, 0, len(r.dimensions))
	for d := range r.dimensions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Canonical returns the canonical unit of an expected dimension.
func (r *Registry) Canonical(d Dimension) (string, error) {
	dim, ok := r.dimensions[d]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDimension, d)
	}
	return dim.canonical, nil
}

// Description summarises one unit symbol.
type Description struct {
	Symbol     string
	Aliases    []string
	Dims       Vector
	Scale      float64
	Prefixable bool
}

// Describe lists the known unit symbols in name order.
func (r *Registry) Describe() []Description {
	out := make([]Description, 0, len(r.symbols))
	for _, sym := range r.symbols {
		def := r.units[sym]
		out = append(out, Description{
			Symbol:     def.symbol,
			Aliases:    def.aliases,
			Dims:       def.dims,
			Scale:      def.scale,
			Prefixable: def.prefixable,
		})
	}
	return out
}
