package nexus

import (
	"log/slog"

	"github.com/robert-malhotra/xpcs2nexus/internal/schema"
	"github.com/robert-malhotra/xpcs2nexus/internal/units"
)

// Default tuning for compressed fields.
const (
	DefaultCompression = 4
	DefaultThreshold   = 4 << 10
	chunkTarget        = 1 << 20
)

// Option configures a Creator.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	naming      schema.Naming
	schema      *schema.Schema
	units       *units.Registry
	compression int
	threshold   int
	creator     string
	fileName    string
}

func defaultOptions() *options {
	return &options{
		logger:      slog.Default(),
		compression: DefaultCompression,
		threshold:   DefaultThreshold,
		creator:     "xpcs2nexus",
	}
}

// WithLogger sets the logger for field, section and unit messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithNaming selects legacy or descriptive field names. Without it the
// schema's default_naming is used.
func WithNaming(n schema.Naming) Option {
	return func(o *options) {
		o.naming = n
	}
}

// WithSchema replaces the embedded layout table.
func WithSchema(s *schema.Schema) Option {
	return func(o *options) {
		o.schema = s
	}
}

// WithUnits replaces the default unit registry.
func WithUnits(r *units.Registry) Option {
	return func(o *options) {
		o.units = r
	}
}

// WithCompression sets the deflate level for large fields (0 disables).
func WithCompression(level int) Option {
	return func(o *options) {
		if level >= 0 && level <= 9 {
			o.compression = level
		}
	}
}

// WithThreshold sets the size in bytes from which compressible fields are
// written chunked and deflated.
func WithThreshold(bytes int) Option {
	return func(o *options) {
		if bytes >= 0 {
			o.threshold = bytes
		}
	}
}

// WithCreatorName sets the root "creator" attribute.
func WithCreatorName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.creator = name
		}
	}
}

// WithFileName sets the root "file_name" attribute. Without it the path
// given to InitFile is recorded.
func WithFileName(name string) Option {
	return func(o *options) {
		o.fileName = name
	}
}
