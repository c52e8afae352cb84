// Package loader reads facility XPCS result files and hands their contents
// to the NeXus creator as records. Two layouts are supported: the APS
// DataExchange layout (8-ID-I) and the NSLS-II CHX layout.
//
// Datasets missing from a source file come back as absent quantities; only
// an unreadable file or a damaged dataset is an error.
package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robert-malhotra/xpcs2nexus/hdf5"
	"github.com/robert-malhotra/xpcs2nexus/nexus"
)

var (
	// ErrSourceUnreadable is returned when the source file cannot be opened
	// or read as HDF5.
	ErrSourceUnreadable = errors.New("source file unreadable")
	// ErrUnknownFormat is returned for a layout that is neither APS nor
	// NSLS-II.
	ErrUnknownFormat = errors.New("unknown source format")
)

// Kind names a source layout.
type Kind string

const (
	KindAPS    Kind = "aps"
	KindNSLSII Kind = "nslsii"
)

// ParseKind converts a flag value to a Kind. "auto" and "" return "" so
// that Open detects the layout.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAPS, KindNSLSII:
		return k, nil
	case "", "auto":
		return "", nil
	}
	return "", fmt.Errorf("%w: %q (want %s, %s or auto)", ErrUnknownFormat, s, KindAPS, KindNSLSII)
}

// Source supplies the records of one measurement.
type Source interface {
	Entry() (nexus.EntryRecord, error)
	Instrument() (nexus.InstrumentRecord, error)
	Sample() (nexus.SampleRecord, error)
	XPCS() (nexus.XPCSRecord, error)
	SAXS1D() (nexus.SAXS1DRecord, error)
	SAXS2D() (nexus.SAXS2DRecord, error)
	Close() error
}

type options struct {
	logger  *slog.Logger
	qValues bool
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithQValues selects whether the dynamic q list holds q values in 1/Å
// (true, the default) or the 1-based ROI indices.
func WithQValues(v bool) Option {
	return func(o *options) {
		o.qValues = v
	}
}

// Open opens the source file at path. An empty kind detects the layout.
// The returned Source keeps the file open until Close.
func Open(kind Kind, path string, opts ...Option) (Source, error) {
	o := &options{logger: slog.Default(), qValues: true}
	for _, opt := range opts {
		opt(o)
	}

	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnreadable, path, err)
	}

	if kind == "" {
		kind, err = detect(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		o.logger.Debug("source layout detected", "path", path, "kind", kind)
	}

	r := &reader{file: f, path: path, logger: o.logger.With("source", path)}
	switch kind {
	case KindAPS:
		return &apsSource{reader: r, qValues: o.qValues}, nil
	case KindNSLSII:
		return &nslsiiSource{reader: r, qValues: o.qValues}, nil
	}
	f.Close()
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, kind)
}

// Detect reports the layout of the source file at path.
func Detect(path string) (Kind, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrSourceUnreadable, path, err)
	}
	defer f.Close()
	return detect(f)
}

func detect(f *hdf5.File) (Kind, error) {
	if _, err := f.OpenGroup("/exchange"); err == nil {
		return KindAPS, nil
	}
	if _, err := f.OpenGroup("/xpcs"); err == nil {
		return KindAPS, nil
	}
	if _, err := f.OpenGroup("/md"); err == nil {
		return KindNSLSII, nil
	}
	if _, err := f.OpenDataset("/md"); err == nil {
		return KindNSLSII, nil
	}
	return "", fmt.Errorf("%w: neither /exchange nor /md present", ErrUnknownFormat)
}
