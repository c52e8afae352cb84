package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/batchatco/go-thrower"

	"github.com/robert-malhotra/xpcs2nexus/hdf5"
	"github.com/robert-malhotra/xpcs2nexus/nexus"
)

// reader wraps an open source file. Its methods throw on read failures;
// every exported Source method recovers them with thrower.RecoverError.
type reader struct {
	file   *hdf5.File
	path   string
	logger *slog.Logger
}

func (r *reader) Close() error {
	return r.file.Close()
}

// fail throws err annotated with the object it concerns.
func (r *reader) fail(object string, err error) {
	thrower.Throw(fmt.Errorf("%w: %s: %s: %w", ErrSourceUnreadable, r.path, object, err))
}

// dataset returns the dataset at p, or nil when no dataset exists there.
func (r *reader) dataset(p string) *hdf5.Dataset {
	ds, err := r.file.OpenDataset(p)
	if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotDataset) {
		r.logger.Debug("source dataset absent", "dataset", p)
		return nil
	}
	if err != nil {
		r.fail(p, err)
	}
	return ds
}

// group returns the group at p, or nil when no group exists there.
func (r *reader) group(p string) *hdf5.Group {
	g, err := r.file.OpenGroup(p)
	if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotGroup) {
		return nil
	}
	if err != nil {
		r.fail(p, err)
	}
	return g
}

// values reads every element of ds into a flat slice of its Go type.
func (r *reader) values(ds *hdf5.Dataset) interface{} {
	t, err := ds.GoType()
	if err != nil {
		r.fail(ds.Path(), err)
	}
	dest := reflect.New(reflect.SliceOf(t))
	if err := ds.Read(dest.Interface()); err != nil {
		r.fail(ds.Path(), err)
	}
	return dest.Elem().Interface()
}

// array reads the dataset at p with its shape: a scalar for scalar
// datasets, a flat slice for rank 1 and a nexus.Array above that.
func (r *reader) array(p, unit string) *nexus.Quantity {
	ds := r.dataset(p)
	if ds == nil {
		return nil
	}
	flat := r.values(ds)
	if ds.IsScalar() {
		return nexus.NewQuantity(first(flat), unit)
	}
	if ds.Rank() == 1 {
		return nexus.NewQuantity(flat, unit)
	}
	return nexus.NewQuantity(nexus.Array{Data: flat, Shape: ds.Shape()}, unit)
}

// slabBytes bounds the size of one slab read by a rowSource.
const slabBytes = 8 << 20

// stream returns the dataset at p as a lazy source of row slabs. Datasets
// of rank below 2 are read whole into Value instead.
func (r *reader) stream(p, unit string) (*nexus.Stream, *nexus.Quantity) {
	ds := r.dataset(p)
	if ds == nil {
		return nil, nil
	}
	if ds.Rank() < 2 {
		return nil, r.array(p, unit)
	}
	elem, err := ds.GoType()
	if err != nil {
		r.fail(p, err)
	}
	shape := ds.Shape()
	rowBytes := uint64(ds.DtypeSize())
	for _, d := range shape[1:] {
		rowBytes *= d
	}
	rows := max(1, slabBytes/max(rowBytes, 1))
	r.logger.Debug("streaming dataset", "dataset", p, "shape", shape, "rows_per_slab", rows)
	return &nexus.Stream{Source: &rowSource{ds: ds, elem: elem, rows: rows}, Units: unit}, nil
}

// rowSource serves a dataset as slabs of whole rows along its leading
// axis.
type rowSource struct {
	ds   *hdf5.Dataset
	elem reflect.Type
	rows uint64
}

func (s *rowSource) Shape() []uint64 {
	return s.ds.Shape()
}

func (s *rowSource) Elem() interface{} {
	return reflect.Zero(s.elem).Interface()
}

func (s *rowSource) Slabs(fn func(slab interface{}) error) error {
	total := s.ds.Shape()[0]
	for start := uint64(0); start < total; start += s.rows {
		dest := reflect.New(reflect.SliceOf(s.elem))
		if err := s.ds.ReadRows(start, min(s.rows, total-start), dest.Interface()); err != nil {
			return err
		}
		if err := fn(dest.Elem().Interface()); err != nil {
			return err
		}
	}
	return nil
}

var _ nexus.SlabSource = (*rowSource)(nil)

// scalar reads the dataset at p as a single value. Facility files often
// store scalars as one-element arrays; those are unwrapped. Larger
// datasets are kept whole.
func (r *reader) scalar(p, unit string) *nexus.Quantity {
	ds := r.dataset(p)
	if ds == nil {
		return nil
	}
	if ds.NumElements() != 1 {
		r.logger.Debug("scalar field holds an array", "dataset", p, "shape", ds.Shape())
		return r.array(p, unit)
	}
	return nexus.NewQuantity(first(r.values(ds)), unit)
}

// text reads the dataset at p as a string.
func (r *reader) text(p string) *nexus.Quantity {
	q := r.scalar(p, "")
	if q == nil {
		return nil
	}
	switch v := q.Value.(type) {
	case string:
		return nexus.Text(strings.TrimRight(v, "\x00"))
	case []byte:
		return nexus.Text(strings.TrimRight(string(v), "\x00"))
	}
	return nexus.Text(fmt.Sprint(q.Value))
}

// attr returns the value of attribute name on the group or dataset at p,
// or nil when either does not exist.
func (r *reader) attr(p, name string) interface{} {
	var a *hdf5.Attribute
	if g := r.group(p); g != nil {
		a = g.Attr(name)
	} else if ds := r.dataset(p); ds != nil {
		a = ds.Attr(name)
	}
	if a == nil {
		return nil
	}
	v, err := a.Value()
	if err != nil {
		r.fail(p+"@"+name, err)
	}
	return v
}

// attrQuantity returns attribute name on p as a Quantity, unwrapping
// one-element arrays.
func (r *reader) attrQuantity(p, name, unit string) *nexus.Quantity {
	v := r.attr(p, name)
	if v == nil {
		return nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.Len() == 1 {
		v = rv.Index(0).Interface()
	}
	return nexus.NewQuantity(v, unit)
}

// attrText returns attribute name on p as text.
func (r *reader) attrText(p, name string) *nexus.Quantity {
	q := r.attrQuantity(p, name, "")
	if q == nil {
		return nil
	}
	if s, ok := q.Value.(string); ok {
		return nexus.Text(s)
	}
	return nexus.Text(fmt.Sprint(q.Value))
}

func first(flat interface{}) interface{} {
	v := reflect.ValueOf(flat)
	if v.Kind() != reflect.Slice || v.Len() == 0 {
		return nil
	}
	return v.Index(0).Interface()
}

// number returns the value of a numeric scalar Quantity as float64.
func number(q *nexus.Quantity) (float64, bool) {
	if q == nil || q.Value == nil {
		return 0, false
	}
	v := reflect.ValueOf(q.Value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

// hcKeV is h·c in keV·Å.
const hcKeV = 12.3984198

// wavelength returns the X-ray wavelength for a photon energy quantity in
// keV or eV.
func wavelength(energy *nexus.Quantity) *nexus.Quantity {
	e, ok := number(energy)
	if !ok || e <= 0 {
		return nil
	}
	switch energy.Units {
	case "keV":
	case "eV":
		e /= 1000
	default:
		return nil
	}
	return nexus.NewQuantity(hcKeV/e, "angstrom")
}

// roiIndices returns 1..n for an ROI list of n entries.
func roiIndices(n int) []int32 {
	idx := make([]int32, n)
	for i := range idx {
		idx[i] = int32(i + 1)
	}
	return idx
}

// length returns the number of elements of a Quantity value.
func length(q *nexus.Quantity) int {
	if q == nil || q.Value == nil {
		return 0
	}
	if a, ok := q.Value.(nexus.Array); ok {
		return reflect.ValueOf(a.Data).Len()
	}
	if v := reflect.ValueOf(q.Value); v.Kind() == reflect.Slice {
		return v.Len()
	}
	return 1
}
