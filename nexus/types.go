package nexus

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/xpcs2nexus/hdf5"
)

// Quantity is a value with optional units. A nil *Quantity, or one with a
// nil Value, means the field is absent and is not written.
type Quantity struct {
	// Value is a number, a string, a (nested) slice of either, or an Array.
	Value interface{}
	Units string
	// Attrs are written on the dataset next to units and target.
	Attrs []hdf5.Attr
}

// NewQuantity returns a Quantity for value in the given units.
func NewQuantity(value interface{}, units string) *Quantity {
	return &Quantity{Value: value, Units: units}
}

// Text returns a unitless string Quantity.
func Text(s string) *Quantity {
	return &Quantity{Value: s}
}

// Array is an n-dimensional array stored as a flat row-major slice.
type Array struct {
	Data  interface{}
	Shape []uint64
}

func (a Array) check() (reflect.Value, error) {
	v := reflect.ValueOf(a.Data)
	if v.Kind() != reflect.Slice {
		return v, fmt.Errorf("array data is %T, not a slice", a.Data)
	}
	if v.Type().Elem().Kind() == reflect.Slice {
		return v, fmt.Errorf("array data must be flat, got %T", a.Data)
	}
	if n := product(a.Shape); uint64(v.Len()) != n {
		return v, fmt.Errorf("array shape %v needs %d elements, got %d", a.Shape, n, v.Len())
	}
	return v, nil
}

// SlabSource is a lazy, restartable sequence of slabs along the leading
// axis of an array too large to hold in memory.
type SlabSource interface {
	// Shape is the shape of the whole array.
	Shape() []uint64
	// Elem returns a zero value of the element type, e.g. float32(0).
	Elem() interface{}
	// Slabs calls fn with consecutive flat row-major slabs, starting from
	// the first row on every call. Each slab holds one or more whole rows.
	Slabs(fn func(slab interface{}) error) error
}

// Stream is a SlabSource with its units.
type Stream struct {
	Source SlabSource
	Units  string
}

// ArraySource serves an in-memory Array as a SlabSource, rows at a time.
type ArraySource struct {
	array Array
	rows  uint64
}

// NewArraySource returns a SlabSource over a, rows leading indices per slab.
func NewArraySource(a Array, rows uint64) (*ArraySource, error) {
	if _, err := a.check(); err != nil {
		return nil, err
	}
	if len(a.Shape) == 0 {
		return nil, fmt.Errorf("array source needs at least one axis")
	}
	if rows == 0 {
		rows = 1
	}
	return &ArraySource{array: a, rows: rows}, nil
}

// Shape implements SlabSource.
func (s *ArraySource) Shape() []uint64 {
	return s.array.Shape
}

// Elem implements SlabSource.
func (s *ArraySource) Elem() interface{} {
	return reflect.Zero(reflect.TypeOf(s.array.Data).Elem()).Interface()
}

// Slabs implements SlabSource.
func (s *ArraySource) Slabs(fn func(slab interface{}) error) error {
	v := reflect.ValueOf(s.array.Data)
	rowLen := int(product(s.array.Shape[1:]))
	step := int(s.rows) * rowLen
	for start := 0; start < v.Len(); start += step {
		end := min(start+step, v.Len())
		if err := fn(v.Slice(start, end).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// EntryRecord holds the NXentry fields.
type EntryRecord struct {
	// Index selects the group name entry_<Index>; nil writes "entry".
	Index *int

	ExperimentDescription *Quantity
	Title                 *Quantity
	StartTime             *Quantity
	EndTime               *Quantity
	EntryIdentifier       *Quantity
	// EntryIdentifierUUID is written only when it parses as a UUID.
	EntryIdentifierUUID *Quantity
	ScanNumber          *Quantity
	RunCycle            *Quantity
}

// EntryIndex returns a pointer for EntryRecord.Index.
func EntryIndex(i int) *int {
	return &i
}

func (r EntryRecord) values() map[string]*Quantity {
	return map[string]*Quantity{
		"experiment_description": r.ExperimentDescription,
		"title":                  r.Title,
		"start_time":             r.StartTime,
		"end_time":               r.EndTime,
		"entry_identifier":       r.EntryIdentifier,
		"entry_identifier_uuid":  r.EntryIdentifierUUID,
		"scan_number":            r.ScanNumber,
		"run_cycle":              r.RunCycle,
	}
}

// InstrumentRecord holds the NXinstrument fields and those of its source,
// detector and monochromator.
type InstrumentRecord struct {
	Name *Quantity

	SourceName  *Quantity
	SourceProbe *Quantity
	SourceType  *Quantity

	CountTime   *Quantity
	FrameTime   *Quantity
	Distance    *Quantity
	XPixelSize  *Quantity
	YPixelSize  *Quantity
	BeamCenterX *Quantity
	BeamCenterY *Quantity
	Description *Quantity

	Energy     *Quantity
	Wavelength *Quantity
}

func (r InstrumentRecord) values() map[string]*Quantity {
	return map[string]*Quantity{
		"name":          r.Name,
		"source_name":   r.SourceName,
		"source_probe":  r.SourceProbe,
		"source_type":   r.SourceType,
		"count_time":    r.CountTime,
		"frame_time":    r.FrameTime,
		"distance":      r.Distance,
		"x_pixel_size":  r.XPixelSize,
		"y_pixel_size":  r.YPixelSize,
		"beam_center_x": r.BeamCenterX,
		"beam_center_y": r.BeamCenterY,
		"description":   r.Description,
		"energy":        r.Energy,
		"wavelength":    r.Wavelength,
	}
}

// SampleRecord holds the NXsample fields. The sample name is always the
// entry title.
type SampleRecord struct {
	Thickness      *Quantity
	Temperature    *Quantity
	TemperatureSet *Quantity
}

func (r SampleRecord) values() map[string]*Quantity {
	return map[string]*Quantity{
		"thickness":       r.Thickness,
		"temperature":     r.Temperature,
		"temperature_set": r.TemperatureSet,
	}
}

// XPCSRecord holds the correlation results, the two-time function and the
// masks and ROI maps they were computed with.
type XPCSRecord struct {
	G2           *Quantity
	G2Stderr     *Quantity
	Tau          *Quantity
	FrameSum     *Quantity
	FrameAverage *Quantity

	// TwoTime is the two-time correlation function held in memory.
	// TwoTimeStream is used instead when TwoTime is nil.
	TwoTime           *Quantity
	TwoTimeStream     *Stream
	G2TwoTime         *Quantity
	G2PartialsTwoTime *Quantity

	Mask     *Quantity
	DQMap    *Quantity
	DQList   *Quantity
	DPhiList *Quantity
	SQMap    *Quantity
	SQList   *Quantity
	SPhiList *Quantity
}

func (r XPCSRecord) values() map[string]*Quantity {
	return map[string]*Quantity{
		"g2":                  r.G2,
		"g2_stderr":           r.G2Stderr,
		"tau":                 r.Tau,
		"frame_sum":           r.FrameSum,
		"frame_average":       r.FrameAverage,
		"twotime":             r.TwoTime,
		"g2_twotime":          r.G2TwoTime,
		"g2_partials_twotime": r.G2PartialsTwoTime,
		"mask":                r.Mask,
		"dqmap":               r.DQMap,
		"dqlist":              r.DQList,
		"dphilist":            r.DPhiList,
		"sqmap":               r.SQMap,
		"sqlist":              r.SQList,
		"sphilist":            r.SPhiList,
	}
}

func (r XPCSRecord) streams() map[string]*Stream {
	if r.TwoTimeStream == nil || r.TwoTimeStream.Source == nil {
		return nil
	}
	return map[string]*Stream{"twotime": r.TwoTimeStream}
}

// SAXS1DRecord holds the azimuthally integrated intensity.
type SAXS1DRecord struct {
	I        *Quantity
	Q        *Quantity
	IPartial *Quantity
}

func (r SAXS1DRecord) values() map[string]*Quantity {
	return map[string]*Quantity{
		"I":         r.I,
		"Q":         r.Q,
		"I_partial": r.IPartial,
	}
}

// SAXS2DRecord holds the averaged detector image. ROIMap is the dynamic
// ROI map the pixel mask is derived from.
type SAXS2DRecord struct {
	I      *Quantity
	ROIMap *Quantity
}

func product(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}
