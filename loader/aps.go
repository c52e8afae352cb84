package loader

import (
	"fmt"
	"path"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/batchatco/go-thrower"

	"github.com/robert-malhotra/xpcs2nexus/nexus"
)

// Paths of the APS DataExchange layout.
const (
	apsExchange    = "/exchange"
	apsXPCS        = "/xpcs"
	apsDetector    = "/measurement/instrument/detector"
	apsSourceBegin = "/measurement/instrument/source_begin"
	apsSourceEnd   = "/measurement/instrument/source_end"
	apsAcquire     = "/measurement/instrument/acquisition"
	apsSample      = "/measurement/sample"
	apsTwoTime     = "/exchange/C2T_all"
)

// apsSource reads 8-ID-I result files.
type apsSource struct {
	*reader
	qValues bool
}

func (s *apsSource) Entry() (rec nexus.EntryRecord, err error) {
	defer thrower.RecoverError(&err)

	rec.Title = nexus.Text(strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path)))
	rec.StartTime = s.text(path.Join(apsSourceBegin, "datetime"))
	rec.EndTime = s.text(path.Join(apsSourceEnd, "datetime"))
	return rec, nil
}

func (s *apsSource) Instrument() (rec nexus.InstrumentRecord, err error) {
	defer thrower.RecoverError(&err)

	rec.Name = nexus.Text("APS 8-ID-I")
	rec.SourceName = nexus.Text("Advanced Photon Source")
	rec.SourceProbe = nexus.Text("x-ray")
	rec.SourceType = nexus.Text("Synchrotron X-ray Source")

	rec.CountTime = s.scalar(path.Join(apsDetector, "exposure_time"), "s")
	rec.FrameTime = s.scalar(path.Join(apsDetector, "exposure_period"), "s")
	rec.Description = s.text(path.Join(apsDetector, "manufacturer"))
	rec.Distance = s.scalar(path.Join(apsDetector, "distance"), "mm")
	rec.XPixelSize = s.scalar(path.Join(apsDetector, "x_pixel_size"), "um")
	rec.YPixelSize = s.scalar(path.Join(apsDetector, "y_pixel_size"), "um")
	rec.BeamCenterX = s.scalar(path.Join(apsAcquire, "beam_center_x"), "pixel")
	rec.BeamCenterY = s.scalar(path.Join(apsAcquire, "beam_center_y"), "pixel")
	rec.Energy = s.scalar(path.Join(apsSourceBegin, "energy"), "keV")
	rec.Wavelength = wavelength(rec.Energy)
	return rec, nil
}

func (s *apsSource) Sample() (rec nexus.SampleRecord, err error) {
	defer thrower.RecoverError(&err)

	rec.Thickness = s.scalar(path.Join(apsSample, "thickness"), "mm")
	rec.Temperature = s.scalar(path.Join(apsSample, "temperature_A"), "C")
	rec.TemperatureSet = s.scalar(path.Join(apsSample, "temperature_A_set"), "C")
	return rec, nil
}

func (s *apsSource) XPCS() (rec nexus.XPCSRecord, err error) {
	defer thrower.RecoverError(&err)

	rec.G2 = s.array(path.Join(apsExchange, "norm-0-g2"), "a.u.")
	rec.G2Stderr = s.array(path.Join(apsExchange, "norm-0-stderr"), "a.u.")
	rec.Tau = s.array(path.Join(apsExchange, "tau"), "s")
	rec.FrameSum = s.array(path.Join(apsExchange, "frameSum"), "a.u.")
	rec.G2PartialsTwoTime = s.array(path.Join(apsExchange, "g2partials"), "a.u.")
	rec.G2TwoTime = s.array(path.Join(apsExchange, "g2full"), "a.u.")
	if src := s.twoTime(); src != nil {
		rec.TwoTimeStream = &nexus.Stream{Source: src, Units: "a.u."}
	}

	rec.Mask = s.array(path.Join(apsXPCS, "mask"), "")
	rec.DQMap = s.array(path.Join(apsXPCS, "dqmap"), "")
	rec.DQList = s.array(path.Join(apsXPCS, "dqlist"), "1/angstrom")
	if !s.qValues && rec.DQList != nil {
		rec.DQList = &nexus.Quantity{Value: roiIndices(length(rec.DQList))}
	}
	rec.DPhiList = s.array(path.Join(apsXPCS, "dphilist"), "deg")
	rec.SQMap = s.array(path.Join(apsXPCS, "sqmap"), "")
	rec.SQList = s.array(path.Join(apsXPCS, "sqlist"), "1/angstrom")
	rec.SPhiList = s.array(path.Join(apsXPCS, "sphilist"), "deg")
	return rec, nil
}

func (s *apsSource) SAXS1D() (rec nexus.SAXS1DRecord, err error) {
	defer thrower.RecoverError(&err)

	rec.I = s.array(path.Join(apsExchange, "partition-mean-total"), "a.u.")
	rec.Q = s.array(path.Join(apsXPCS, "sqlist"), "1/angstrom")
	rec.IPartial = s.array(path.Join(apsExchange, "partition-mean-partial"), "a.u.")
	return rec, nil
}

func (s *apsSource) SAXS2D() (rec nexus.SAXS2DRecord, err error) {
	defer thrower.RecoverError(&err)

	rec.I = s.array(path.Join(apsExchange, "pixelSum"), "a.u.")
	rec.ROIMap = s.array(path.Join(apsXPCS, "dqmap"), "")
	return rec, nil
}

// twoTime returns the C2T_all members as a lazy slab source, or nil when
// the group is missing or empty.
func (s *apsSource) twoTime() nexus.SlabSource {
	g := s.group(apsTwoTime)
	if g == nil {
		return nil
	}
	names, err := g.Members()
	if err != nil {
		s.fail(apsTwoTime, err)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}

	ds := s.dataset(path.Join(apsTwoTime, names[0]))
	if ds == nil {
		return nil
	}
	elem, err := ds.GoType()
	if err != nil {
		s.fail(ds.Path(), err)
	}
	shape := append([]uint64{uint64(len(names))}, ds.Shape()...)
	s.logger.Debug("two-time members found", "group", apsTwoTime, "members", len(names), "shape", shape)
	return &memberSource{reader: s.reader, group: apsTwoTime, names: names, shape: shape, elem: elem}
}

// memberSource stacks same-shaped datasets of one group along a new
// leading axis, reading one member per slab.
type memberSource struct {
	reader *reader
	group  string
	names  []string
	shape  []uint64
	elem   reflect.Type
}

func (m *memberSource) Shape() []uint64 {
	return m.shape
}

func (m *memberSource) Elem() interface{} {
	return reflect.Zero(m.elem).Interface()
}

func (m *memberSource) Slabs(fn func(slab interface{}) error) (err error) {
	defer thrower.RecoverError(&err)

	for _, name := range m.names {
		p := path.Join(m.group, name)
		ds := m.reader.dataset(p)
		if ds == nil {
			thrower.Throw(fmt.Errorf("two-time member %s disappeared", p))
		}
		if !slices.Equal(ds.Shape(), m.shape[1:]) {
			thrower.Throw(fmt.Errorf("two-time member %s has shape %v, want %v", p, ds.Shape(), m.shape[1:]))
		}
		if t, err := ds.GoType(); err != nil || t != m.elem {
			thrower.Throw(fmt.Errorf("two-time member %s has element type %v, want %v", p, t, m.elem))
		}
		thrower.ThrowIfError(fn(m.reader.values(ds)))
	}
	return nil
}

var _ nexus.SlabSource = (*memberSource)(nil)
