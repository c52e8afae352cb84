package loader

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/xpcs2nexus/hdf5"
	"github.com/robert-malhotra/xpcs2nexus/nexus"
)

// fixture writes a source file from absolute dataset paths.
type fixture struct {
	t      *testing.T
	file   *hdf5.File
	groups map[string]*hdf5.Group
}

func newFixture(t *testing.T, p string) *fixture {
	t.Helper()
	f, err := hdf5.Create(p)
	require.NoError(t, err)
	return &fixture{t: t, file: f, groups: map[string]*hdf5.Group{"/": f.Root()}}
}

func (x *fixture) group(p string) *hdf5.Group {
	x.t.Helper()
	if g, ok := x.groups[p]; ok {
		return g
	}
	g, err := x.group(path.Dir(p)).CreateGroup(path.Base(p))
	require.NoError(x.t, err)
	x.groups[p] = g
	return g
}

func (x *fixture) dataset(p string, data interface{}) {
	x.t.Helper()
	_, err := x.group(path.Dir(p)).CreateDataset(path.Base(p), data)
	require.NoError(x.t, err)
}

func (x *fixture) attrs(p string, attrs ...hdf5.Attr) {
	x.t.Helper()
	require.NoError(x.t, x.group(p).SetAttrs(attrs...))
}

func (x *fixture) close() {
	x.t.Helper()
	require.NoError(x.t, x.file.Close())
}

func writeAPS(t *testing.T, p string) {
	t.Helper()
	x := newFixture(t, p)
	x.dataset("/exchange/norm-0-g2", [][]float64{{1.30, 1.20}, {1.25, 1.15}, {1.10, 1.05}})
	x.dataset("/exchange/norm-0-stderr", [][]float64{{0.01, 0.01}, {0.02, 0.02}, {0.03, 0.03}})
	x.dataset("/exchange/tau", []float64{0.001, 0.002, 0.004})
	x.dataset("/exchange/pixelSum", [][]float64{{5, 6, 7}, {8, 9, 10}})
	x.dataset("/exchange/partition-mean-total", []float64{100, 50})
	x.dataset("/exchange/partition-mean-partial", [][]float64{{101, 49}, {99, 51}})
	x.dataset("/exchange/C2T_all/c2_00002", [][]float32{{5, 6}, {7, 8}})
	x.dataset("/exchange/C2T_all/c2_00001", [][]float32{{1, 2}, {3, 4}})

	x.dataset("/xpcs/dqmap", [][]int32{{0, 1, 2}, {2, 1, 0}})
	x.dataset("/xpcs/dqlist", []float64{0.002, 0.004})
	x.dataset("/xpcs/sqlist", []float64{0.0015, 0.0035})
	x.dataset("/xpcs/dphilist", []float64{0, 0})

	x.dataset("/measurement/instrument/detector/distance", []float64{4900})
	x.dataset("/measurement/instrument/detector/exposure_time", []float64{0.02})
	x.dataset("/measurement/instrument/detector/manufacturer", "LAMBDA")
	x.dataset("/measurement/instrument/detector/x_pixel_size", 55.0)
	x.dataset("/measurement/instrument/acquisition/beam_center_x", []float64{512.5})
	x.dataset("/measurement/instrument/source_begin/energy", []float64{10.0})
	x.dataset("/measurement/sample/temperature_A", 25.0)
	x.close()
}

func writeNSLSII(t *testing.T, p string) {
	t.Helper()
	x := newFixture(t, p)
	x.attrs("/md",
		hdf5.Attr{Name: "Measurement", Value: "silica in glycerol"},
		hdf5.Attr{Name: "sample", Value: "SiO2_T300"},
		hdf5.Attr{Name: "suid", Value: "a1b2c3d4"},
		hdf5.Attr{Name: "uid", Value: "a1b2c3d4-0000-4000-8000-000000000001"},
		hdf5.Attr{Name: "scan_id", Value: int64(71234)},
		hdf5.Attr{Name: "eiger4m_single_photon_energy", Value: 9650.0},
		hdf5.Attr{Name: "detector_distance", Value: 16.0},
		hdf5.Attr{Name: "count_time", Value: 1.34},
		hdf5.Attr{Name: "detector", Value: "eiger4m_single_image"},
	)
	x.attrs("/qval_dict",
		hdf5.Attr{Name: "1", Value: []float64{0.0032, 0}},
		hdf5.Attr{Name: "0", Value: []float64{0.0021, 0}},
		hdf5.Attr{Name: "2", Value: []float64{0.0044, 0}},
	)
	x.dataset("/g2", [][]float64{{1.2, 1.3, 1.1}, {1.1, 1.2, 1.05}})
	x.dataset("/taus", []float64{0.00134, 0.00268})
	x.dataset("/g12b", [][][]float64{{{1, 2}, {3, 4}}})
	x.dataset("/roi_mask", [][]int32{{1, 0}, {2, 3}})
	x.dataset("/iq_saxs", []float64{9, 8, 7})
	x.dataset("/q_saxs", []float64{0.001, 0.002, 0.003})
	x.dataset("/avg_img", [][]float64{{1, 2}, {3, 4}})
	x.close()
}

func newLogger() (*slog.Logger, *bytes.Buffer) {
	var logs bytes.Buffer
	return slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})), &logs
}

func convert(t *testing.T, kind Kind, src string, opts ConvertOptions, loaderOpts ...Option) *hdf5.File {
	t.Helper()
	logger, _ := newLogger()
	s, err := Open(kind, src, append([]Option{WithLogger(logger)}, loaderOpts...)...)
	require.NoError(t, err)
	defer s.Close()

	out := filepath.Join(t.TempDir(), "out.nxs")
	c, err := nexus.Create(out, nexus.WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, Convert(s, c, opts))
	require.NoError(t, c.Close())

	f, err := hdf5.Open(out)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func readFloats(t *testing.T, f *hdf5.File, p string) []float64 {
	t.Helper()
	ds, err := f.OpenDataset(p)
	require.NoError(t, err, p)
	v, err := ds.ReadFloat64()
	require.NoError(t, err, p)
	return v
}

func readString(t *testing.T, f *hdf5.File, p string) string {
	t.Helper()
	ds, err := f.OpenDataset(p)
	require.NoError(t, err, p)
	v, err := ds.ReadString()
	require.NoError(t, err, p)
	require.Len(t, v, 1)
	return v[0]
}

func units(t *testing.T, f *hdf5.File, p string) string {
	t.Helper()
	ds, err := f.OpenDataset(p)
	require.NoError(t, err, p)
	a := ds.Attr("units")
	if a == nil {
		return ""
	}
	s, err := a.ReadScalarString()
	require.NoError(t, err)
	return s
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	aps := filepath.Join(dir, "aps.hdf")
	chx := filepath.Join(dir, "chx.h5")
	writeAPS(t, aps)
	writeNSLSII(t, chx)

	k, err := Detect(aps)
	require.NoError(t, err)
	assert.Equal(t, KindAPS, k)

	k, err = Detect(chx)
	require.NoError(t, err)
	assert.Equal(t, KindNSLSII, k)

	other := filepath.Join(dir, "other.h5")
	x := newFixture(t, other)
	x.dataset("/data", []float64{1})
	x.close()
	_, err = Detect(other)
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = Open("", other)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestOpenUnreadable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.h5")
	_, err := Open(KindAPS, missing)
	assert.ErrorIs(t, err, ErrSourceUnreadable)
	assert.Contains(t, err.Error(), missing)

	text := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("not hdf5"), 0o644))
	_, err = Open("", text)
	assert.ErrorIs(t, err, ErrSourceUnreadable)
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"aps": KindAPS, " NSLSII ": KindNSLSII, "auto": "", "": ""} {
		k, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, k, in)
	}
	_, err := ParseKind("esrf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestConvertAPS(t *testing.T) {
	src := filepath.Join(t.TempDir(), "A001_silica.hdf")
	writeAPS(t, src)
	f := convert(t, "", src, ConvertOptions{})

	assert.Equal(t, "A001_silica", readString(t, f, "/entry/title"))
	assert.Equal(t, "A001_silica", readString(t, f, "/entry/sample/name"))
	assert.Equal(t, "Advanced Photon Source", readString(t, f, "/entry/instrument/source/name"))
	assert.Equal(t, "LAMBDA", readString(t, f, "/entry/instrument/detector/description"))

	dist, err := f.OpenDataset("/entry/instrument/detector/distance")
	require.NoError(t, err)
	assert.True(t, dist.IsScalar())
	assert.Equal(t, []float64{4900}, readFloats(t, f, "/entry/instrument/detector/distance"))
	assert.Equal(t, "mm", units(t, f, "/entry/instrument/detector/distance"))
	assert.Equal(t, "um", units(t, f, "/entry/instrument/detector/x_pixel_size"))
	assert.Equal(t, "C", units(t, f, "/entry/sample/temperature"))

	wl := readFloats(t, f, "/entry/instrument/monochromator/wavelength")
	require.Len(t, wl, 1)
	assert.InDelta(t, 1.23984, wl[0], 1e-4)
	assert.Equal(t, wl, readFloats(t, f, "/entry/instrument/source/incident_wavelength"))

	g2, err := f.OpenDataset("/entry/XPCS/data/g2")
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2}, g2.Shape())

	twotime, err := f.OpenDataset("/entry/XPCS/twotime/twotime")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 2, 2}, twotime.Shape())
	tt, err := twotime.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tt)

	assert.Equal(t, []float64{0.002, 0.004}, readFloats(t, f, "/entry/XPCS/instrument/masks/dqlist"))
	assert.Equal(t, "1/angstrom", units(t, f, "/entry/XPCS/instrument/masks/dqlist"))
	assert.Equal(t, []float64{0.0015, 0.0035}, readFloats(t, f, "/entry/SAXS_1D/data/Q"))

	mask, err := f.OpenDataset("/entry/SAXS_2D/data/mask")
	require.NoError(t, err)
	m, err := mask.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 0, 0, 0, 0, 1}, m)
	assert.Equal(t, []uint64{2, 3}, mask.Shape())

	_, err = f.OpenDataset("/entry/XPCS/data/frameSum")
	assert.ErrorIs(t, err, hdf5.ErrNotFound)
}

func TestConvertAPSIndices(t *testing.T) {
	src := filepath.Join(t.TempDir(), "aps.hdf")
	writeAPS(t, src)
	f := convert(t, KindAPS, src, ConvertOptions{EntryIndex: nexus.EntryIndex(3), Title: "run 3"}, WithQValues(false))

	assert.Equal(t, "run 3", readString(t, f, "/entry_3/title"))
	ds, err := f.OpenDataset("/entry_3/XPCS/instrument/masks/dqlist")
	require.NoError(t, err)
	idx, err := ds.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, idx)
	assert.Nil(t, ds.Attr("units"))
}

func TestConvertNSLSII(t *testing.T) {
	src := filepath.Join(t.TempDir(), "chx.h5")
	writeNSLSII(t, src)
	f := convert(t, "", src, ConvertOptions{})

	assert.Equal(t, "SiO2_T300", readString(t, f, "/entry/title"))
	assert.Equal(t, "silica in glycerol", readString(t, f, "/entry/experiment_description"))
	assert.Equal(t, "a1b2c3d4", readString(t, f, "/entry/entry_identifier"))
	assert.Equal(t, "a1b2c3d4-0000-4000-8000-000000000001", readString(t, f, "/entry/entry_identifier_uuid"))
	assert.Equal(t, "National Synchrotron Light Source II", readString(t, f, "/entry/instrument/source/name"))

	assert.Equal(t, []float64{9650}, readFloats(t, f, "/entry/instrument/monochromator/energy"))
	assert.Equal(t, "eV", units(t, f, "/entry/instrument/monochromator/energy"))
	wl := readFloats(t, f, "/entry/instrument/monochromator/wavelength")
	require.Len(t, wl, 1)
	assert.InDelta(t, 1.28481, wl[0], 1e-4)
	assert.Equal(t, "ms", units(t, f, "/entry/instrument/detector/count_time"))

	assert.Equal(t, []float64{0.0021, 0.0032, 0.0044}, readFloats(t, f, "/entry/XPCS/instrument/masks/dqlist"))
	twotime, err := f.OpenDataset("/entry/XPCS/twotime/twotime")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 2}, twotime.Shape())

	g2, err := f.OpenDataset("/entry/XPCS/data/g2")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, g2.Shape())
	assert.Equal(t, []float64{1.1, 1.2, 1.05}, readFloats(t, f, "/entry/XPCS/data/g2"))
	assert.Equal(t, []float64{0.00268}, readFloats(t, f, "/entry/XPCS/data/tau"))

	m, err := f.OpenDataset("/entry/SAXS_2D/data/mask")
	require.NoError(t, err)
	vals, err := m.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 1, 0, 0}, vals)

	_, err = f.OpenGroup("/entry/sample")
	require.NoError(t, err)
	assert.Equal(t, "SiO2_T300", readString(t, f, "/entry/sample/name"))
}

func TestNSLSIIQIndices(t *testing.T) {
	src := filepath.Join(t.TempDir(), "chx.h5")
	writeNSLSII(t, src)

	s, err := Open(KindNSLSII, src, WithQValues(false))
	require.NoError(t, err)
	defer s.Close()
	rec, err := s.XPCS()
	require.NoError(t, err)
	require.NotNil(t, rec.DQList)
	assert.Equal(t, []int32{1, 2, 3}, rec.DQList.Value)
	assert.Empty(t, rec.DQList.Units)
}

func TestDropLeading(t *testing.T) {
	assert.Nil(t, dropLeading(nil))

	q := dropLeading(nexus.NewQuantity([]float64{0, 1e-3, 2e-3}, "s"))
	assert.Equal(t, []float64{1e-3, 2e-3}, q.Value)
	assert.Equal(t, "s", q.Units)

	q = dropLeading(nexus.NewQuantity(nexus.Array{Data: []float32{9, 9, 1, 2, 3, 4}, Shape: []uint64{3, 2}}, ""))
	assert.Equal(t, nexus.Array{Data: []float32{1, 2, 3, 4}, Shape: []uint64{2, 2}}, q.Value)

	q = dropLeading(nexus.NewQuantity(1.5, ""))
	assert.Equal(t, 1.5, q.Value)
}

func TestMissingDatasetsAreAbsent(t *testing.T) {
	src := filepath.Join(t.TempDir(), "sparse.hdf")
	x := newFixture(t, src)
	x.dataset("/exchange/tau", []float64{1, 2})
	x.close()

	s, err := Open(KindAPS, src)
	require.NoError(t, err)
	defer s.Close()

	inst, err := s.Instrument()
	require.NoError(t, err)
	assert.Nil(t, inst.Distance)
	assert.Nil(t, inst.Energy)
	assert.Nil(t, inst.Wavelength)

	rec, err := s.XPCS()
	require.NoError(t, err)
	assert.Nil(t, rec.G2)
	assert.Nil(t, rec.TwoTimeStream)
	assert.Equal(t, []float64{1, 2}, rec.Tau.Value)

	saxs, err := s.SAXS2D()
	require.NoError(t, err)
	assert.Nil(t, saxs.I)
	assert.Nil(t, saxs.ROIMap)
}

func TestTwoTimeMemberMismatch(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bad.hdf")
	x := newFixture(t, src)
	x.dataset("/exchange/C2T_all/c2_00001", [][]float32{{1, 2}, {3, 4}})
	x.dataset("/exchange/C2T_all/c2_00002", [][]float32{{1, 2, 3}})
	x.close()

	s, err := Open(KindAPS, src)
	require.NoError(t, err)
	defer s.Close()
	rec, err := s.XPCS()
	require.NoError(t, err)
	require.NotNil(t, rec.TwoTimeStream)

	src2 := rec.TwoTimeStream.Source
	assert.Equal(t, []uint64{2, 2, 2}, src2.Shape())
	assert.Equal(t, float32(0), src2.Elem())

	slabs := 0
	err = src2.Slabs(func(interface{}) error {
		slabs++
		return nil
	})
	assert.ErrorContains(t, err, "c2_00002")
	assert.Equal(t, 1, slabs)
}

func TestWavelength(t *testing.T) {
	assert.Nil(t, wavelength(nil))
	assert.Nil(t, wavelength(nexus.NewQuantity(0.0, "keV")))
	assert.Nil(t, wavelength(nexus.NewQuantity(10.0, "J")))
	assert.Nil(t, wavelength(nexus.NewQuantity("ten", "keV")))
	assert.InDelta(t, 1.0, wavelength(nexus.NewQuantity(12.3984198, "keV")).Value, 1e-9)
	assert.InDelta(t, 1.0, wavelength(nexus.NewQuantity(int64(12398), "eV")).Value, 1e-4)
}

func TestRowSourceSlabs(t *testing.T) {
	src := filepath.Join(t.TempDir(), "rows.h5")
	x := newFixture(t, src)
	x.dataset("/g12b", [][][]float32{{{1, 2}, {3, 4}}, {{5, 6}, {7, 8}}, {{9, 10}, {11, 12}}})
	x.close()

	f, err := hdf5.Open(src)
	require.NoError(t, err)
	defer f.Close()
	ds, err := f.OpenDataset("/g12b")
	require.NoError(t, err)

	rs := &rowSource{ds: ds, elem: reflect.TypeOf((*float32)(nil)).Elem(), rows: 2}
	assert.Equal(t, []uint64{3, 2, 2}, rs.Shape())
	assert.Equal(t, float32(0), rs.Elem())

	var slabs []interface{}
	require.NoError(t, rs.Slabs(func(slab interface{}) error {
		slabs = append(slabs, slab)
		return nil
	}))
	assert.Equal(t, []interface{}{
		[]float32{1, 2, 3, 4, 5, 6, 7, 8},
		[]float32{9, 10, 11, 12},
	}, slabs)

	stop := errors.New("stop")
	assert.ErrorIs(t, rs.Slabs(func(interface{}) error { return stop }), stop)
}
