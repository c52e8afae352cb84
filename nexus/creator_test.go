package nexus

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/xpcs2nexus/hdf5"
	"github.com/robert-malhotra/xpcs2nexus/internal/schema"
)

func newCreator(t *testing.T, opts ...Option) (*Creator, string, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := filepath.Join(t.TempDir(), "out.nxs")
	c, err := Create(p, append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return c, p, &logs
}

func reopen(t *testing.T, p string) *hdf5.File {
	t.Helper()
	f, err := hdf5.Open(p)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func stringAttr(t *testing.T, a *hdf5.Attribute) string {
	t.Helper()
	require.NotNil(t, a)
	s, err := a.ReadScalarString()
	require.NoError(t, err)
	return s
}

func readStrings(t *testing.T, f *hdf5.File, p string) []string {
	t.Helper()
	ds, err := f.OpenDataset(p)
	require.NoError(t, err)
	s, err := ds.ReadString()
	require.NoError(t, err)
	return s
}

func TestScenarioA(t *testing.T) {
	c, p, _ := newCreator(t)
	require.NoError(t, c.CreateEntryGroup(EntryRecord{Title: Text("run42")}))
	require.NoError(t, c.CreateXPCSGroup(XPCSRecord{
		G2:  NewQuantity([][]float64{{1.0, 0.98}, {0.97, 0.95}}, "a.u."),
		Tau: NewQuantity([]float64{0.1, 1.0}, "s"),
	}))
	require.NoError(t, c.Close())

	f := reopen(t, p)

	g2, err := f.OpenDataset("/entry/XPCS/data/g2")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 2}, g2.Shape())
	vals, err := g2.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 0.98, 0.97, 0.95}, vals)

	tau, err := f.OpenDataset("/entry/XPCS/data/tau")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, tau.Shape())
	assert.Equal(t, "s", stringAttr(t, tau.Attr("units")))

	data, err := f.OpenGroup("/entry/XPCS/data")
	require.NoError(t, err)
	assert.Equal(t, "g2", stringAttr(t, data.Attr("signal")))
	assert.Equal(t, "NXdata", stringAttr(t, data.Attr("NX_class")))

	xpcs, err := f.OpenGroup("/entry/XPCS")
	require.NoError(t, err)
	assert.Equal(t, "data", stringAttr(t, xpcs.Attr("default")))
	assert.Equal(t, "NXprocess", stringAttr(t, xpcs.Attr("NX_class")))

	entry, err := f.OpenGroup("/entry")
	require.NoError(t, err)
	assert.Equal(t, "XPCS", stringAttr(t, entry.Attr("default")))
	assert.Equal(t, "entry", stringAttr(t, f.Root().Attr("default")))

	_, err = f.OpenGroup("/entry/XPCS/twotime")
	assert.Error(t, err)
	_, err = f.OpenGroup("/entry/XPCS/instrument")
	assert.Error(t, err)

	assert.Equal(t, []string{"run42"}, readStrings(t, f, "/entry/XPCS/title"))
}

func TestScenarioB(t *testing.T) {
	c, p, logs := newCreator(t)
	require.NoError(t, c.CreateEntryGroup(EntryRecord{}))
	require.NoError(t, c.CreateSAXS1DGroup(SAXS1DRecord{
		I: NewQuantity([]float64{10.0, 5.0, 2.0}, "a.u."),
		Q: NewQuantity([]float64{0.01, 0.02, 0.03}, "1/angstrom"),
	}))
	require.NoError(t, c.Close())

	f := reopen(t, p)
	i, err := f.OpenDataset("/entry/SAXS_1D/data/I")
	require.NoError(t, err)
	assert.Equal(t, "a.u.", stringAttr(t, i.Attr("units")))
	q, err := f.OpenDataset("/entry/SAXS_1D/data/Q")
	require.NoError(t, err)
	assert.Equal(t, "1/angstrom", stringAttr(t, q.Attr("units")))

	data, err := f.OpenGroup("/entry/SAXS_1D/data")
	require.NoError(t, err)
	assert.Equal(t, "I", stringAttr(t, data.Attr("signal")))
	assert.Equal(t, "Q", stringAttr(t, data.Attr("I_axes")))
	assert.Equal(t, "SASdata", stringAttr(t, data.Attr("canSAS_class")))

	saxs, err := f.OpenGroup("/entry/SAXS_1D")
	require.NoError(t, err)
	assert.Equal(t, "NXsubentry", stringAttr(t, saxs.Attr("NX_class")))
	assert.Equal(t, "SASentry", stringAttr(t, saxs.Attr("canSAS_class")))
	assert.Equal(t, "data", stringAttr(t, saxs.Attr("default")))
	assert.Equal(t, []string{"NXcanSAS"}, readStrings(t, f, "/entry/SAXS_1D/definition"))

	assert.NotContains(t, logs.String(), "level=WARN")
}

func TestScenarioC(t *testing.T) {
	c, p, logs := newCreator(t)
	require.NoError(t, c.CreateEntryGroup(EntryRecord{}))
	require.NoError(t, c.CreateSAXS1DGroup(SAXS1DRecord{I: NewQuantity([]float64{10.0, 5.0}, "kg")}))
	require.NoError(t, c.CreateSAXS2DGroup(SAXS2DRecord{I: NewQuantity([][]float64{{1, 2}, {3, 4}}, "a.u")}))
	require.NoError(t, c.Close())

	f := reopen(t, p)
	i, err := f.OpenDataset("/entry/SAXS_1D/data/I")
	require.NoError(t, err)
	assert.Nil(t, i.Attr("units"))
	assert.NotNil(t, i.Attr("target"))

	out := logs.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "field=/entry/SAXS_1D/data/I")
	assert.Contains(t, out, "units=kg")

	_, err = f.OpenDataset("/entry/SAXS_2D/data/I")
	assert.NoError(t, err, "run continued after the mismatch")
}

func TestScenarioD(t *testing.T) {
	c, p, _ := newCreator(t)

	assert.ErrorIs(t, c.CreateInstrumentGroup(InstrumentRecord{Distance: NewQuantity(5.0, "m")}), ErrOutOfOrder)
	assert.ErrorIs(t, c.CreateSampleGroup(SampleRecord{}), ErrOutOfOrder)
	assert.ErrorIs(t, c.CreateXPCSGroup(XPCSRecord{G2: NewQuantity([]float64{1}, "")}), ErrOutOfOrder)
	assert.ErrorIs(t, c.CreateSAXS1DGroup(SAXS1DRecord{}), ErrOutOfOrder)
	assert.ErrorIs(t, c.CreateSAXS2DGroup(SAXS2DRecord{}), ErrOutOfOrder)
	require.NoError(t, c.Close())

	f := reopen(t, p)
	members, err := f.Root().Members()
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestScenarioE(t *testing.T) {
	c, p, _ := newCreator(t)
	require.NoError(t, c.CreateEntryGroup(EntryRecord{}))
	require.NoError(t, c.CreateSAXS2DGroup(SAXS2DRecord{
		I:      NewQuantity([][]float64{{5, 6}, {7, 8}}, "counts"),
		ROIMap: NewQuantity([][]int32{{0, 1}, {2, 0}}, ""),
	}))
	require.NoError(t, c.Close())

	f := reopen(t, p)
	mask, err := f.OpenDataset("/entry/SAXS_2D/data/mask")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 2}, mask.Shape())
	vals, err := mask.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 0, 0, 1}, vals)
	assert.Equal(t, "boolean", stringAttr(t, mask.Attr("units")))

	data, err := f.OpenGroup("/entry/SAXS_2D/data")
	require.NoError(t, err)
	assert.Equal(t, "mask", stringAttr(t, data.Attr("mask")))
	assert.Equal(t, "I", stringAttr(t, data.Attr("signal")))
}

func TestOmission(t *testing.T) {
	c, p, _ := newCreator(t)
	require.NoError(t, c.CreateEntryGroup(EntryRecord{}))
	require.NoError(t, c.CreateInstrumentGroup(InstrumentRecord{
		Distance:  NewQuantity(5.0, "m"),
		FrameTime: NewQuantity(0.001, "s"),
	}))
	require.NoError(t, c.CreateSampleGroup(SampleRecord{}))
	require.NoError(t, c.Close())

	f := reopen(t, p)
	for _, present := range []string{
		"/entry/definition",
		"/entry/instrument/detector/distance",
		"/entry/instrument/detector/frame_time",
	} {
		_, err := f.OpenDataset(present)
		assert.NoError(t, err, present)
	}
	for _, absent := range []string{
		"/entry/title",
		"/entry/instrument/name",
		"/entry/instrument/detector/count_time",
		"/entry/instrument/detector/beam_center_x",
		"/entry/sample/name",
		"/entry/sample/thickness",
	} {
		_, err := f.OpenDataset(absent)
		assert.Error(t, err, absent)
	}
	for _, absent := range []string{"/entry/instrument/source", "/entry/instrument/monochromator"} {
		_, err := f.OpenGroup(absent)
		assert.Error(t, err, absent)
	}

	sample, err := f.OpenGroup("/entry/sample")
	require.NoError(t, err)
	assert.Equal(t, "NXsample", stringAttr(t, sample.Attr("NX_class")))
}

// writeFull writes every section with a representative set of fields.
func writeFull(t *testing.T, c *Creator) {
	t.Helper()
	require.NoError(t, c.CreateEntryGroup(EntryRecord{
		Title:                 Text("A001_sample"),
		ExperimentDescription: Text("XPCS test"),
		StartTime:             Text("2024-02-18T15:30:30"),
		EntryIdentifierUUID:   Text("9e7f5a7c-1e0b-4b5e-9a51-6b1d0c3b2a10"),
		ScanNumber:            NewQuantity(int64(42), ""),
	}))
	require.NoError(t, c.CreateInstrumentGroup(InstrumentRecord{
		Name:        Text("8-ID-I"),
		SourceName:  Text("Advanced Photon Source"),
		SourceProbe: Text("x-ray"),
		SourceType:  Text("Synchrotron X-ray Source"),
		CountTime:   NewQuantity(0.01, "s"),
		Distance:    NewQuantity(4000.0, "mm"),
		XPixelSize:  NewQuantity(75.0, "um"),
		BeamCenterX: NewQuantity(512.5, "pixel"),
		Description: Text("Eiger 4M"),
		Energy:      NewQuantity(10.9, "keV"),
		Wavelength:  NewQuantity(1.137, "angstrom"),
	}))
	require.NoError(t, c.CreateSampleGroup(SampleRecord{
		Thickness:   NewQuantity(1.0, "mm"),
		Temperature: NewQuantity(25.0, "C"),
	}))
	require.NoError(t, c.CreateXPCSGroup(XPCSRecord{
		G2:       NewQuantity([][]float64{{1.2, 1.1}, {1.15, 1.05}}, "a.u"),
		G2Stderr: NewQuantity([][]float64{{0.01, 0.01}, {0.02, 0.02}}, "a.u"),
		Tau:      NewQuantity([]float64{1e-3, 2e-3}, "s"),
		FrameSum: NewQuantity([]float64{100, 101, 99}, "a.u"),
		Mask:     NewQuantity([][]uint8{{1, 1}, {0, 1}}, ""),
		DQMap:    NewQuantity([][]int32{{1, 2}, {0, 2}}, ""),
		DQList:   NewQuantity([]float64{0.001, 0.002}, "1/angstrom"),
		DPhiList: NewQuantity([]float64{0, 90}, "deg"),
	}))
	require.NoError(t, c.CreateSAXS1DGroup(SAXS1DRecord{
		I: NewQuantity([]float64{3, 2, 1}, "a.u"),
		Q: NewQuantity([]float64{0.1, 0.2, 0.3}, "1/angstrom"),
	}))
	require.NoError(t, c.CreateSAXS2DGroup(SAXS2DRecord{
		I:      NewQuantity([][]float64{{1, 2}, {3, 4}}, "a.u"),
		ROIMap: NewQuantity([][]int32{{1, 2}, {0, 2}}, ""),
	}))
}

func TestSelfLinks(t *testing.T) {
	c, p, _ := newCreator(t)
	writeFull(t, c)
	require.NoError(t, c.Close())

	f := reopen(t, p)
	var own int
	err := hdf5.Walk(f.Root(), func(p string, obj interface{}, err error) error {
		require.NoError(t, err)
		ds, ok := obj.(*hdf5.Dataset)
		if !ok {
			return nil
		}
		target := stringAttr(t, ds.Attr("target"))
		if target == p {
			own++
			return nil
		}
		// Reached through a hard link: the target names the same object.
		orig, err := f.OpenDataset(target)
		require.NoError(t, err, p)
		assert.Equal(t, orig.Address(), ds.Address(), p)
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, own, 20)
}

func TestHardLinks(t *testing.T) {
	c, p, _ := newCreator(t)
	writeFull(t, c)
	require.NoError(t, c.Close())

	f := reopen(t, p)
	same := func(a, b string) {
		t.Helper()
		da, err := f.OpenDataset(a)
		require.NoError(t, err, a)
		db, err := f.OpenDataset(b)
		require.NoError(t, err, b)
		assert.Equal(t, da.Address(), db.Address(), "%s and %s", a, b)
	}
	same("/entry/instrument/source/radiation", "/entry/instrument/source/type")
	same("/entry/instrument/source/incident_wavelength", "/entry/instrument/monochromator/wavelength")
	same("/entry/sample/name", "/entry/title")
	same("/entry/XPCS/title", "/entry/title")
	same("/entry/SAXS_1D/run", "/entry/title")
	same("/entry/SAXS_2D/sample/name", "/entry/title")
	same("/entry/SAXS_1D/instrument/detector/distance", "/entry/instrument/detector/distance")

	assert.Equal(t, []string{"A001_sample"}, readStrings(t, f, "/entry/sample/name"))
	assert.Equal(t, "/entry/title", stringAttr(t, mustDataset(t, f, "/entry/sample/name").Attr("target")))
}

func mustDataset(t *testing.T, f *hdf5.File, p string) *hdf5.Dataset {
	t.Helper()
	ds, err := f.OpenDataset(p)
	require.NoError(t, err)
	return ds
}

func TestEntryFields(t *testing.T) {
	c, p, logs := newCreator(t, WithCreatorName("xpcs2nexus-test"))
	require.NoError(t, c.CreateEntryGroup(EntryRecord{
		Index:               EntryIndex(3),
		Title:               Text("t"),
		EntryIdentifierUUID: Text("not-a-uuid"),
		ScanNumber:          NewQuantity(int64(7), ""),
	}))
	require.NoError(t, c.Close())

	f := reopen(t, p)
	assert.Equal(t, []string{"NXxpcs"}, readStrings(t, f, "/entry_3/definition"))
	_, err := f.OpenDataset("/entry_3/entry_identifier_uuid")
	assert.Error(t, err)
	assert.Contains(t, logs.String(), "entry_identifier_uuid is not a UUID")

	scan, err := mustDataset(t, f, "/entry_3/scan_number").ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, scan)

	root := f.Root()
	assert.Equal(t, "entry_3", stringAttr(t, root.Attr("default")))
	assert.Equal(t, "xpcs2nexus-test", stringAttr(t, root.Attr("creator")))
	assert.Equal(t, p, stringAttr(t, root.Attr("file_name")))
	assert.Equal(t, "2025.1", stringAttr(t, root.Attr("format_version")))
	assert.Equal(t, NeXusVersion, stringAttr(t, root.Attr("NeXus_version")))
	assert.Equal(t, hdf5.CompatibleVersion, stringAttr(t, root.Attr("HDF5_Version")))
	assert.NotEmpty(t, stringAttr(t, root.Attr("file_time")))

	entry, err := f.OpenGroup("/entry_3")
	require.NoError(t, err)
	assert.Nil(t, entry.Attr("default"), "no section produced a signal")
}

func TestFileNameOverridesPath(t *testing.T) {
	c, p, _ := newCreator(t, WithFileName("/data/A017.nxs"))
	require.NoError(t, c.CreateEntryGroup(EntryRecord{Title: Text("t")}))
	require.NoError(t, c.Close())

	f := reopen(t, p)
	assert.Equal(t, "/data/A017.nxs", stringAttr(t, f.Root().Attr("file_name")))
}

func TestMultipleEntries(t *testing.T) {
	c, p, _ := newCreator(t)
	for i := 1; i <= 2; i++ {
		require.NoError(t, c.CreateEntryGroup(EntryRecord{Index: EntryIndex(i), Title: Text("scan")}))
		require.NoError(t, c.CreateSampleGroup(SampleRecord{Thickness: NewQuantity(float64(i), "mm")}))
		require.NoError(t, c.CreateSAXS1DGroup(SAXS1DRecord{I: NewQuantity([]float64{1, 2}, "counts")}))
	}
	require.NoError(t, c.Close())

	f := reopen(t, p)
	members, err := f.Root().Members()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"entry_1", "entry_2"}, members)
	assert.Equal(t, "entry_2", stringAttr(t, f.Root().Attr("default")))

	for _, e := range []string{"/entry_1", "/entry_2"} {
		g, err := f.OpenGroup(e)
		require.NoError(t, err)
		assert.Equal(t, "SAXS_1D", stringAttr(t, g.Attr("default")))
		same := mustDataset(t, f, e+"/sample/name").Address() == mustDataset(t, f, e+"/title").Address()
		assert.True(t, same, e)
	}
}

func TestDuplicateGroups(t *testing.T) {
	c, _, _ := newCreator(t)
	defer c.Close()

	require.NoError(t, c.CreateEntryGroup(EntryRecord{}))
	require.NoError(t, c.CreateSampleGroup(SampleRecord{}))

	err := c.CreateSampleGroup(SampleRecord{})
	assert.ErrorIs(t, err, ErrDuplicateGroup)
	assert.ErrorIs(t, err, hdf5.ErrExists)

	err = c.CreateEntryGroup(EntryRecord{})
	assert.ErrorIs(t, err, ErrDuplicateGroup)
	assert.ErrorIs(t, err, hdf5.ErrExists)
}

func TestClosed(t *testing.T) {
	c, _, _ := newCreator(t)
	require.NoError(t, c.CreateEntryGroup(EntryRecord{}))
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Close(), ErrClosed)
	assert.ErrorIs(t, c.CreateEntryGroup(EntryRecord{}), ErrClosed)
	assert.ErrorIs(t, c.CreateXPCSGroup(XPCSRecord{}), ErrClosed)
	assert.ErrorIs(t, c.InitFile(filepath.Join(t.TempDir(), "again.nxs")), ErrClosed)
}

func TestLifecycleOrder(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	assert.ErrorIs(t, c.CreateEntryGroup(EntryRecord{}), ErrOutOfOrder)
	assert.ErrorIs(t, c.CreateSampleGroup(SampleRecord{}), ErrOutOfOrder)

	p := filepath.Join(t.TempDir(), "x.nxs")
	require.NoError(t, c.InitFile(p))
	assert.ErrorIs(t, c.InitFile(p), ErrOutOfOrder)
	require.NoError(t, c.Close())
}

func TestPathUnwritable(t *testing.T) {
	p := filepath.Join(t.TempDir(), "missing", "dir", "out.nxs")
	_, err := Create(p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathUnwritable)
	assert.True(t, strings.Contains(err.Error(), p))
}

func TestDescriptiveNaming(t *testing.T) {
	c, p, _ := newCreator(t, WithNaming(schema.NamingDescriptive))
	assert.Equal(t, schema.NamingDescriptive, c.Naming())

	require.NoError(t, c.CreateEntryGroup(EntryRecord{}))
	require.NoError(t, c.CreateXPCSGroup(XPCSRecord{
		Tau:     NewQuantity([]float64{1, 2}, "s"),
		TwoTime: NewQuantity([][]float32{{1, 0.5}, {0.5, 1}}, "a.u."),
		DQMap:   NewQuantity([][]int32{{1, 0}, {0, 1}}, ""),
	}))
	require.NoError(t, c.Close())

	f := reopen(t, p)
	for _, present := range []string{
		"/entry/XPCS/data/delay_difference",
		"/entry/XPCS/twotime/two_time_corr_func",
		"/entry/XPCS/instrument/masks/dynamic_roi_map",
	} {
		_, err := f.OpenDataset(present)
		assert.NoError(t, err, present)
	}

	twotime, err := f.OpenGroup("/entry/XPCS/twotime")
	require.NoError(t, err)
	assert.Equal(t, "two_time_corr_func", stringAttr(t, twotime.Attr("signal")))

	data, err := f.OpenGroup("/entry/XPCS/data")
	require.NoError(t, err)
	assert.Nil(t, data.Attr("signal"))

	xpcs, err := f.OpenGroup("/entry/XPCS")
	require.NoError(t, err)
	assert.Equal(t, "twotime", stringAttr(t, xpcs.Attr("default")))
}

func TestUnknownNaming(t *testing.T) {
	_, err := New(WithNaming("fancy"))
	assert.Error(t, err)
}

func TestRaggedG2Rejected(t *testing.T) {
	c, _, _ := newCreator(t)
	require.NoError(t, c.CreateEntryGroup(EntryRecord{}))
	err := c.CreateXPCSGroup(XPCSRecord{
		G2:  NewQuantity([][]float64{{1.2, 1.1}, {1.05}}, "a.u."),
		Tau: NewQuantity([]float64{1e-3, 2e-3}, "s"),
	})
	assert.ErrorContains(t, err, "ragged data")
	require.NoError(t, c.Close())
}

func TestNoSignalWarns(t *testing.T) {
	c, p, logs := newCreator(t)
	require.NoError(t, c.CreateEntryGroup(EntryRecord{}))
	require.NoError(t, c.CreateXPCSGroup(XPCSRecord{
		Mask: NewQuantity([][]uint8{{1, 0}, {1, 1}}, ""),
	}))
	require.NoError(t, c.Close())

	assert.Contains(t, logs.String(), "no plottable signal written")

	f := reopen(t, p)
	xpcs, err := f.OpenGroup("/entry/XPCS")
	require.NoError(t, err)
	assert.Nil(t, xpcs.Attr("default"))
	_, err = f.OpenDataset("/entry/XPCS/instrument/masks/mask")
	assert.NoError(t, err)
}

func TestStreamedTwoTime(t *testing.T) {
	const n, side = 6, 4
	data := make([]float32, n*side*side)
	for i := range data {
		data[i] = float32(i) / 10
	}
	src, err := NewArraySource(Array{Data: data, Shape: []uint64{n, side, side}}, 2)
	require.NoError(t, err)

	c, p, logs := newCreator(t)
	require.NoError(t, c.CreateEntryGroup(EntryRecord{}))
	require.NoError(t, c.CreateXPCSGroup(XPCSRecord{
		TwoTimeStream: &Stream{Source: src, Units: "a.u."},
	}))
	require.NoError(t, c.Close())
	assert.Contains(t, logs.String(), "slabs=3")

	f := reopen(t, p)
	ds, err := f.OpenDataset("/entry/XPCS/twotime/twotime")
	require.NoError(t, err)
	assert.Equal(t, []uint64{n, side, side}, ds.Shape())
	got, err := ds.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "a.u.", stringAttr(t, ds.Attr("units")))
	assert.Equal(t, "/entry/XPCS/twotime/twotime", stringAttr(t, ds.Attr("target")))

	twotime, err := f.OpenGroup("/entry/XPCS/twotime")
	require.NoError(t, err)
	assert.Equal(t, "twotime", stringAttr(t, twotime.Attr("signal")))
}

type failingSource struct{}

func (failingSource) Shape() []uint64   { return []uint64{4, 2} }
func (failingSource) Elem() interface{} { return float64(0) }
func (failingSource) Slabs(fn func(interface{}) error) error {
	if err := fn([]float64{1, 2}); err != nil {
		return err
	}
	return errors.New("source went away")
}

func TestStreamedTwoTimeFailure(t *testing.T) {
	c, _, _ := newCreator(t)
	defer c.Close()
	require.NoError(t, c.CreateEntryGroup(EntryRecord{}))

	err := c.CreateXPCSGroup(XPCSRecord{TwoTimeStream: &Stream{Source: failingSource{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source went away")
}
