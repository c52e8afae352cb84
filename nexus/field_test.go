package nexus

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/xpcs2nexus/hdf5"
	"github.com/robert-malhotra/xpcs2nexus/internal/schema"
	"github.com/robert-malhotra/xpcs2nexus/internal/units"
)

func newFieldWriterForTest(t *testing.T, opts ...Option) *FieldWriter {
	t.Helper()
	o := defaultOptions()
	o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(o)
	}
	r, err := units.New(units.WithLogger(o.logger))
	require.NoError(t, err)
	o.units = r
	return newFieldWriter(o)
}

func TestWriteAbsentValues(t *testing.T) {
	f, err := hdf5.Create(filepath.Join(t.TempDir(), "absent.h5"))
	require.NoError(t, err)
	defer f.Close()
	w := newFieldWriterForTest(t)
	field := schema.Field{Key: "g2", Dimension: units.Arbitrary}

	var nilSlice []float64
	for name, q := range map[string]*Quantity{
		"nil":       nil,
		"nil_value": {Units: "a.u."},
		"nil_slice": {Value: nilSlice},
		"empty":     {Value: []float64{}},
		"empty_2d":  {Value: [][]float64{}},
		"empty_arr": {Value: Array{Data: []float64{}, Shape: []uint64{0, 3}}},
	} {
		ds, err := w.Write(f.Root(), field, name, q)
		assert.NoError(t, err, name)
		assert.Nil(t, ds, name)
	}

	members, err := f.Root().Members()
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestWriteArrayShape(t *testing.T) {
	p := filepath.Join(t.TempDir(), "array.h5")
	f, err := hdf5.Create(p)
	require.NoError(t, err)
	w := newFieldWriterForTest(t)
	field := schema.Field{Key: "dqmap"}

	ds, err := w.Write(f.Root(), field, "dqmap", &Quantity{
		Value: Array{Data: []int32{1, 2, 3, 4, 5, 6}, Shape: []uint64{2, 3}},
		Attrs: []hdf5.Attr{{Name: "long_name", Value: "dynamic ROI map"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, ds.Shape())

	_, err = w.Write(f.Root(), field, "bad", &Quantity{Value: Array{Data: []int32{1, 2, 3}, Shape: []uint64{2, 2}}})
	assert.Error(t, err)

	_, err = w.Write(f.Root(), field, "nested", &Quantity{Value: Array{Data: [][]int32{{1}}, Shape: []uint64{1, 1}}})
	assert.Error(t, err)

	_, err = w.Write(f.Root(), field, "map", &Quantity{Value: map[string]int{"a": 1}})
	assert.Error(t, err)
	require.NoError(t, f.Close())

	f2 := reopen(t, p)
	got := mustDataset(t, f2, "/dqmap")
	vals, err := got.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, vals)
	assert.Equal(t, []string{"target", "long_name"}, got.Attrs())
}

func TestWriteUnshapedArrayWithZeroThreshold(t *testing.T) {
	p := filepath.Join(t.TempDir(), "unshaped.h5")
	f, err := hdf5.Create(p)
	require.NoError(t, err)
	w := newFieldWriterForTest(t, WithThreshold(0))
	field := schema.Field{Key: "g2", Dimension: units.Arbitrary, Compress: true}

	ds, err := w.Write(f.Root(), field, "g2", &Quantity{Value: Array{Data: []float64{1.5}}})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ds.Shape())
	require.NoError(t, f.Close())

	vals, err := mustDataset(t, reopen(t, p), "/g2").ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, vals)
}

func TestWriteScalars(t *testing.T) {
	p := filepath.Join(t.TempDir(), "scalars.h5")
	f, err := hdf5.Create(p)
	require.NoError(t, err)
	w := newFieldWriterForTest(t)

	_, err = w.Write(f.Root(), schema.Field{Key: "energy", Dimension: units.Energy}, "energy", NewQuantity(10.9, "keV"))
	require.NoError(t, err)
	_, err = w.Write(f.Root(), schema.Field{Key: "flag"}, "flag", &Quantity{Value: true})
	require.NoError(t, err)
	_, err = w.Write(f.Root(), schema.Field{Key: "name"}, "name", Text("8-ID-I"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f2 := reopen(t, p)
	energy := mustDataset(t, f2, "/energy")
	assert.True(t, energy.IsScalar())
	assert.Equal(t, "keV", stringAttr(t, energy.Attr("units")))
	assert.Equal(t, "/energy", stringAttr(t, energy.Attr("target")))

	flag, err := mustDataset(t, f2, "/flag").ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, []uint8{1}, flag)

	assert.Equal(t, []string{"8-ID-I"}, readStrings(t, f2, "/name"))
}

func TestWriteCompressesLargeFields(t *testing.T) {
	const rows, cols = 200, 100
	data := make([][]float64, rows)
	for i := range data {
		data[i] = make([]float64, cols)
		for j := range data[i] {
			data[i][j] = 1
		}
	}

	sizes := map[bool]int64{}
	for _, compress := range []bool{false, true} {
		p := filepath.Join(t.TempDir(), "big.h5")
		f, err := hdf5.Create(p)
		require.NoError(t, err)
		w := newFieldWriterForTest(t)

		_, err = w.Write(f.Root(), schema.Field{Key: "g2", Compress: compress}, "g2", NewQuantity(data, "a.u."))
		require.NoError(t, err)
		require.NoError(t, f.Close())

		st, err := os.Stat(p)
		require.NoError(t, err)
		sizes[compress] = st.Size()

		f2 := reopen(t, p)
		vals, err := mustDataset(t, f2, "/g2").ReadFloat64()
		require.NoError(t, err)
		assert.Len(t, vals, rows*cols)
		assert.Equal(t, 1.0, vals[len(vals)-1])
	}

	assert.Greater(t, sizes[false], int64(rows*cols*8))
	assert.Less(t, sizes[true], sizes[false]/10)
}

func TestWriteThresholdOption(t *testing.T) {
	w := newFieldWriterForTest(t, WithThreshold(0), WithCompression(9))
	assert.Equal(t, 0, w.threshold)
	assert.Equal(t, 9, w.compression)

	w = newFieldWriterForTest(t, WithThreshold(-1), WithCompression(12))
	assert.Equal(t, DefaultThreshold, w.threshold)
	assert.Equal(t, DefaultCompression, w.compression)
}

func TestChunkRows(t *testing.T) {
	assert.Equal(t, []uint64{10, 0}, chunkRows([]uint64{10, 3}, 8))
	assert.Equal(t, []uint64{128, 0}, chunkRows([]uint64{1000, 1024}, 8))
	assert.Equal(t, []uint64{1, 0, 0}, chunkRows([]uint64{5, 1024, 1024}, 4))
	assert.Equal(t, []uint64{100}, chunkRows([]uint64{100}, 8))
}

func TestMaskFromROIMap(t *testing.T) {
	tests := []struct {
		name  string
		roi   interface{}
		want  []uint8
		shape []uint64
	}{
		{"nested ints", [][]int32{{0, 1}, {2, 0}}, []uint8{1, 0, 0, 1}, []uint64{2, 2}},
		{"flat", []int64{3, 0, -1}, []uint8{0, 1, 1}, []uint64{3}},
		{"floats", [][]float64{{0.5, 0}}, []uint8{0, 1}, []uint64{1, 2}},
		{"unsigned", []uint16{0, 7}, []uint8{1, 0}, []uint64{2}},
		{"array", Array{Data: []int32{0, 0, 4, 0}, Shape: []uint64{2, 2}}, []uint8{1, 1, 0, 1}, []uint64{2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := MaskFromROIMap(tt.roi)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Data)
			assert.Equal(t, tt.shape, m.Shape)
		})
	}

	_, err := MaskFromROIMap(5)
	assert.Error(t, err)
	_, err = MaskFromROIMap([]string{"a"})
	assert.Error(t, err)

	m, err := MaskFromROIMap([]int32{})
	require.NoError(t, err)
	assert.Nil(t, m.Data)
}

func TestArraySource(t *testing.T) {
	src, err := NewArraySource(Array{Data: []int16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, Shape: []uint64{5, 2}}, 2)
	require.NoError(t, err)
	assert.Equal(t, int16(0), src.Elem())

	for pass := 0; pass < 2; pass++ {
		var slabs [][]int16
		require.NoError(t, src.Slabs(func(s interface{}) error {
			slabs = append(slabs, s.([]int16))
			return nil
		}))
		assert.Equal(t, [][]int16{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10}}, slabs, "pass %d", pass)
	}

	_, err = NewArraySource(Array{Data: []int16{1}, Shape: []uint64{2}}, 1)
	assert.Error(t, err)
	_, err = NewArraySource(Array{Data: []int16{1}}, 1)
	assert.Error(t, err)
}

func TestMakeGroup(t *testing.T) {
	p := filepath.Join(t.TempDir(), "groups.h5")
	f, err := hdf5.Create(p)
	require.NoError(t, err)
	b := &GroupBuilder{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	g, err := b.MakeGroup(f.Root(), "instrument", "NXinstrument", hdf5.Attr{Name: "canSAS_class", Value: "SASinstrument"})
	require.NoError(t, err)
	_, err = b.MakeGroup(g, "detector", "NXdetector")
	require.NoError(t, err)

	_, err = b.MakeGroup(f.Root(), "instrument", "NXinstrument")
	assert.ErrorIs(t, err, ErrDuplicateGroup)
	assert.ErrorIs(t, err, hdf5.ErrExists)
	require.NoError(t, f.Close())

	f2 := reopen(t, p)
	inst, err := f2.OpenGroup("/instrument")
	require.NoError(t, err)
	assert.Equal(t, []string{"NX_class", "canSAS_class"}, inst.Attrs())
	det, err := f2.OpenGroup("/instrument/detector")
	require.NoError(t, err)
	assert.Equal(t, "NXdetector", stringAttr(t, det.Attr("NX_class")))
}
