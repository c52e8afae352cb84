package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/xpcs2nexus/internal/units"
)

func TestDefaultLoads(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "2025.1", s.Version)
	assert.Equal(t, NamingLegacy, s.DefaultNaming)

	for _, name := range []string{SectionEntry, SectionInstrument, SectionSample, SectionXPCS, SectionSAXS1D, SectionSAXS2D} {
		_, err := s.Section(name)
		assert.NoError(t, err, name)
	}

	_, err = s.Section("nope")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestOutputNames(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)
	xpcs, err := s.Section(SectionXPCS)
	require.NoError(t, err)

	tests := []struct {
		key         string
		legacy      string
		descriptive string
	}{
		{"tau", "tau", "delay_difference"},
		{"twotime", "twotime", "two_time_corr_func"},
		{"frame_sum", "frameSum", "frame_sum"},
		{"dqmap", "dqmap", "dynamic_roi_map"},
		{"g2", "g2", "g2"},
	}
	for _, tt := range tests {
		f, ok := xpcs.Field(tt.key)
		require.True(t, ok, tt.key)
		assert.Equal(t, tt.legacy, f.OutputName(NamingLegacy))
		assert.Equal(t, tt.descriptive, f.OutputName(NamingDescriptive))
	}

	f, _ := xpcs.Field("tau")
	assert.Equal(t, "XPCS/data/delay_difference", FieldPath(f, NamingDescriptive))
	assert.Equal(t, units.Time, f.Dimension)
	assert.True(t, f.Compress)
}

func TestSectionShape(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	xpcs, _ := s.Section(SectionXPCS)
	assert.Equal(t, []string{"g2", "twotime", "tau"}, xpcs.Signal)
	assert.Equal(t, "XPCS", xpcs.Root().Path)
	assert.Equal(t, "NXprocess", xpcs.Root().Class)

	entry, _ := s.Section(SectionEntry)
	def, ok := entry.Field("definition")
	require.True(t, ok)
	assert.True(t, def.Constant())
	assert.Equal(t, "NXxpcs", def.Value)
	assert.Equal(t, "definition", FieldPath(def, NamingLegacy))

	inst, _ := s.Section(SectionInstrument)
	src, _ := inst.Field("source_type")
	assert.Equal(t, "instrument/source/type", FieldPath(src, NamingDescriptive))
	assert.Contains(t, inst.Links, Link{From: "instrument/source/radiation", To: "instrument/source/type"})

	saxs, _ := s.Section(SectionSAXS1D)
	assert.Equal(t, "SASentry", saxs.Root().Attrs["canSAS_class"])
	assert.Equal(t, "1.1", saxs.Root().Attrs["version"])
}

func TestParseNaming(t *testing.T) {
	n, err := ParseNaming(" Descriptive ")
	require.NoError(t, err)
	assert.Equal(t, NamingDescriptive, n)

	_, err = ParseNaming("fancy")
	assert.Error(t, err)
}

// minimal builds a valid table with every required section and lets the
// caller replace one of them.
func minimal(section string) string {
	var b strings.Builder
	b.WriteString("version: test\nsections:\n")
	for _, name := range []string{SectionEntry, SectionInstrument, SectionSample, SectionXPCS, SectionSAXS1D, SectionSAXS2D} {
		if name == SectionXPCS && section != "" {
			b.WriteString(section)
			continue
		}
		b.WriteString("  - name: " + name + "\n    groups: [{path: " + name + ", class: NXcollection}]\n")
	}
	return b.String()
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(strings.NewReader(minimal("")))
	require.NoError(t, err)

	tests := []struct {
		name  string
		table string
	}{
		{"missing version", "sections: []\n"},
		{"unknown key", "version: x\nextra: 1\n"},
		{"bad naming", "version: x\ndefault_naming: fancy\n"},
		{"missing sections", "version: x\nsections: []\n"},
		{"undeclared group", minimal(`  - name: xpcs
    groups: [{path: XPCS, class: NXprocess}]
    fields: [{key: g2, group: XPCS/data}]
`)},
		{"duplicate names", minimal(`  - name: xpcs
    groups: [{path: XPCS, class: NXprocess}]
    fields: [{key: a, name: g2, group: XPCS}, {key: b, name: g2, group: XPCS}]
`)},
		{"bad signal", minimal(`  - name: xpcs
    groups: [{path: XPCS, class: NXprocess}]
    signal: [g2]
`)},
		{"link outside", minimal(`  - name: xpcs
    groups: [{path: XPCS, class: NXprocess}]
    links: [{from: other/title, to: title}]
`)},
		{"orphan group", minimal(`  - name: xpcs
    groups: [{path: XPCS, class: NXprocess}, {path: XPCS/a/b, class: NXdata}]
`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.table))
			assert.Error(t, err)
		})
	}
}
