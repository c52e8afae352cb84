package nexus

import (
	"fmt"
	"path"
	"reflect"

	"github.com/google/uuid"

	"github.com/robert-malhotra/xpcs2nexus/hdf5"
	"github.com/robert-malhotra/xpcs2nexus/internal/dtype"
	"github.com/robert-malhotra/xpcs2nexus/internal/schema"
)

// CreateEntryGroup starts a new entry named "entry", or "entry_<Index>"
// when rec.Index is set, and points the root default at it. Sections
// written afterwards go into this entry.
func (c *Creator) CreateEntryGroup(rec EntryRecord) error {
	switch c.state {
	case stateClosed:
		return ErrClosed
	case stateUninitialized:
		return fmt.Errorf("%w: entry with %s", ErrOutOfOrder, c.state)
	}

	name := "entry"
	if rec.Index != nil {
		name = fmt.Sprintf("entry_%d", *rec.Index)
	}
	sec, err := c.schema.Section(schema.SectionEntry)
	if err != nil {
		return err
	}
	root := sec.Root()

	g, err := c.groups.MakeGroup(c.file.Root(), name, root.Class, groupAttrs(root.Attrs)...)
	if err != nil {
		return err
	}
	c.entry = g
	c.entryName = name
	c.nodes = map[string]*hdf5.Group{"": g}
	c.written = make(map[string]bool)
	c.claimed = false
	c.state = stateEntryOpen

	values := rec.values()
	if q := values["entry_identifier_uuid"]; q != nil && q.Value != nil {
		if s, ok := q.Value.(string); !ok || uuid.Validate(s) != nil {
			c.logger.Warn("entry_identifier_uuid is not a UUID, omitted", "entry", name, "value", q.Value)
			values["entry_identifier_uuid"] = nil
		}
	}

	if _, err := c.writeSection(schema.SectionEntry, values, nil); err != nil {
		return err
	}
	return c.file.Root().SetAttr("default", name)
}

// CreateInstrumentGroup writes instrument with its source, detector and
// monochromator. The source and monochromator are linked through
// radiation and incident_wavelength when their targets exist.
func (c *Creator) CreateInstrumentGroup(rec InstrumentRecord) error {
	if err := c.requireEntry(schema.SectionInstrument); err != nil {
		return err
	}
	_, err := c.writeSection(schema.SectionInstrument, rec.values(), nil)
	return err
}

// CreateSampleGroup writes sample. Its name is a hard link to the entry
// title when the entry has one.
func (c *Creator) CreateSampleGroup(rec SampleRecord) error {
	if err := c.requireEntry(schema.SectionSample); err != nil {
		return err
	}
	_, err := c.writeSection(schema.SectionSample, rec.values(), nil)
	return err
}

// CreateXPCSGroup writes the XPCS process group with its data, twotime
// and masks subgroups. The plotted signal is the first of g2, the two-time
// function and tau that was written; without any of them the section is
// written without a signal and a warning is logged.
func (c *Creator) CreateXPCSGroup(rec XPCSRecord) error {
	if err := c.requireEntry(schema.SectionXPCS); err != nil {
		return err
	}
	_, err := c.writeSection(schema.SectionXPCS, rec.values(), rec.streams())
	return err
}

// CreateSAXS1DGroup writes the canSAS subentry for I(Q). I_axes is set on
// the data group when Q is written.
func (c *Creator) CreateSAXS1DGroup(rec SAXS1DRecord) error {
	if err := c.requireEntry(schema.SectionSAXS1D); err != nil {
		return err
	}
	written, err := c.writeSection(schema.SectionSAXS1D, rec.values(), nil)
	if err != nil {
		return err
	}

	q, ok := written["Q"]
	if !ok {
		return nil
	}
	return c.nodes[parentOf(q)].SetAttrs(
		hdf5.Attr{Name: "I_axes", Value: path.Base(q)},
		hdf5.Attr{Name: "Q_indices", Value: int32(0)},
	)
}

// CreateSAXS2DGroup writes the canSAS subentry for the averaged detector
// image. The pixel mask is derived from rec.ROIMap with MaskFromROIMap.
func (c *Creator) CreateSAXS2DGroup(rec SAXS2DRecord) error {
	if err := c.requireEntry(schema.SectionSAXS2D); err != nil {
		return err
	}

	values := map[string]*Quantity{"I": rec.I}
	if rec.ROIMap != nil && rec.ROIMap.Value != nil {
		mask, err := MaskFromROIMap(rec.ROIMap.Value)
		if err != nil {
			return fmt.Errorf("SAXS_2D mask: %w", err)
		}
		if mask.Data != nil {
			values["mask"] = &Quantity{Value: mask, Units: "boolean"}
		}
	}

	written, err := c.writeSection(schema.SectionSAXS2D, values, nil)
	if err != nil {
		return err
	}

	m, ok := written["mask"]
	if !ok {
		return nil
	}
	return c.nodes[parentOf(m)].SetAttr("mask", path.Base(m))
}

// MaskFromROIMap converts a dynamic ROI map into a canSAS pixel mask:
// pixels inside an ROI (value > 0) become 0 (used), all others 1 (masked).
// roi is a numeric (nested) slice or an Array; the mask keeps its shape.
func MaskFromROIMap(roi interface{}) (Array, error) {
	var (
		flat  reflect.Value
		shape []uint64
	)
	if a, ok := roi.(Array); ok {
		v, err := a.check()
		if err != nil {
			return Array{}, err
		}
		flat, shape = v, a.Shape
	} else {
		v, err := inspectValue(roi)
		if err != nil {
			return Array{}, err
		}
		if v.scalar || v.text {
			return Array{}, fmt.Errorf("ROI map must be a numeric array, got %T", roi)
		}
		if v.empty {
			return Array{}, nil
		}
		flat, shape = dtype.Flatten(reflect.ValueOf(v.data)), v.dims
	}

	mask := make([]uint8, flat.Len())
	for i := range mask {
		e := flat.Index(i)
		var inside bool
		switch e.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			inside = e.Int() > 0
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			inside = e.Uint() > 0
		case reflect.Float32, reflect.Float64:
			inside = e.Float() > 0
		default:
			return Array{}, fmt.Errorf("ROI map element %s is not numeric", e.Type())
		}
		if !inside {
			mask[i] = 1
		}
	}
	return Array{Data: mask, Shape: shape}, nil
}
