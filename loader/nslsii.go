package loader

import (
	"reflect"
	"sort"
	"strconv"

	"github.com/batchatco/go-thrower"

	"github.com/robert-malhotra/xpcs2nexus/nexus"
)

// Paths of the NSLS-II CHX layout. Metadata are attributes of md; the
// dynamic q list is the attributes of qval_dict, one [q, phi] pair per
// ROI index.
const (
	chxMetadata = "/md"
	chxQvalDict = "/qval_dict"
)

// nslsiiSource reads CHX result files.
type nslsiiSource struct {
	*reader
	qValues bool
}

func (s *nslsiiSource) Entry() (rec nexus.EntryRecord, err error) {
	defer thrower.RecoverError(&err)

	rec.ExperimentDescription = s.attrText(chxMetadata, "Measurement")
	rec.Title = s.attrText(chxMetadata, "sample")
	rec.EntryIdentifier = s.attrText(chxMetadata, "suid")
	rec.EntryIdentifierUUID = s.attrText(chxMetadata, "uid")
	rec.ScanNumber = s.attrQuantity(chxMetadata, "scan_id", "")
	rec.StartTime = s.attrText(chxMetadata, "start_time")
	rec.EndTime = s.attrText(chxMetadata, "stop_time")
	return rec, nil
}

func (s *nslsiiSource) Instrument() (rec nexus.InstrumentRecord, err error) {
	defer thrower.RecoverError(&err)

	rec.Name = nexus.Text("NSLS-II CHX")
	rec.SourceName = nexus.Text("National Synchrotron Light Source II")
	rec.SourceProbe = nexus.Text("x-ray")
	rec.SourceType = nexus.Text("Synchrotron X-ray Source")

	rec.CountTime = s.attrQuantity(chxMetadata, "count_time", "ms")
	rec.FrameTime = s.attrQuantity(chxMetadata, "frame_time", "ms")
	rec.Description = s.attrText(chxMetadata, "detector")
	rec.Distance = s.attrQuantity(chxMetadata, "detector_distance", "m")
	rec.XPixelSize = s.attrQuantity(chxMetadata, "x_pixel_size", "um")
	rec.YPixelSize = s.attrQuantity(chxMetadata, "y_pixel_size", "um")
	rec.BeamCenterX = s.attrQuantity(chxMetadata, "beam_center_x", "pixel")
	rec.BeamCenterY = s.attrQuantity(chxMetadata, "beam_center_y", "pixel")
	rec.Energy = s.attrQuantity(chxMetadata, "eiger4m_single_photon_energy", "eV")
	rec.Wavelength = wavelength(rec.Energy)
	return rec, nil
}

// Sample returns an empty record: CHX files carry no sample environment.
// The sample name still links to the entry title.
func (s *nslsiiSource) Sample() (nexus.SampleRecord, error) {
	return nexus.SampleRecord{}, nil
}

func (s *nslsiiSource) XPCS() (rec nexus.XPCSRecord, err error) {
	defer thrower.RecoverError(&err)

	rec.G2 = dropLeading(s.array("/g2", "a.u."))
	rec.G2Stderr = dropLeading(s.array("/g2_stderr", "a.u."))
	rec.Tau = dropLeading(s.array("/taus", "s"))
	rec.FrameSum = s.array("/imgsum", "a.u.")
	rec.TwoTimeStream, rec.TwoTime = s.stream("/g12b", "a.u.")
	rec.G2TwoTime = s.array("/g2_twotime", "a.u.")
	rec.G2PartialsTwoTime = s.array("/g2_partials_twotime", "a.u.")

	rec.Mask = s.array("/mask", "")
	rec.DQMap = s.array("/roi_mask", "")
	rec.DQList = s.qList()
	rec.DPhiList = s.array("/dphi", "deg")
	rec.SQMap = s.array("/sqmap", "")
	return rec, nil
}

func (s *nslsiiSource) SAXS1D() (rec nexus.SAXS1DRecord, err error) {
	defer thrower.RecoverError(&err)

	rec.I = s.array("/iq_saxs", "a.u.")
	rec.Q = s.array("/q_saxs", "1/angstrom")
	rec.IPartial = s.array("/I_partial", "a.u.")
	return rec, nil
}

func (s *nslsiiSource) SAXS2D() (rec nexus.SAXS2DRecord, err error) {
	defer thrower.RecoverError(&err)

	rec.I = s.array("/avg_img", "a.u.")
	rec.ROIMap = s.array("/roi_mask", "")
	return rec, nil
}

// qList reads the q value of every ROI from qval_dict, ordered by ROI
// index. Without q values it returns the 1-based ROI indices.
func (s *nslsiiSource) qList() *nexus.Quantity {
	g := s.group(chxQvalDict)
	if g == nil {
		return nil
	}

	type roi struct {
		index int
		q     float64
	}
	var rois []roi
	for _, name := range g.Attrs() {
		i, err := strconv.Atoi(name)
		if err != nil {
			s.logger.Debug("qval_dict attribute skipped", "attr", name)
			continue
		}
		v, err := g.Attr(name).Value()
		if err != nil {
			s.fail(chxQvalDict+"@"+name, err)
		}
		q, ok := number(&nexus.Quantity{Value: firstOf(v)})
		if !ok {
			s.logger.Debug("qval_dict entry is not numeric", "attr", name, "value", v)
			continue
		}
		rois = append(rois, roi{index: i, q: q})
	}
	if len(rois) == 0 {
		return nil
	}
	sort.Slice(rois, func(a, b int) bool { return rois[a].index < rois[b].index })

	if !s.qValues {
		return &nexus.Quantity{Value: roiIndices(len(rois))}
	}
	qs := make([]float64, len(rois))
	for i, r := range rois {
		qs[i] = r.q
	}
	return nexus.NewQuantity(qs, "1/angstrom")
}

// firstOf returns the first element of a slice value and v itself
// otherwise.
func firstOf(v interface{}) interface{} {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
		return first(v)
	}
	return v
}

// dropLeading removes the first entry along the leading axis of q. CHX
// correlation results start with the zero-delay point, which is not a lag.
func dropLeading(q *nexus.Quantity) *nexus.Quantity {
	if q == nil {
		return nil
	}
	switch v := q.Value.(type) {
	case nexus.Array:
		if len(v.Shape) == 0 || v.Shape[0] == 0 {
			return q
		}
		data := reflect.ValueOf(v.Data)
		row := data.Len() / int(v.Shape[0])
		shape := append([]uint64{v.Shape[0] - 1}, v.Shape[1:]...)
		q.Value = nexus.Array{Data: data.Slice(row, data.Len()).Interface(), Shape: shape}
	default:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.Len() > 0 {
			q.Value = rv.Slice(1, rv.Len()).Interface()
		}
	}
	return q
}
