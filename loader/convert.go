package loader

import (
	"fmt"

	"github.com/robert-malhotra/xpcs2nexus/nexus"
)

// ConvertOptions adjusts the records before they are written.
type ConvertOptions struct {
	// EntryIndex names the entry entry_<EntryIndex>; nil writes "entry".
	EntryIndex *int
	// Title replaces the title read from the source when not empty.
	Title string
}

// Convert reads every section from src and writes it through c in the
// order entry, instrument, sample, XPCS, SAXS_1D, SAXS_2D. c must have an
// initialized file; Convert neither opens nor closes it.
func Convert(src Source, c *nexus.Creator, opts ConvertOptions) error {
	entry, err := src.Entry()
	if err != nil {
		return fmt.Errorf("reading entry: %w", err)
	}
	entry.Index = opts.EntryIndex
	if opts.Title != "" {
		entry.Title = nexus.Text(opts.Title)
	}
	if err := c.CreateEntryGroup(entry); err != nil {
		return err
	}

	instrument, err := src.Instrument()
	if err != nil {
		return fmt.Errorf("reading instrument: %w", err)
	}
	if err := c.CreateInstrumentGroup(instrument); err != nil {
		return err
	}

	sample, err := src.Sample()
	if err != nil {
		return fmt.Errorf("reading sample: %w", err)
	}
	if err := c.CreateSampleGroup(sample); err != nil {
		return err
	}

	xpcs, err := src.XPCS()
	if err != nil {
		return fmt.Errorf("reading XPCS results: %w", err)
	}
	if err := c.CreateXPCSGroup(xpcs); err != nil {
		return err
	}

	saxs1d, err := src.SAXS1D()
	if err != nil {
		return fmt.Errorf("reading SAXS_1D: %w", err)
	}
	if err := c.CreateSAXS1DGroup(saxs1d); err != nil {
		return err
	}

	saxs2d, err := src.SAXS2D()
	if err != nil {
		return fmt.Errorf("reading SAXS_2D: %w", err)
	}
	return c.CreateSAXS2DGroup(saxs2d)
}
