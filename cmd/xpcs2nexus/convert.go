package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/xpcs2nexus/internal/schema"
	"github.com/robert-malhotra/xpcs2nexus/internal/units"
	"github.com/robert-malhotra/xpcs2nexus/loader"
	"github.com/robert-malhotra/xpcs2nexus/nexus"
)

var convertFlags struct {
	output      string
	format      string
	qValues     bool
	naming      string
	entryIndex  int
	title       string
	compression int
	schemaPath  string
	unitsPath   string
	force       bool
}

var convertCmd = &cobra.Command{
	Use:   "convert [input]",
	Short: "Convert one APS or NSLS-II result file to NeXus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		return runConvert(cmd, args[0], logger)
	},
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertFlags.output, "output", "o", "", "Output file (default: input name with .nxs)")
	f.StringVar(&convertFlags.format, "format", "auto", "Source layout: aps, nslsii or auto")
	f.BoolVar(&convertFlags.qValues, "q-values", true, "Write q values rather than ROI indices as the dynamic q list")
	f.StringVar(&convertFlags.naming, "naming", "", "Field naming: legacy or descriptive (default from the schema)")
	f.IntVar(&convertFlags.entryIndex, "entry-index", -1, "Name the entry entry_N instead of entry")
	f.StringVar(&convertFlags.title, "title", "", "Entry title (default from the source)")
	f.IntVar(&convertFlags.compression, "compression", nexus.DefaultCompression, "Deflate level for large fields, 0 disables")
	f.StringVar(&convertFlags.schemaPath, "schema", "", "NeXus layout table replacing the built-in one")
	f.StringVar(&convertFlags.unitsPath, "units", "", "Unit table merged over the built-in one")
	f.BoolVarP(&convertFlags.force, "force", "f", false, "Overwrite an existing output file")
}

func runConvert(cmd *cobra.Command, input string, logger *slog.Logger) (err error) {
	start := time.Now()

	output := convertFlags.output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".nxs"
	}
	if err := checkOutput(input, output, convertFlags.force); err != nil {
		return err
	}

	kind, err := loader.ParseKind(convertFlags.format)
	if err != nil {
		return err
	}
	opts, err := creatorOptions(logger)
	if err != nil {
		return err
	}

	src, err := loader.Open(kind, input, loader.WithLogger(logger), loader.WithQValues(convertFlags.qValues))
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := fmt.Sprintf("%s.%s.tmp", output, uuid.NewString())
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	c, err := nexus.Create(tmp, append(opts, nexus.WithFileName(output))...)
	if err != nil {
		return err
	}
	var convOpts loader.ConvertOptions
	if convertFlags.entryIndex >= 0 {
		convOpts.EntryIndex = nexus.EntryIndex(convertFlags.entryIndex)
	}
	convOpts.Title = convertFlags.title
	if err := loader.Convert(src, c, convOpts); err != nil {
		c.Close()
		return fmt.Errorf("converting %s: %w", input, err)
	}
	if err := c.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, output); err != nil {
		return fmt.Errorf("moving output into place: %w", err)
	}

	in, err := os.Stat(input)
	if err != nil {
		return err
	}
	out, err := os.Stat(output)
	if err != nil {
		return err
	}
	logger.Info("conversion finished",
		"input", input,
		"output", output,
		"input_size", humanize.Bytes(uint64(in.Size())),
		"output_size", humanize.Bytes(uint64(out.Size())),
		"elapsed", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", input, output, humanize.Bytes(uint64(out.Size())))
	return nil
}

// checkOutput refuses to overwrite the input, and an existing output
// unless force is set.
func checkOutput(input, output string, force bool) error {
	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	absOut, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	if absIn == absOut {
		return fmt.Errorf("output %s would overwrite the input", output)
	}
	if inInfo, err := os.Stat(input); err == nil {
		if outInfo, err := os.Stat(output); err == nil && os.SameFile(inInfo, outInfo) {
			return fmt.Errorf("output %s is the input file", output)
		}
	}

	_, err = os.Stat(output)
	switch {
	case err == nil && !force:
		return fmt.Errorf("output %s exists (use --force to overwrite)", output)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("checking output: %w", err)
	}
	return nil
}

// creatorOptions builds the creator options from the convert flags.
func creatorOptions(logger *slog.Logger) ([]nexus.Option, error) {
	opts := []nexus.Option{
		nexus.WithLogger(logger),
		nexus.WithCompression(convertFlags.compression),
		nexus.WithCreatorName("xpcs2nexus"),
	}

	if convertFlags.schemaPath != "" {
		f, err := os.Open(convertFlags.schemaPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		s, err := schema.Load(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", convertFlags.schemaPath, err)
		}
		opts = append(opts, nexus.WithSchema(s))
	}

	if convertFlags.unitsPath != "" {
		f, err := os.Open(convertFlags.unitsPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r, err := units.Load(f, units.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", convertFlags.unitsPath, err)
		}
		opts = append(opts, nexus.WithUnits(r))
	}

	if convertFlags.naming != "" {
		n, err := schema.ParseNaming(convertFlags.naming)
		if err != nil {
			return nil, err
		}
		opts = append(opts, nexus.WithNaming(n))
	}
	return opts, nil
}
