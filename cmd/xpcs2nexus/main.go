// Command xpcs2nexus converts XPCS result files from the APS and NSLS-II
// beamlines into NeXus HDF5 files.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbosity int
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:           "xpcs2nexus",
	Short:         "Convert XPCS results to NeXus",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log detail (-v info, -vv debug)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(convertCmd, inspectCmd, unitsCmd)
}

// newLogger returns the logger selected by the global flags, writing to w.
func newLogger(w io.Writer) (*slog.Logger, error) {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	switch logFormat {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q (want text or json)", logFormat)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "xpcs2nexus:", err)
		os.Exit(1)
	}
}
