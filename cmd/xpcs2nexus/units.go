package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/xpcs2nexus/internal/units"
)

var unitsFlags struct {
	check bool
	table string
}

var unitsCmd = &cobra.Command{
	Use:   "units [DIMENSION UNIT]",
	Short: "List known units, or check one unit against a dimension",
	Args: func(cmd *cobra.Command, args []string) error {
		if unitsFlags.check {
			return cobra.ExactArgs(2)(cmd, args)
		}
		return cobra.NoArgs(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		r, err := units.New(units.WithLogger(logger))
		if unitsFlags.table != "" {
			f, ferr := os.Open(unitsFlags.table)
			if ferr != nil {
				return ferr
			}
			defer f.Close()
			r, err = units.Load(f, units.WithLogger(logger))
		}
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if unitsFlags.check {
			dim := units.Dimension(args[0])
			canonical, err := r.Canonical(dim)
			if err != nil {
				return err
			}
			d := r.Validate("check", dim, args[1])
			verdict := "rejected"
			if d.Accepted {
				verdict = "accepted"
			}
			fmt.Fprintf(w, "%s as %s (canonical %s): %s", args[1], dim, canonical, verdict)
			if d.Reason != "" {
				fmt.Fprintf(w, ", %s", d.Reason)
			}
			fmt.Fprintln(w)
			if !d.Accepted {
				return fmt.Errorf("unit %q is not a %s unit", args[1], dim)
			}
			return nil
		}

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tDIMENSIONS\tSCALE\tPREFIX\tALIASES")
		for _, u := range r.Describe() {
			prefix := ""
			if u.Prefixable {
				prefix = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%s\n", u.Symbol, u.Dims, u.Scale, prefix, strings.Join(u.Aliases, ", "))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(w, "\ntable version %d; dimensions:", r.Version())
		for _, d := range r.Dimensions() {
			fmt.Fprintf(w, " %s", d)
		}
		fmt.Fprintln(w)
		return nil
	},
}

func init() {
	unitsCmd.Flags().BoolVar(&unitsFlags.check, "check", false, "Check UNIT against DIMENSION")
	unitsCmd.Flags().StringVar(&unitsFlags.table, "units", "", "Unit table merged over the built-in one")
}
