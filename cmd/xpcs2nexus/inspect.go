package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/xpcs2nexus/hdf5"
)

var inspectAttrs bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Print the group and dataset tree of an HDF5 file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := hdf5.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s (superblock v%d)\n", args[0], f.Version())
		t := &tree{w: w, attrs: inspectAttrs, seen: map[uint64]string{}}
		t.group(f.Root(), "")
		fmt.Fprintf(w, "%d groups, %d datasets, %d links, %s of data\n",
			t.groups, t.datasets, t.links, humanize.Bytes(t.bytes))
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectAttrs, "attrs", false, "Print attribute values")
}

// maxDepth bounds the walk of damaged files.
const maxDepth = 20

// tree prints a file hierarchy. Objects reached again through a hard link
// are printed once, later paths point back to the first.
type tree struct {
	w     io.Writer
	attrs bool
	seen  map[uint64]string

	groups, datasets, links int
	bytes                   uint64
}

func (t *tree) linked(addr uint64, p, indent string) bool {
	if first, ok := t.seen[addr]; ok {
		fmt.Fprintf(t.w, "%s%s => %s\n", indent, nameOf(p), first)
		t.links++
		return true
	}
	t.seen[addr] = p
	return false
}

func (t *tree) group(g *hdf5.Group, indent string) {
	if t.linked(g.Address(), g.Path(), indent) {
		return
	}
	t.groups++

	class := ""
	if a := g.Attr("NX_class"); a != nil {
		if s, err := a.ReadScalarString(); err == nil {
			class = " " + s
		}
	}
	fmt.Fprintf(t.w, "%s%s/%s\n", indent, nameOf(g.Path()), class)
	if t.attrs {
		t.printAttrs(g.Attrs(), g.Attr, indent+"  ")
	}

	if len(indent)/2 >= maxDepth {
		fmt.Fprintf(t.w, "%s  [max depth reached]\n", indent)
		return
	}

	members, err := g.Members()
	if err != nil {
		fmt.Fprintf(t.w, "%s  error listing members: %v\n", indent, err)
		return
	}
	for _, name := range members {
		if sub, err := g.OpenGroup(name); err == nil {
			t.group(sub, indent+"  ")
			continue
		}
		ds, err := g.OpenDataset(name)
		if err != nil {
			fmt.Fprintf(t.w, "%s  %s: %v\n", indent, name, err)
			continue
		}
		t.dataset(ds, indent+"  ")
	}
}

func (t *tree) dataset(ds *hdf5.Dataset, indent string) {
	if t.linked(ds.Address(), ds.Path(), indent) {
		return
	}
	t.datasets++

	size := ds.NumElements() * uint64(ds.DtypeSize())
	t.bytes += size

	shape := "scalar"
	if !ds.IsScalar() {
		dims := make([]string, len(ds.Shape()))
		for i, d := range ds.Shape() {
			dims[i] = fmt.Sprint(d)
		}
		shape = "[" + strings.Join(dims, " x ") + "]"
	}
	fmt.Fprintf(t.w, "%s%s %s %s", indent, nameOf(ds.Path()), shape, humanize.Bytes(size))
	if a := ds.Attr("units"); a != nil {
		if s, err := a.ReadScalarString(); err == nil {
			fmt.Fprintf(t.w, " (%s)", s)
		}
	}
	fmt.Fprintln(t.w)
	if t.attrs {
		t.printAttrs(ds.Attrs(), ds.Attr, indent+"  ")
	}
}

func (t *tree) printAttrs(names []string, get func(string) *hdf5.Attribute, indent string) {
	names = append([]string(nil), names...)
	sort.Strings(names)
	for _, name := range names {
		v, err := get(name).Value()
		if err != nil {
			fmt.Fprintf(t.w, "%s@%s: %v\n", indent, name, err)
			continue
		}
		fmt.Fprintf(t.w, "%s@%s = %v\n", indent, name, v)
	}
}

func nameOf(p string) string {
	if p == "/" {
		return ""
	}
	return p[strings.LastIndex(p, "/")+1:]
}
