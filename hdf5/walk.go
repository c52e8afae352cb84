package hdf5

import "errors"

// SkipGroup returned from a WalkFunc for a group skips its members.
var SkipGroup = errors.New("skip this group")

// WalkFunc is called for each object Walk visits. obj is a *Group or a
// *Dataset, or nil when err reports why the object at path could not be
// opened. Returning an error other than SkipGroup stops the walk.
type WalkFunc func(path string, obj interface{}, err error) error

// Walk visits g and everything below it, depth first in link order. An
// object reachable through several hard links is visited once per link.
func Walk(g *Group, fn WalkFunc) error {
	err := walk(g, fn)
	if errors.Is(err, SkipGroup) {
		return nil
	}
	return err
}

func walk(g *Group, fn WalkFunc) error {
	if err := fn(g.path, g, nil); err != nil {
		return err
	}
	members, err := g.Members()
	if err != nil {
		return fn(g.path, nil, err)
	}
	for _, name := range members {
		p := g.childPath(name)
		obj, err := g.open(name)
		if err != nil {
			if err := fn(p, nil, err); err != nil {
				return err
			}
			continue
		}
		switch o := obj.(type) {
		case *Group:
			err = walk(o, fn)
			if errors.Is(err, SkipGroup) {
				err = nil
			}
		default:
			err = fn(p, o, nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
