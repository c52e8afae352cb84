package nexus

import (
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/robert-malhotra/xpcs2nexus/hdf5"
)

// GroupBuilder creates NeXus groups.
type GroupBuilder struct {
	logger *slog.Logger
}

// MakeGroup creates exactly one child of parent tagged with NX_class and
// any extra attributes. A name already used by a sibling fails with
// ErrDuplicateGroup.
func (b *GroupBuilder) MakeGroup(parent *hdf5.Group, name, class string, attrs ...hdf5.Attr) (*hdf5.Group, error) {
	groupPath := path.Join(parent.Path(), name)

	g, err := parent.CreateGroup(name)
	if errors.Is(err, hdf5.ErrExists) {
		return nil, fmt.Errorf("%w: %s: %w", ErrDuplicateGroup, groupPath, err)
	}
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", groupPath, err)
	}

	all := make([]hdf5.Attr, 0, len(attrs)+1)
	all = append(all, hdf5.Attr{Name: "NX_class", Value: class})
	all = append(all, attrs...)
	if err := g.SetAttrs(all...); err != nil {
		return nil, fmt.Errorf("group %s: %w", groupPath, err)
	}

	b.logger.Debug("group created", "group", groupPath, "class", class)
	return g, nil
}
