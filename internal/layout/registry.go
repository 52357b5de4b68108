package layout

import (
	"fmt"
	"sort"
)

// Registry resolves layouts by ID. It is read-only once built and safe for
// concurrent use.
type Registry struct {
	layouts   map[string]*Layout
	order     []string
	defaultID string
}

// NewRegistry validates and indexes the given layouts. Later layouts with the
// same ID replace earlier ones, which lets a layout file override a built-in.
func NewRegistry(defaultID string, layouts ...*Layout) (*Registry, error) {
	r := &Registry{
		layouts:   make(map[string]*Layout, len(layouts)),
		defaultID: defaultID,
	}

	for _, l := range layouts {
		if l == nil {
			continue
		}
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("invalid layout: %w", err)
		}
		if _, exists := r.layouts[l.ID]; !exists {
			r.order = append(r.order, l.ID)
		}
		r.layouts[l.ID] = l
	}

	if len(r.layouts) == 0 {
		return nil, fmt.Errorf("no layouts registered")
	}
	if _, ok := r.layouts[defaultID]; !ok {
		return nil, fmt.Errorf("default layout %q is not registered", defaultID)
	}

	return r, nil
}

// Get returns the layout with the given ID, or the default one for ""
func (r *Registry) Get(id string) (*Layout, error) {
	if id == "" {
		id = r.defaultID
	}
	l, ok := r.layouts[id]
	if !ok {
		return nil, fmt.Errorf("unknown layout: %s", id)
	}
	return l, nil
}

// Default returns the default layout
func (r *Registry) Default() *Layout {
	return r.layouts[r.defaultID]
}

// DefaultID returns the ID of the default layout
func (r *Registry) DefaultID() string {
	return r.defaultID
}

// List returns the layouts sorted by ID. IDs are dates, so this is also
// chronological order.
func (r *Registry) List() []*Layout {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	sort.Strings(ids)

	out := make([]*Layout, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.layouts[id])
	}
	return out
}
