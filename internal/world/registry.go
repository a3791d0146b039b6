package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"mu-client/internal/modellist"
)

// ErrUnknownType is returned by Spawn for a type nothing registered.
var ErrUnknownType = errors.New("world: unknown model type")

// Entry describes how to create the objects of a contiguous type range.
type Entry struct {
	Name    string
	MinType uint16
	MaxType uint16 // inclusive
	// ModelPath returns the data-relative model file of a type.
	ModelPath func(typ uint16) string
	// Configure, when set, runs on every new object before its load starts.
	Configure func(o *Object)
}

// Registry maps model types to entries.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry // sorted by MinType, non-overlapping
}

func NewRegistry() *Registry { return &Registry{} }

// Register adds e. Ranges must not overlap.
func (r *Registry) Register(e Entry) error {
	if e.MaxType < e.MinType {
		return fmt.Errorf("world: register %s: empty type range %d-%d", e.Name, e.MinType, e.MaxType)
	}
	if e.ModelPath == nil {
		return fmt.Errorf("world: register %s: no model path", e.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].MinType > e.MinType })
	if i > 0 && r.entries[i-1].MaxType >= e.MinType {
		return fmt.Errorf("world: register %s: types %d-%d overlap %s", e.Name, e.MinType, e.MaxType, r.entries[i-1].Name)
	}
	if i < len(r.entries) && r.entries[i].MinType <= e.MaxType {
		return fmt.Errorf("world: register %s: types %d-%d overlap %s", e.Name, e.MinType, e.MaxType, r.entries[i].Name)
	}
	r.entries = append(r.entries, Entry{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = e
	return nil
}

// Lookup returns the entry covering typ.
func (r *Registry) Lookup(typ uint16) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].MaxType >= typ })
	if i < len(r.entries) && r.entries[i].MinType <= typ {
		return r.entries[i], true
	}
	return Entry{}, false
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Spawn creates an object of typ and starts loading its model from src.
func (r *Registry) Spawn(ctx context.Context, typ uint16, deps Deps, src ModelSource) (*Object, error) {
	e, ok := r.Lookup(typ)
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownType, typ)
	}
	o := NewObject(deps)
	o.Type = typ
	o.Name = e.Name
	if e.Configure != nil {
		e.Configure(o)
	}
	o.LoadAsync(ctx, src, e.ModelPath(typ))
	return o, nil
}

// RegisterModelList registers one entry per model list definition.
func (r *Registry) RegisterModelList(defs []modellist.ModelDef) error {
	for _, d := range defs {
		err := r.Register(Entry{
			Name:      d.Name,
			MinType:   d.Type,
			MaxType:   d.MaxType,
			ModelPath: d.ModelPath,
			Configure: func(o *Object) {
				o.LightEnabled = d.LightEnabled
				o.BodyHeight = d.BodyHeight
				o.SetScale(d.Scale)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
