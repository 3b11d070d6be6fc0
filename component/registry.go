package component

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Project-NEURIA/OpenNeuro/errors"
)

// Registry holds the component descriptors known to the process. Components
// are registered explicitly at startup; the registry is effectively
// immutable afterwards.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Descriptor)}
}

// Register adds a descriptor to the registry. It fails on invalid
// descriptors and duplicate names.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[d.Name]; ok {
		return fmt.Errorf("component %s already registered", d.Name)
	}
	r.byName[d.Name] = d
	return nil
}

// MustRegister registers a descriptor and panics on failure. Intended for
// package-level built-in registration.
func (r *Registry) MustRegister(d *Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Get returns the descriptor for name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// List returns all descriptors ordered by category (source, conduit, sink)
// then name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	out := make([]*Descriptor, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ri, rj := categoryRank(out[i].Category), categoryRank(out[j].Category)
		if ri != rj {
			return ri < rj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func categoryRank(c Category) int {
	switch c {
	case CategorySource:
		return 0
	case CategoryConduit:
		return 1
	default:
		return 2
	}
}

// Instantiate validates args against the descriptor's init schema and
// constructs the component. It fails with ComponentNotFound for unknown
// names and InvalidArgs for schema violations.
func (r *Registry) Instantiate(name string, args map[string]any) (Component, error) {
	d, ok := r.Get(name)
	if !ok {
		return nil, errors.New(errors.KindComponentNotFound, "unknown component: %s", name)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := r.validateArgs(d, args); err != nil {
		return nil, err
	}

	comp, err := d.New(args)
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidArgs, err)
	}
	return comp, nil
}

// validateArgs runs JSON-schema validation of args against the init
// parameter schemas.
func (r *Registry) validateArgs(d *Descriptor, args map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(initDocument(d.Init))
	docLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return errors.Wrap(errors.KindInvalidArgs, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return errors.New(errors.KindInvalidArgs, "init args for %s: %s", d.Name, strings.Join(msgs, "; "))
}
