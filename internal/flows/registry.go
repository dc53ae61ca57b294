package flows

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"
)

var (
	ErrDuplicateFlow   = errors.New("flow already registered")
	ErrRegistrySealed  = errors.New("registry is sealed")
	ErrInvalidContract = errors.New("invalid flow contract")
)

// Registry maps flow names to flows. Registration happens once at startup;
// after Seal the registry is read-only and safe for concurrent readers
// without locking.
type Registry struct {
	flows  map[string]*Flow
	sealed atomic.Bool
}

// NewRegistry creates an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{flows: make(map[string]*Flow)}
}

// Register validates and compiles a flow's contract and adds it. It must
// not be called concurrently with itself or after Seal.
func (r *Registry) Register(f *Flow) error {
	if r.sealed.Load() {
		return ErrRegistrySealed
	}
	if f == nil || strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidContract)
	}
	if _, ok := r.flows[f.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFlow, f.Name)
	}
	if f.Version != "" {
		if _, err := semver.NewVersion(f.Version); err != nil {
			return fmt.Errorf("%w: %s version %q: %v", ErrInvalidContract, f.Name, f.Version, err)
		}
	}
	if f.build == nil {
		return fmt.Errorf("%w: %s has no request builder", ErrInvalidContract, f.Name)
	}
	if err := f.Input.compile(f.Name + " input"); err != nil {
		return fmt.Errorf("%w: %s input schema: %v", ErrInvalidContract, f.Name, err)
	}
	if err := f.Output.compile(f.Name + " output"); err != nil {
		return fmt.Errorf("%w: %s output schema: %v", ErrInvalidContract, f.Name, err)
	}

	r.flows[f.Name] = f
	return nil
}

// Seal ends registration.
func (r *Registry) Seal() {
	r.sealed.Store(true)
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Resolve looks up a flow by name.
func (r *Registry) Resolve(name string) (*Flow, error) {
	f, ok := r.flows[name]
	if !ok {
		return nil, &Error{
			Kind:   KindUnknownFlow,
			Flow:   name,
			Detail: "no flow registered with this name",
		}
	}
	return f, nil
}

// Names returns registered flow names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flows returns registered flows sorted by name.
func (r *Registry) Flows() []*Flow {
	names := r.Names()
	out := make([]*Flow, len(names))
	for i, name := range names {
		out[i] = r.flows[name]
	}
	return out
}
