package kb

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/station-simulator/core"
	"github.com/signalsfoundry/station-simulator/model"
)

var (
	// ErrModuleExists indicates a module with the same ID is registered.
	ErrModuleExists = errors.New("module already exists")
	// ErrModuleNotFound indicates a requested module is not registered.
	ErrModuleNotFound = errors.New("module not found")
)

// Registry is the ordered module store. Index 0 is always the initial hub:
// it is added first and can never be removed.
type Registry struct {
	mu sync.RWMutex

	order   []string
	modules map[string]*model.Module
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*model.Module)}
}

// Add appends a module. It returns ErrModuleExists if the ID is taken.
func (r *Registry) Add(m *model.Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.ID]; exists {
		return fmt.Errorf("%w: %q", ErrModuleExists, m.ID)
	}
	r.modules[m.ID] = m
	r.order = append(r.order, m.ID)
	return nil
}

// Get returns the module with the given ID, or nil if not found.
func (r *Registry) Get(id string) *model.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modules[id]
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// List returns modules in registration order. The slice is fresh but the
// pointers are shared with the registry.
func (r *Registry) List() []*model.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*model.Module, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.modules[id])
	}
	return res
}

// Occupied returns the points that block slot allocation, in registration
// order: the position of each docked module and the target slot of each
// module still in transit. A drifting agent never blocks a slot.
func (r *Registry) Occupied() []core.Vec3 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]core.Vec3, 0, len(r.order))
	for _, id := range r.order {
		m := r.modules[id]
		if m.IsDocked() {
			res = append(res, m.Position)
		} else {
			res = append(res, m.Target)
		}
	}
	return res
}

// UpdatePosition moves an in-transit module.
func (r *Registry) UpdatePosition(id string, pos core.Vec3) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrModuleNotFound, id)
	}
	m.Position = pos
	return nil
}

// MarkDocked snaps a module to its final position and flips it to DOCKED.
// Docking an already docked module is an error; the transition happens once.
func (r *Registry) MarkDocked(id string, pos core.Vec3, at time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrModuleNotFound, id)
	}
	if m.IsDocked() {
		return fmt.Errorf("module %q is already docked", id)
	}
	m.Position = pos
	m.DockState = model.DockStateDocked
	m.DockedAt = at
	return nil
}

// Remove deletes a module. The initial hub cannot be removed.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrModuleNotFound, id)
	}
	if m.InitialHub {
		return fmt.Errorf("module %q is the initial hub", id)
	}
	delete(r.modules, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
