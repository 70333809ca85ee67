// Package registry implements ServiceRegistry, the process-wide, set-once
// slot table keyed by ServiceKind.
package registry

import (
	"fmt"
	"sync"

	"github.com/kestrel-engine/pulsecore/corerr"
)

// Kind is a closed enum of service slots.
type Kind int

const (
	// Render names the renderservice.Service slot.
	Render Kind = iota
	// IO names the iotask.Loader slot.
	IO
	// Resource names a rescache-backed resource service slot.
	Resource

	numKinds
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "Render"
	case IO:
		return "IO"
	case Resource:
		return "Resource"
	default:
		return "Unknown"
	}
}

// Registry is a fixed-size, set-once slot table. The zero value is not
// usable; construct with Create.
type Registry struct {
	mu   sync.Mutex
	set  [numKinds]bool
	svcs [numKinds]any
	// order records the sequence slots were set in, so Destroy can release
	// them in reverse order.
	order []Kind
}

var (
	singletonMu sync.Mutex
	singleton   *Registry
)

// Create returns the process-wide Registry singleton, constructing it on
// first call. Idempotent.
func Create() *Registry {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton == nil {
		singleton = &Registry{}
	}
	return singleton
}

// Destroy tears down the process-wide singleton: it clears every slot and
// releases owned services in reverse order of Set, then allows a
// subsequent Create to build a fresh instance.
func Destroy() {
	singletonMu.Lock()
	r := singleton
	singleton = nil
	singletonMu.Unlock()
	if r == nil {
		return
	}
	r.teardown()
}

func (r *Registry) teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		k := r.order[i]
		if closer, ok := r.svcs[k].(interface{ Close() error }); ok {
			_ = closer.Close()
		}
		r.svcs[k] = nil
		r.set[k] = false
	}
	r.order = nil
}

// SetService stores svc under kind. Slots are set exactly once per
// lifecycle; a second Set for the same kind replaces the stored service
// without closing the old one and keeps the kind's original place in the
// teardown order, matching the single-registrant use the core makes of
// this table.
func (r *Registry) SetService(kind Kind, svc any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.svcs[kind] = svc
	if !r.set[kind] {
		r.set[kind] = true
		r.order = append(r.order, kind)
	}
}

// GetService retrieves and downcasts the service stored at kind. Returns
// corerr.ErrServiceMissing if the slot was never set, rather than
// panicking.
func GetService[T any](r *Registry, kind Kind) (T, error) {
	var zero T
	r.mu.Lock()
	v, ok := r.svcs[kind], r.set[kind]
	r.mu.Unlock()
	if !ok {
		return zero, fmt.Errorf("%w: kind %s", corerr.ErrServiceMissing, kind)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: kind %s has wrong type", corerr.ErrServiceMissing, kind)
	}
	return typed, nil
}
