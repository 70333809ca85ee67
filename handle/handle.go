// Package handle implements SharedHandle[T], intrusive reference-counted
// shared ownership for objects referenced both by scene data and by GPU
// mirrors, plus a WeakHandle[T] for non-owning back-references (e.g. a
// scene-graph parent edge).
package handle

import "github.com/kestrel-engine/pulsecore/internal/refcount"

// Resource is the lifecycle hook a control block's object may implement.
// Close is invoked exactly once, on the goroutine that performs the
// decrement that reaches zero.
type Resource interface {
	Close() error
}

// block is the shared control block a family of SharedHandle/WeakHandle
// values over the same object point to.
type block[T any] struct {
	strong  *refcount.Counter
	weak    *refcount.Counter
	object  T
	onClose func(T) error
}

func newBlock[T any](obj T) *block[T] {
	b := &block[T]{
		strong: refcount.New(0),
		weak:   refcount.New(0),
		object: obj,
	}
	if closer, ok := any(obj).(Resource); ok {
		b.onClose = func(T) error { return closer.Close() }
	}
	return b
}

// SharedHandle is an owning, reference-counted pointer to an object of
// type T. The zero value is invalid; construct with New.
type SharedHandle[T any] struct {
	b *block[T]
}

// New wraps obj in a SharedHandle with a strong count of one.
func New[T any](obj T) SharedHandle[T] {
	b := newBlock(obj)
	b.strong.Inc()
	return SharedHandle[T]{b: b}
}

// IsValid reports whether the handle still refers to a live control block.
func (h SharedHandle[T]) IsValid() bool {
	return h.b != nil
}

// Get returns the managed object. Calling Get on an invalid handle returns
// the zero value of T.
func (h SharedHandle[T]) Get() T {
	var zero T
	if h.b == nil {
		return zero
	}
	return h.b.object
}

// Clone increments the strong count and returns a new handle sharing the
// same control block.
func (h SharedHandle[T]) Clone() SharedHandle[T] {
	if h.b == nil {
		return SharedHandle[T]{}
	}
	h.b.strong.Inc()
	return SharedHandle[T]{b: h.b}
}

// Weak returns a WeakHandle observing the same control block without
// affecting the strong count.
func (h SharedHandle[T]) Weak() WeakHandle[T] {
	if h.b == nil {
		return WeakHandle[T]{}
	}
	h.b.weak.Inc()
	return WeakHandle[T]{b: h.b}
}

// Drop decrements the strong count. When it reaches zero the managed
// object is destroyed (its Close method, if any, is invoked) on the
// calling goroutine. Drop is a no-op on an already-invalid handle.
func (h *SharedHandle[T]) Drop() {
	if h.b == nil {
		return
	}
	b := h.b
	h.b = nil
	if b.strong.Dec() == 0 && b.onClose != nil {
		_ = b.onClose(b.object)
	}
}

// StrongCount returns the current strong reference count. Intended for
// tests and diagnostics.
func (h SharedHandle[T]) StrongCount() int64 {
	if h.b == nil {
		return 0
	}
	return h.b.strong.Get()
}

// WeakHandle observes a SharedHandle's control block without contributing
// to the strong count. The zero value is invalid.
type WeakHandle[T any] struct {
	b *block[T]
}

// Upgrade returns a new SharedHandle sharing the control block, and true,
// if the strong count has not yet reached zero. Returns the zero
// SharedHandle and false once the object has been destroyed.
func (w WeakHandle[T]) Upgrade() (SharedHandle[T], bool) {
	if w.b == nil || w.b.strong.Get() <= 0 {
		return SharedHandle[T]{}, false
	}
	w.b.strong.Inc()
	return SharedHandle[T]{b: w.b}, true
}

// Drop releases this weak observation.
func (w *WeakHandle[T]) Drop() {
	if w.b == nil {
		return
	}
	b := w.b
	w.b = nil
	b.weak.Dec()
}
