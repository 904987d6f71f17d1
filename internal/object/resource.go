package object

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Resource is a reference-counted file-like resource. A resource may
// name sub-resources (directory semantics); lookup by name is how
// confined path resolution descends the tree.
//
// The count is shared across concurrent holders, so all manipulation
// is atomic. Release past zero is a programming error and panics.
type Resource struct {
	name string
	refs atomic.Int64

	mu       sync.RWMutex
	children map[string]*Resource
	data     []byte
}

// NewResource creates a leaf resource with one reference, owned by the
// caller.
func NewResource(name string) *Resource {
	r := &Resource{name: name}
	r.refs.Store(1)
	return r
}

// NewDirectory creates a resource that can hold named children.
func NewDirectory(name string) *Resource {
	r := NewResource(name)
	r.children = make(map[string]*Resource)
	return r
}

// Name returns the diagnostic name of the resource.
func (r *Resource) Name() string { return r.name }

// Refs returns the current reference count.
func (r *Resource) Refs() int64 { return r.refs.Load() }

// Retain takes an additional reference. Panics if the resource has
// already been fully released.
func (r *Resource) Retain() *Resource {
	if !r.TryRetain() {
		panic(fmt.Sprintf("object: retain of dead resource %q", r.name))
	}
	return r
}

// TryRetain takes an additional reference unless the count has already
// reached zero, in which case it reports failure. Mirrors the
// increment-not-zero idiom used when a concurrent holder may be
// releasing the last reference.
func (r *Resource) TryRetain() bool {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return false
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops one reference. Panics on over-release.
func (r *Resource) Release() {
	if n := r.refs.Add(-1); n < 0 {
		panic(fmt.Sprintf("object: over-release of resource %q", r.name))
	}
}

// Child returns the named sub-resource, or nil if the name is unknown
// or the resource is not a directory.
func (r *Resource) Child(name string) *Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.children[name]
}

// AddChild attaches a named sub-resource. The directory does not take
// a reference; the tree owner keeps the children alive.
func (r *Resource) AddChild(child *Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.children == nil {
		return fmt.Errorf("object: resource %q is not a directory", r.name)
	}
	if _, exists := r.children[child.name]; exists {
		return fmt.Errorf("object: duplicate child %q under %q", child.name, r.name)
	}
	r.children[child.name] = child
	return nil
}

// RemoveChild detaches the named sub-resource and drops the tree's
// reference to it. Handles holding their own references keep the
// resource alive. Reports whether the name existed.
func (r *Resource) RemoveChild(name string) bool {
	r.mu.Lock()
	child, ok := r.children[name]
	if ok {
		delete(r.children, name)
	}
	r.mu.Unlock()

	if ok {
		child.Release()
	}
	return ok
}

// IsDirectory reports whether the resource can hold children.
func (r *Resource) IsDirectory() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.children != nil
}

// WriteData replaces the resource payload.
func (r *Resource) WriteData(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data[:0], p...)
}

// ReadData returns a copy of the resource payload.
func (r *Resource) ReadData() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out
}
