package object

import (
	"fmt"

	"github.com/capgate-dev/capgate/internal/rights"
)

// Capability pairs a resource with an explicit rights mask. The
// underlying field always points at a plain resource, never another
// capability: deriving from a capability unwraps it first, so the new
// wrapper's rights replace rather than compose with the old.
type Capability struct {
	rights     rights.Rights
	underlying *Resource
}

// NewBlank allocates an unbound capability wrapper. Interception
// pre-allocates these so a later install step can bind a freshly
// created resource without a window where the raw resource is visible.
func NewBlank() *Capability {
	return &Capability{}
}

// Bind points an allocated capability at a resource with the given
// rights. The caller transfers one resource reference into the
// capability; Bind itself does not retain.
func (c *Capability) Bind(res *Resource, r rights.Rights) {
	if c.underlying != nil {
		panic("object: rebinding a bound capability")
	}
	c.underlying = res
	c.rights = r
}

// Derive wraps obj in a new capability carrying exactly r. If obj is
// itself a capability it is unwrapped first, so the result points
// directly at the plain resource. Fails if the resource is already
// fully released (a concurrent holder dropped the last reference).
func Derive(obj Object, r rights.Rights) (*Capability, error) {
	res, _, isCap := Unwrap(obj)
	if !isCap {
		plain, ok := obj.(*Resource)
		if !ok {
			return nil, fmt.Errorf("object: cannot derive from %T", obj)
		}
		res = plain
	}
	if !res.TryRetain() {
		return nil, fmt.Errorf("object: resource %q is gone", res.Name())
	}
	c := NewBlank()
	c.Bind(res, r)
	return c, nil
}

// Rights returns the capability's rights mask.
func (c *Capability) Rights() rights.Rights { return c.rights }

// Underlying returns the wrapped resource, nil for an unbound blank.
func (c *Capability) Underlying() *Resource { return c.underlying }

// Release drops the capability's reference to its underlying resource.
// Releasing an unbound blank is a no-op; releasing twice is a
// programming error and panics via the resource count check.
func (c *Capability) Release() {
	if c.underlying == nil {
		return
	}
	c.underlying.Release()
	c.underlying = nil
	c.rights = rights.None
}
