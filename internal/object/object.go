// Package object defines the two kinds of values a handle table slot
// can hold: plain resources and capability wrappers. The variant is
// sealed so resolution code can match it exhaustively.
package object

import "github.com/capgate-dev/capgate/internal/rights"

// Object is the sealed variant stored in handle table slots.
// The only implementations are *Resource and *Capability.
type Object interface {
	object()
}

func (*Resource) object()   {}
func (*Capability) object() {}

// Unwrap returns the resource and rights behind a capability wrapper.
// ok is false when obj is not a capability; this doubles as the type
// test used throughout resolution.
func Unwrap(obj Object) (res *Resource, r rights.Rights, ok bool) {
	cap, ok := obj.(*Capability)
	if !ok {
		return nil, rights.None, false
	}
	return cap.underlying, cap.rights, true
}

// IsCapability reports whether obj is a capability wrapper.
func IsCapability(obj Object) bool {
	_, ok := obj.(*Capability)
	return ok
}
