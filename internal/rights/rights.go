// Package rights defines the fixed-width rights bitmask attached to
// capability-wrapped handles. Each bit names one permitted operation
// class; the mask only ever narrows as capabilities are derived.
package rights

import (
	"fmt"
	"strings"
)

// Rights is a bitmask of permitted operation classes.
type Rights uint64

// Individual rights. A bit grants exactly one operation class and
// carries no further semantics.
const (
	Read Rights = 1 << iota
	Write
	Seek
	Lookup
	Create
	Stat
	Delete
	Ioctl
	Event
	Bind
	Connect
	Accept
)

// None grants nothing.
const None Rights = 0

// All is the unrestricted rights set. Plain (unwrapped) resources are
// treated as holding All during rights checks.
const All Rights = ^Rights(0)

var rightNames = map[string]Rights{
	"read":    Read,
	"write":   Write,
	"seek":    Seek,
	"lookup":  Lookup,
	"create":  Create,
	"stat":    Stat,
	"delete":  Delete,
	"ioctl":   Ioctl,
	"event":   Event,
	"bind":    Bind,
	"connect": Connect,
	"accept":  Accept,
}

// nameOrder keeps String output stable.
var nameOrder = []string{
	"read", "write", "seek", "lookup", "create", "stat",
	"delete", "ioctl", "event", "bind", "connect", "accept",
}

// Contains reports whether every right in need is present in r.
func (r Rights) Contains(need Rights) bool {
	return r&need == need
}

// Intersect returns the rights present in both masks. Deriving a
// capability from an existing one intersects, so rights never widen.
func (r Rights) Intersect(other Rights) Rights {
	return r & other
}

// Union returns the combined mask.
func (r Rights) Union(other Rights) Rights {
	return r | other
}

// Names returns the named rights present in r, in stable order.
// Unnamed bits are not reported.
func (r Rights) Names() []string {
	if r == All {
		return []string{"all"}
	}
	var names []string
	for _, name := range nameOrder {
		if r&rightNames[name] != 0 {
			names = append(names, name)
		}
	}
	return names
}

// String returns a human-readable form, e.g. "read|lookup".
func (r Rights) String() string {
	if r == None {
		return "none"
	}
	if r == All {
		return "all"
	}
	names := r.Names()
	if len(names) == 0 {
		return fmt.Sprintf("%#016x", uint64(r))
	}
	return strings.Join(names, "|")
}

// Parse resolves a list of right names from a policy document into a
// mask. The special name "all" yields the unrestricted set.
func Parse(names []string) (Rights, error) {
	var r Rights
	for _, name := range names {
		if name == "all" {
			return All, nil
		}
		bit, ok := rightNames[strings.ToLower(name)]
		if !ok {
			return None, fmt.Errorf("unknown right %q", name)
		}
		r |= bit
	}
	return r, nil
}
