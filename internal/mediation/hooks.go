package mediation

import (
	"fmt"

	"github.com/capgate-dev/capgate/internal/credential"
	"github.com/capgate-dev/capgate/internal/handle"
	"github.com/capgate-dev/capgate/internal/object"
)

// LookupResource resolves a handle to its real resource for use. For
// a capability slot the resolution is validated against the current
// call's anti-TOCTOU records: every record for the handle must name
// the very object sitting in the slot now, otherwise the slot was
// swapped between check and use and the handle is treated as invalid.
//
// The returned resource is borrowed from the table entry; the entry
// keeps it alive for the duration of the call.
func LookupResource(task *credential.Task, tbl *handle.Table, h handle.Handle) (*object.Resource, error) {
	var res *object.Resource
	var err error

	tbl.View(func(get handle.Lookup) {
		obj := get(h)
		if obj == nil {
			err = fmt.Errorf("%w: handle %d", ErrBadHandle, h)
			return
		}

		underlying, _, isCap := object.Unwrap(obj)
		if !isCap {
			res = obj.(*object.Resource)
			return
		}

		if task.Confined() {
			if pending := credential.Get(task); pending != nil {
				found, ok := pending.Validate(h, obj)
				if !ok {
					// Check-time and use-time identities disagree:
					// fail as if the handle were invalid.
					err = fmt.Errorf("%w: handle %d changed since check", ErrBadHandle, h)
					return
				}
				if !found {
					// A confined resolution path ran without its
					// rights check. That is a mediation bug, not a
					// caller error; proceeding would mean unchecked
					// access.
					panic(&ConsistencyError{Handle: h})
				}
			}
		}
		res = underlying
	})

	return res, err
}

// InstallObject decides what actually lands in the handle table for a
// freshly created resource. If the current call armed a pre-allocated
// capability, it is consumed here: the new resource is bound into the
// wrapper and the caller installs the wrapper, so the observed handle
// is born wrapped. Objects that are already capabilities, and calls
// with nothing armed, pass through unchanged.
//
// The caller's reference to obj transfers to the returned object.
func InstallObject(task *credential.Task, obj object.Object) object.Object {
	if object.IsCapability(obj) {
		return obj
	}

	pending := credential.Get(task)
	if pending == nil || !pending.Armed() {
		return obj
	}

	res, ok := obj.(*object.Resource)
	if !ok {
		return obj
	}
	return pending.ConsumeArmed(res)
}

// CheckSegment gates one step of path resolution while the task is
// confined. The name is the unresolved remainder of the path at this
// step: a parent-directory first segment or an absolute-root prefix
// escapes the directory the resolution is anchored to and is
// rejected. Same-directory and descendant names always pass. Multi
// level traversal is caught step by step, not by whole-path pattern
// matching.
func CheckSegment(task *credential.Task, name string) error {
	if !task.Confined() {
		return nil
	}

	if len(name) >= 2 && name[0] == '.' && name[1] == '.' &&
		(len(name) == 2 || name[2] == '/') {
		return fmt.Errorf("%w: parent traversal %q", ErrConfinementViolation, name)
	}
	if len(name) > 0 && name[0] == '/' {
		return fmt.Errorf("%w: absolute path %q", ErrConfinementViolation, name)
	}
	return nil
}
