package mediation

import (
	"fmt"

	"github.com/capgate-dev/capgate/internal/handle"
	"github.com/capgate-dev/capgate/internal/object"
	"github.com/capgate-dev/capgate/internal/rights"
)

// Limit derives a new capability handle from an existing one. The new
// rights are the intersection of the requested mask and the source's
// current rights, so derivation can only narrow; an unrestricted
// plain source takes the requested mask as-is. The source handle
// stays open and unchanged.
func Limit(tbl *handle.Table, h handle.Handle, mask rights.Rights) (handle.Handle, error) {
	existing := rights.All
	var res *object.Resource
	var err error

	tbl.View(func(get handle.Lookup) {
		obj := get(h)
		if obj == nil {
			err = fmt.Errorf("%w: handle %d", ErrBadHandle, h)
			return
		}
		if underlying, r, isCap := object.Unwrap(obj); isCap {
			res, existing = underlying, r
		} else {
			res = obj.(*object.Resource)
		}
		// A concurrent close may be dropping the last reference.
		if !res.TryRetain() {
			res = nil
			err = fmt.Errorf("%w: handle %d", ErrBadHandle, h)
		}
	})
	if err != nil {
		return 0, err
	}

	cap := object.NewBlank()
	cap.Bind(res, mask.Intersect(existing))

	nh, err := tbl.Install(cap)
	if err != nil {
		cap.Release()
		return 0, fmt.Errorf("%w: %v", ErrResourceExhausted, err)
	}
	return nh, nil
}

// RightsOf exposes a capability handle's rights mask for diagnostics.
// Plain handles fail with ErrNotCapability.
func RightsOf(tbl *handle.Table, h handle.Handle) (rights.Rights, error) {
	obj, err := tbl.Get(h)
	if err != nil {
		return rights.None, fmt.Errorf("%w: handle %d", ErrBadHandle, h)
	}
	_, r, isCap := object.Unwrap(obj)
	if !isCap {
		return rights.None, fmt.Errorf("%w: handle %d", ErrNotCapability, h)
	}
	return r, nil
}

// FormatRights renders a rights mask the way handle diagnostics
// display it.
func FormatRights(r rights.Rights) string {
	return fmt.Sprintf("rights:\t%#016x (%s)", uint64(r), r)
}
