// Package mediation implements the call-interception protocol: the
// entry point that checks rights against the policy table, the
// anti-TOCTOU recorder plumbing, and the lookup/install/path hooks
// that enforce the recorded checks at use time.
package mediation

import (
	"errors"
	"fmt"

	"github.com/capgate-dev/capgate/internal/handle"
)

// Result taxonomy for mediated calls. The first failure is returned
// immediately; no partial side effects are left behind.
var (
	// ErrConfinementViolation covers disallowed absolute or escaping
	// resolution and implicit-context resolution while confined.
	ErrConfinementViolation = errors.New("mediation: not permitted in confinement mode")

	// ErrNotCapable means the handle's rights do not cover the
	// operation.
	ErrNotCapable = errors.New("mediation: capability rights insufficient")

	// ErrBadHandle means the handle does not resolve, including the
	// case where an anti-TOCTOU record disagrees with the slot.
	ErrBadHandle = errors.New("mediation: bad handle")

	// ErrResourceExhausted means call bookkeeping capacity ran out.
	ErrResourceExhausted = errors.New("mediation: resource exhausted")

	// ErrOutOfMemory marks allocation failure at object-creation
	// points.
	ErrOutOfMemory = errors.New("mediation: out of memory")

	// ErrNotCapability is the introspection failure for querying
	// rights of a plain, unwrapped handle.
	ErrNotCapability = errors.New("mediation: handle is not a capability")
)

// ConsistencyError is the payload of the internal-consistency panic:
// a confined resolution path was reached for a capability handle that
// was never checked in the current call. This is a bug in the
// mediation layer itself, never user-triggerable, and must abort the
// operation rather than proceed with unchecked access.
type ConsistencyError struct {
	Handle handle.Handle
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("mediation: handle %d resolved without a recorded rights check", e.Handle)
}
