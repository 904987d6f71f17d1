package credential

import (
	"errors"

	"github.com/capgate-dev/capgate/internal/handle"
	"github.com/capgate-dev/capgate/internal/object"
	"github.com/capgate-dev/capgate/internal/rights"
)

// inlineRecords is the per-call record capacity that needs no heap
// growth; most calls name at most a handful of handles.
const inlineRecords = 6

// maxRecords caps record growth. Past it the recorder degrades the
// way a failed allocation would: existing records stand, new ones are
// refused.
const maxRecords = 64

// ErrRecorderFull is returned when a record cannot be appended.
var ErrRecorderFull = errors.New("credential: pending-check recorder full")

// Record is one anti-TOCTOU entry: proof that the handle was checked
// while its slot held exactly this object. The object recorded is the
// table entry itself (the wrapper, when the slot holds a capability),
// so identity comparison catches any slot swap.
type Record struct {
	Handle handle.Handle
	Obj    object.Object
}

// PendingState is the call-scoped bookkeeping attached to a
// credential: the anti-TOCTOU records for the current call, plus the
// armed pre-allocated capability a resolve-and-create operation will
// consume at install time. Logically owned by one task at a time; the
// owner back-reference is checked on every access.
type PendingState struct {
	inline  [inlineRecords]Record
	records []Record
	owner   *Task

	armed       bool
	armedRights rights.Rights
	spare       *object.Capability
}

func newPendingState(owner *Task) *PendingState {
	p := &PendingState{owner: owner}
	p.records = p.inline[:0]
	return p
}

// Owner returns the task the state is bound to.
func (p *PendingState) Owner() *Task { return p.owner }

// Reset clears the record list and disarms any pending pre-allocation
// rights. An already-allocated spare wrapper is kept for reuse across
// retries of the same call; only its intended rights are cleared.
func (p *PendingState) Reset() {
	p.records = p.records[:0]
	p.armed = false
	p.armedRights = rights.None
}

// Record appends an anti-TOCTOU entry, growing from the inline array
// to heap storage on demand up to the hard cap.
func (p *PendingState) Record(h handle.Handle, obj object.Object) error {
	if len(p.records) >= maxRecords {
		return ErrRecorderFull
	}
	p.records = append(p.records, Record{Handle: h, Obj: obj})
	return nil
}

// Len returns the number of records for the current call.
func (p *PendingState) Len() int { return len(p.records) }

// Validate checks the recorded entries for h against the object
// currently in the slot. Every record for h must match: a single
// mismatch means the slot was swapped between check and use. found is
// false when no record for h exists at all.
func (p *PendingState) Validate(h handle.Handle, obj object.Object) (found, ok bool) {
	ok = true
	for _, rec := range p.records {
		if rec.Handle != h {
			continue
		}
		found = true
		if rec.Obj != obj {
			ok = false
		}
	}
	return found, ok
}

// FirstRecord returns the earliest record, ok=false when none exist.
// The interceptor uses it to decide whether the primary checked handle
// of a creating operation was a capability.
func (p *PendingState) FirstRecord() (Record, bool) {
	if len(p.records) == 0 {
		return Record{}, false
	}
	return p.records[0], true
}

// Arm reserves a pre-allocated capability wrapper carrying r for the
// install step of the current call. An existing spare wrapper is
// reused; otherwise a blank one is allocated now so the install path
// never allocates.
func (p *PendingState) Arm(r rights.Rights) {
	if p.spare == nil {
		p.spare = object.NewBlank()
	}
	p.armed = true
	p.armedRights = r
}

// Armed reports whether an install step should consume a wrapper.
func (p *PendingState) Armed() bool { return p.armed && p.spare != nil }

// ArmedRights returns the rights the next consumed wrapper will carry.
func (p *PendingState) ArmedRights() rights.Rights { return p.armedRights }

// ConsumeArmed binds the reserved wrapper around res with the armed
// rights and clears the armed state. The caller transfers one resource
// reference into the returned capability.
func (p *PendingState) ConsumeArmed(res *object.Resource) *object.Capability {
	cap := p.spare
	cap.Bind(res, p.armedRights)
	p.spare = nil
	p.armed = false
	p.armedRights = rights.None
	return cap
}

// free releases everything the state still holds. The spare wrapper
// goes through the capability release path, never a bare drop, in
// case it was bound and holds a resource reference.
func (p *PendingState) free() {
	if p.spare != nil {
		p.spare.Release()
		p.spare = nil
	}
	p.records = nil
	p.armed = false
	p.owner = nil
}
