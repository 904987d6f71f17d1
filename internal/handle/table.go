// Package handle implements the descriptor table that maps small
// integer handles to objects. Mediation code runs its check-and-record
// and resolve-and-validate sequences inside the table's read-side
// critical section, so a concurrent slot mutation can never slip in
// between the two observations of a slot.
package handle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/capgate-dev/capgate/internal/object"
)

// Handle names a slot in a Table.
type Handle int

// CWD is the sentinel for the implicit current-working-context. It is
// never a valid slot; confined resolution rejects it outright because
// it bypasses capability-relative lookup.
const CWD Handle = -100

// DefaultCapacity is the slot limit of a table unless overridden.
const DefaultCapacity = 1024

// ErrTableFull is returned when no free slot remains.
var ErrTableFull = errors.New("handle: table full")

// ErrNotOpen is returned for operations on an empty or invalid slot.
var ErrNotOpen = errors.New("handle: not open")

// Lookup resolves a handle to the object currently installed in its
// slot, or nil. Only valid inside the View callback that produced it.
type Lookup func(Handle) object.Object

// Table is a bounded slot table. All slot reads used for rights
// decisions happen under the read lock via View; mutations take the
// write lock, so check-time and use-time observations of a slot are
// serialized against swaps.
type Table struct {
	mu       sync.RWMutex
	slots    []object.Object
	capacity int
}

// NewTable creates a table holding at most capacity handles.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{capacity: capacity}
}

// View runs fn under the read lock with a Lookup over current slot
// contents. The Lookup must not escape fn.
func (t *Table) View(fn func(get Lookup)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(t.lookupLocked)
}

func (t *Table) lookupLocked(h Handle) object.Object {
	if h < 0 || int(h) >= len(t.slots) {
		return nil
	}
	return t.slots[h]
}

// Get returns the object at h, or ErrNotOpen.
func (t *Table) Get(h Handle) (object.Object, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	obj := t.lookupLocked(h)
	if obj == nil {
		return nil, fmt.Errorf("%w: handle %d", ErrNotOpen, h)
	}
	return obj, nil
}

// Install places obj into the lowest free slot and returns its handle.
// The table takes ownership of the reference the caller passes in.
func (t *Table) Install(obj object.Object) (Handle, error) {
	if obj == nil {
		return 0, errors.New("handle: install of nil object")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, slot := range t.slots {
		if slot == nil {
			t.slots[i] = obj
			return Handle(i), nil
		}
	}
	if len(t.slots) >= t.capacity {
		return 0, ErrTableFull
	}
	t.slots = append(t.slots, obj)
	return Handle(len(t.slots) - 1), nil
}

// Replace swaps the object at h for obj, returning the displaced
// object to the caller (who owns releasing it). The slot must be open.
// This is the dup2-style mutation that anti-TOCTOU records defend
// against.
func (t *Table) Replace(h Handle, obj object.Object) (object.Object, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.lookupLocked(h)
	if old == nil {
		return nil, fmt.Errorf("%w: handle %d", ErrNotOpen, h)
	}
	t.slots[h] = obj
	return old, nil
}

// Close empties the slot and releases the object that was in it.
func (t *Table) Close(h Handle) error {
	t.mu.Lock()
	obj := t.lookupLocked(h)
	if obj == nil {
		t.mu.Unlock()
		return fmt.Errorf("%w: handle %d", ErrNotOpen, h)
	}
	t.slots[h] = nil
	t.mu.Unlock()

	releaseObject(obj)
	return nil
}

// CloseAll tears the table down, releasing every remaining object.
func (t *Table) CloseAll() {
	t.mu.Lock()
	slots := t.slots
	t.slots = nil
	t.mu.Unlock()

	for _, obj := range slots {
		if obj != nil {
			releaseObject(obj)
		}
	}
}

// Len returns the number of occupied slots.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, slot := range t.slots {
		if slot != nil {
			n++
		}
	}
	return n
}

func releaseObject(obj object.Object) {
	switch v := obj.(type) {
	case *object.Capability:
		v.Release()
	case *object.Resource:
		v.Release()
	}
}
