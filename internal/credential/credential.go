// Package credential models the per-task security context the
// mediation layer hangs its call-scoped bookkeeping off. Credentials
// are shared copy-on-write between tasks; every access to the pending
// state compares an owning-task back-reference and forces a private
// split before a task could touch state it does not privately own.
package credential

import (
	"github.com/google/uuid"
)

// Task is an explicit execution context threaded through every
// mediated call. It stands in for a thread: exactly one goroutine
// drives a given Task at a time.
type Task struct {
	id       uuid.UUID
	confined bool
	cred     *Credential
}

// NewTask creates an unconfined task with its own fresh credential.
func NewTask() *Task {
	t := &Task{id: uuid.New()}
	t.cred = NewCredential()
	return t
}

// ID returns the task identifier.
func (t *Task) ID() uuid.UUID { return t.id }

// Confine puts the task into confinement mode. There is deliberately
// no way back out.
func (t *Task) Confine() { t.confined = true }

// Confined reports whether confinement mode is active for the task.
func (t *Task) Confined() bool { return t.confined }

// Credential returns the task's current credential.
func (t *Task) Credential() *Credential { return t.cred }

// Share creates a second task driving the same credential, modeling a
// thread clone that shares its parent's security context.
func (t *Task) Share() *Task {
	return &Task{
		id:       uuid.New(),
		confined: t.confined,
		cred:     t.cred,
	}
}

// commit replaces the task's credential after a copy-on-write split.
func (t *Task) commit(cred *Credential) { t.cred = cred }

// Credential is a shareable security context. The pending field is
// the mediation layer's attachment point; it stays nil for credentials
// the layer never touches, so unmediated tasks pay nothing.
type Credential struct {
	id      uuid.UUID
	pending *PendingState
}

// NewCredential creates a credential with no attached state.
func NewCredential() *Credential {
	return &Credential{id: uuid.New()}
}

// ID returns the credential identifier.
func (c *Credential) ID() uuid.UUID { return c.id }

// Pending returns the attached state, nil if none.
func (c *Credential) Pending() *PendingState { return c.pending }
