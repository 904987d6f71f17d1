package credential

// Lifecycle hooks for pending-check state across credential
// allocation, duplication, and teardown.

// AllocBlank attaches a fresh empty PendingState bound to owner.
func AllocBlank(cred *Credential, owner *Task) {
	cred.pending = newPendingState(owner)
}

// Prepare is the duplication hook: called when newCred is derived from
// oldCred by current. State is attached to the new credential only if
// the old credential's state belongs to the duplicating task, and even
// then it is a fresh blank: records are call-scoped and never copied.
// Credentials this layer never touched stay stateless and free.
func Prepare(newCred, oldCred *Credential, current *Task) {
	if oldCred == nil || oldCred.pending == nil {
		return
	}
	if oldCred.pending.owner != current {
		return
	}
	AllocBlank(newCred, current)
}

// Free tears down a credential's attached state, releasing any armed
// pre-allocated capability through the capability release path.
func Free(cred *Credential) {
	if cred.pending == nil {
		return
	}
	cred.pending.free()
	cred.pending = nil
}

// Get returns the task's pending state only if it exists and is bound
// to the task. A state owned by another task sharing the credential is
// invisible here; resolution paths must never read foreign records.
func Get(task *Task) *PendingState {
	cred := task.Credential()
	if cred == nil || cred.pending == nil {
		return nil
	}
	if cred.pending.owner != task {
		return nil
	}
	return cred.pending
}

// GetOrCreate returns pending state privately owned by the task,
// splitting a shared credential copy-on-write first when the attached
// state is missing or bound to a different task. After a split the
// task drives an independent credential; the sharing task keeps the
// old one untouched.
func GetOrCreate(task *Task) *PendingState {
	if p := Get(task); p != nil {
		return p
	}

	fresh := NewCredential()
	Prepare(fresh, task.Credential(), task)
	if fresh.pending == nil {
		AllocBlank(fresh, task)
	}
	task.commit(fresh)
	return fresh.pending
}
