package mediation

import "sync"

// Only one mediation layer may be active in a process; double
// enforcement would make rights decisions ambiguous. The first
// registrant wins and the slot never changes afterwards.
var registry struct {
	mu     sync.Mutex
	active string
}

// register claims the process-wide mediation slot for name. It
// returns the name of the already-active layer and false when the
// slot is taken by someone else; re-registering the same name is
// allowed (idempotent startup).
func register(name string) (string, bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if registry.active == "" || registry.active == name {
		registry.active = name
		return name, true
	}
	return registry.active, false
}

// resetRegistry clears the slot. Tests only.
func resetRegistry() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.active = ""
}
