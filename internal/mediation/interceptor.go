package mediation

import (
	"fmt"
	"log/slog"

	"github.com/capgate-dev/capgate/internal/credential"
	"github.com/capgate-dev/capgate/internal/handle"
	"github.com/capgate-dev/capgate/internal/object"
	"github.com/capgate-dev/capgate/internal/policy"
	"github.com/capgate-dev/capgate/internal/rights"
)

// LayerName is the name this layer registers under.
const LayerName = "capgate"

// Config fixes the interceptor's behavior at construction; nothing in
// it can change afterwards.
type Config struct {
	// Enabled turns mediation on. When false every mediated call
	// short-circuits to success.
	Enabled bool

	// Policy is the rights-requirement table. Required when Enabled.
	Policy *policy.Table
}

// Interceptor orchestrates one mediated call: reset the caller's
// pending state, run the policy table's checks through the recorder,
// and arm a pre-allocated capability for resolve-and-create
// operations.
type Interceptor struct {
	enabled bool
	policy  *policy.Table
}

// New builds an interceptor from an immutable config. If another
// mediation layer already claimed the process, this one disables
// itself and reports the fact rather than double-enforcing.
func New(cfg Config) (*Interceptor, error) {
	if !cfg.Enabled {
		return &Interceptor{}, nil
	}
	if cfg.Policy == nil {
		return nil, fmt.Errorf("mediation: enabled interceptor requires a policy table")
	}

	if active, ok := register(LayerName); !ok {
		slog.Warn("mediation disabled: another layer is already active",
			"layer", LayerName, "active", active)
		return &Interceptor{policy: cfg.Policy}, nil
	}

	slog.Info("mediation enabled",
		"layer", LayerName,
		"policy_version", cfg.Policy.Version().String(),
		"operations", cfg.Policy.Len())
	return &Interceptor{enabled: true, policy: cfg.Policy}, nil
}

// Enabled reports whether mediation is active.
func (ic *Interceptor) Enabled() bool { return ic.enabled }

// Intercept runs the rights checks for one call of op against tbl.
// A nil return means the call may proceed; the caller then resolves
// its handles through LookupResource and installs results through
// InstallObject, both of which enforce what was recorded here.
func (ic *Interceptor) Intercept(task *credential.Task, tbl *handle.Table, op string, args []any) error {
	if !ic.enabled {
		return nil
	}

	pending := credential.GetOrCreate(task)
	pending.Reset()

	entry, ok := ic.policy.Lookup(op)
	if !ok {
		return nil
	}

	reqs, err := entry.Requirements(args)
	if err != nil {
		return err
	}

	for _, req := range reqs {
		h, err := handleArg(args, req.Arg)
		if err != nil {
			return err
		}
		if err := requireRights(pending, tbl, h, req.Rights); err != nil {
			slog.Debug("mediated call denied",
				"op", op, "handle", int(h), "required", req.Rights.String(), "error", err)
			return err
		}
	}

	if entry.CreatesHandle {
		ic.armPreallocation(pending)
	}
	return nil
}

// armPreallocation reserves a capability wrapper when the primary
// checked handle of a creating operation is itself a capability. The
// wrapper's rights are the directory capability's own rights,
// propagated unchanged; the install hook consumes it so the new
// handle is born wrapped, with no window where the raw resource is
// visible.
func (ic *Interceptor) armPreallocation(pending *credential.PendingState) {
	first, ok := pending.FirstRecord()
	if !ok {
		return
	}
	_, r, isCap := object.Unwrap(first.Obj)
	if !isCap {
		return
	}
	pending.Arm(r)
}

// requireRights checks one handle argument and leaves the anti-TOCTOU
// record behind. The slot lookup and the record run inside the same
// read-side critical section, so the identity recorded is exactly the
// identity checked.
func requireRights(pending *credential.PendingState, tbl *handle.Table, h handle.Handle, need rights.Rights) error {
	// The implicit working-directory handle bypasses capability-
	// relative resolution entirely; it is never acceptable here.
	if h == handle.CWD {
		return fmt.Errorf("%w: implicit working-directory handle", ErrConfinementViolation)
	}

	var result error
	tbl.View(func(get handle.Lookup) {
		obj := get(h)
		if obj == nil {
			result = fmt.Errorf("%w: handle %d", ErrBadHandle, h)
			return
		}

		actual := rights.All
		if _, r, isCap := object.Unwrap(obj); isCap {
			actual = r
		}

		if err := pending.Record(h, obj); err != nil {
			result = fmt.Errorf("%w: %v", ErrResourceExhausted, err)
			return
		}

		if !actual.Contains(need) {
			result = fmt.Errorf("%w: handle %d holds %s, needs %s",
				ErrNotCapable, h, actual, need)
		}
	})
	return result
}

// handleArg extracts the handle named by a policy argument position.
func handleArg(args []any, pos int) (handle.Handle, error) {
	if pos >= len(args) {
		return 0, fmt.Errorf("%w: argument %d missing", ErrBadHandle, pos)
	}
	switch v := args[pos].(type) {
	case handle.Handle:
		return v, nil
	case int:
		return handle.Handle(v), nil
	default:
		return 0, fmt.Errorf("%w: argument %d is %T, not a handle", ErrBadHandle, pos, args[pos])
	}
}
