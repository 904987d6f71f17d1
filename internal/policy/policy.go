// Package policy holds the declarative rights-requirement table that
// drives call interception: operation name -> ordered list of (handle
// argument position, required rights). The table is loaded once and
// immutable afterwards.
package policy

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/expr-lang/expr/vm"

	"github.com/capgate-dev/capgate/internal/rights"
)

// Requirement is one resolved check: the argument at Arg names a
// handle that must carry Rights.
type Requirement struct {
	Arg    int
	Rights rights.Rights
}

// ArgCheck is a declared requirement, optionally guarded by a compiled
// `when` expression over the call arguments. Guards model checks that
// depend on call flags (a create-mode open needs more than a plain
// lookup does).
type ArgCheck struct {
	Arg     int
	Rights  rights.Rights
	when    *vm.Program
	whenSrc string
}

// Operation is one mediated operation's policy entry.
type Operation struct {
	Name string
	// CreatesHandle marks the resolve-and-create pattern: on success
	// the interceptor pre-allocates a capability wrapper for the
	// handle the operation will install.
	CreatesHandle bool
	checks        []ArgCheck
}

// CallEnv is the variable set a `when` guard evaluates against.
type CallEnv struct {
	Op   string `expr:"op"`
	Args []any  `expr:"args"`
}

// Requirements resolves the operation's checks for a concrete call,
// evaluating guards against the call arguments. The returned order is
// the declared order; interception fails fast on the first unmet one.
func (o Operation) Requirements(args []any) ([]Requirement, error) {
	reqs := make([]Requirement, 0, len(o.checks))
	for _, c := range o.checks {
		if c.when != nil {
			out, err := vm.Run(c.when, CallEnv{Op: o.Name, Args: args})
			if err != nil {
				return nil, fmt.Errorf("policy: guard %q for %s: %w", c.whenSrc, o.Name, err)
			}
			active, ok := out.(bool)
			if !ok {
				return nil, fmt.Errorf("policy: guard %q for %s returned %T, want bool", c.whenSrc, o.Name, out)
			}
			if !active {
				continue
			}
		}
		reqs = append(reqs, Requirement{Arg: c.Arg, Rights: c.Rights})
	}
	return reqs, nil
}

// Checks returns the declared checks (guards unevaluated), for
// diagnostics.
func (o Operation) Checks() []ArgCheck {
	out := make([]ArgCheck, len(o.checks))
	copy(out, o.checks)
	return out
}

// Table is the loaded policy: immutable after Load.
type Table struct {
	version *semver.Version
	ops     map[string]Operation
	order   []string
}

// Lookup returns the entry for an operation name. A missing entry
// means the operation is not mediated.
func (t *Table) Lookup(name string) (Operation, bool) {
	op, ok := t.ops[name]
	return op, ok
}

// Version returns the policy document version.
func (t *Table) Version() *semver.Version { return t.version }

// Operations returns the operation names in declaration order.
func (t *Table) Operations() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of mediated operations.
func (t *Table) Len() int { return len(t.ops) }
