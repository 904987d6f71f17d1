package vfs

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/capgate-dev/capgate/internal/credential"
	"github.com/capgate-dev/capgate/internal/handle"
	"github.com/capgate-dev/capgate/internal/mediation"
	"github.com/capgate-dev/capgate/internal/object"
	"github.com/capgate-dev/capgate/internal/rights"
)

// Scenario is a declarative mediation session: a resource tree, the
// handles a task starts with, and the mediated steps it attempts.
// Scenario files drive the CLI's run command and make policy effects
// reproducible.
type Scenario struct {
	Confined bool           `yaml:"confined"`
	Tree     map[string]any `yaml:"tree"`
	Handles  []HandleSpec   `yaml:"handles"`
	Steps    []Step         `yaml:"steps"`
}

// HandleSpec names a tree node to pre-open. With rights set the
// handle is a capability; otherwise it is a plain handle.
type HandleSpec struct {
	Path   string   `yaml:"path"`
	Rights []string `yaml:"rights"`
}

// Step is one mediated operation attempt.
type Step struct {
	Op     string   `yaml:"op"`
	Handle int      `yaml:"handle"`
	Path   string   `yaml:"path"`
	Data   string   `yaml:"data"`
	Mode   string   `yaml:"mode"`
	Rights []string `yaml:"rights"`
}

// StepResult reports one step's outcome.
type StepResult struct {
	Index  int
	Op     string
	Detail string
	Err    error
}

// OK reports whether the step succeeded.
func (r StepResult) OK() bool { return r.Err == nil }

// LoadScenario decodes a scenario document.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to decode scenario YAML: %w", err)
	}
	if len(sc.Handles) == 0 {
		return nil, fmt.Errorf("scenario declares no handles")
	}
	return &sc, nil
}

// Run executes the scenario against a fresh handle table and task.
// Step failures are outcomes, not run failures; only a malformed
// scenario aborts the run.
func (sc *Scenario) Run(ic *mediation.Interceptor) ([]StepResult, error) {
	fs := New(ic)
	defer fs.Table().CloseAll()

	root := object.NewDirectory("root")
	if err := buildTree(root, sc.Tree); err != nil {
		return nil, err
	}

	task := credential.NewTask()
	if sc.Confined {
		task.Confine()
	}

	for i, spec := range sc.Handles {
		obj, err := resolveSpec(root, spec)
		if err != nil {
			return nil, fmt.Errorf("handle %d: %w", i, err)
		}
		h, err := fs.Install(obj)
		if err != nil {
			return nil, fmt.Errorf("handle %d: %w", i, err)
		}
		slog.Debug("scenario handle installed", "handle", int(h), "path", spec.Path)
	}

	results := make([]StepResult, 0, len(sc.Steps))
	for i, step := range sc.Steps {
		res := sc.runStep(fs, task, i, step)
		slog.Info("scenario step",
			"index", i, "op", step.Op, "ok", res.OK(), "detail", res.Detail, "error", res.Err)
		results = append(results, res)
	}
	return results, nil
}

func (sc *Scenario) runStep(fs *FS, task *credential.Task, index int, step Step) StepResult {
	res := StepResult{Index: index, Op: step.Op}
	h := handle.Handle(step.Handle)

	switch step.Op {
	case "openat":
		nh, err := fs.OpenAt(task, h, step.Path, step.Mode)
		if err != nil {
			res.Err = err
			return res
		}
		res.Detail = fmt.Sprintf("handle %d", int(nh))

	case "read":
		data, err := fs.Read(task, h)
		if err != nil {
			res.Err = err
			return res
		}
		res.Detail = fmt.Sprintf("%d bytes", len(data))

	case "write":
		res.Err = fs.Write(task, h, []byte(step.Data), step.Mode)

	case "stat":
		info, err := fs.Stat(task, h)
		if err != nil {
			res.Err = err
			return res
		}
		res.Detail = info.Name

	case "unlinkat":
		res.Err = fs.UnlinkAt(task, h, step.Path)

	case "limit":
		mask, err := rights.Parse(step.Rights)
		if err != nil {
			res.Err = err
			return res
		}
		nh, err := mediation.Limit(fs.Table(), h, mask)
		if err != nil {
			res.Err = err
			return res
		}
		res.Detail = fmt.Sprintf("handle %d", int(nh))

	case "rights":
		r, err := mediation.RightsOf(fs.Table(), h)
		if err != nil {
			res.Err = err
			return res
		}
		res.Detail = r.String()

	case "confine":
		task.Confine()

	default:
		res.Err = fmt.Errorf("unknown step op %q", step.Op)
	}
	return res
}

// buildTree turns the nested scenario mapping into resources: a
// mapping is a directory, a string is a file payload.
func buildTree(dir *object.Resource, tree map[string]any) error {
	// Stable order keeps runs reproducible.
	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch v := tree[name].(type) {
		case string:
			file := object.NewResource(name)
			file.WriteData([]byte(v))
			if err := dir.AddChild(file); err != nil {
				return err
			}
		case map[string]any:
			sub := object.NewDirectory(name)
			if err := dir.AddChild(sub); err != nil {
				return err
			}
			if err := buildTree(sub, v); err != nil {
				return err
			}
		case nil:
			if err := dir.AddChild(object.NewResource(name)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("tree node %q has unsupported type %T", name, v)
		}
	}
	return nil
}

// resolveSpec finds the tree node for a handle spec and produces the
// object to install, retained for the table.
func resolveSpec(root *object.Resource, spec HandleSpec) (object.Object, error) {
	target := root
	if spec.Path != "" && spec.Path != "." {
		for _, seg := range strings.Split(spec.Path, "/") {
			next := target.Child(seg)
			if next == nil {
				return nil, fmt.Errorf("%w: %q", ErrNotFound, spec.Path)
			}
			target = next
		}
	}

	if len(spec.Rights) == 0 {
		return target.Retain(), nil
	}
	mask, err := rights.Parse(spec.Rights)
	if err != nil {
		return nil, err
	}
	return object.Derive(target, mask)
}
